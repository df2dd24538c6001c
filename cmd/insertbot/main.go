/*
 * // Copyright 2020 Insolar Network Ltd.
 * // All rights reserved.
 * // This material is licensed under the Insolar License version 1.0,
 * // available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.
 */

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/insolar/insertbot"
	_ "github.com/insolar/insertbot/workloads"
)

var (
	configPath string
	flagCfg    = insertbot.DefaultRunnerConfig()
)

func main() {
	root := &cobra.Command{
		Use:          "insertbot",
		Short:        "Sustained INSERT stress runner for clustered SQL stores",
		SilenceUsage: true,
	}
	root.AddCommand(runCmd(), workloadsCmd())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Insert into the workload table for a fixed time and report inserts per second",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.Driver == insertbot.DriverMemory && !cfg.CleanTable {
				// memory store starts empty
				cfg.CleanTable = true
			}
			d, err := insertbot.NewDialer(cfg)
			if err != nil {
				return err
			}
			l := insertbot.NewLogger(cfg)
			r, err := insertbot.NewRunner(cfg, nil, d, insertbot.WithLogger(l))
			if err != nil {
				return err
			}
			ctx, cancel := insertbot.ShutdownContext(context.Background(), l)
			defer cancel()
			res, err := r.Run(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("%.2f\n", res.InsertsPerSecond())
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&configPath, "config", "c", "", "yaml config, flags override its values")
	f.StringVar(&flagCfg.Name, "name", flagCfg.Name, "runner name, used in report file names")
	f.StringVarP(&flagCfg.Workload, "workload", "w", flagCfg.Workload, "registered workload")
	f.StringVar(&flagCfg.Driver, "driver", flagCfg.Driver, "pgx|postgres|mysql|memory")
	f.StringSliceVarP(&flagCfg.Endpoints, "endpoints", "e", flagCfg.Endpoints, "host:port list, tried in order")
	f.StringVarP(&flagCfg.User, "user", "u", flagCfg.User, "database user")
	f.StringVar(&flagCfg.Password, "password", flagCfg.Password, "database password")
	f.StringVar(&flagCfg.Database, "database", flagCfg.Database, "database name")
	f.IntVarP(&flagCfg.Workers, "workers", "n", flagCfg.Workers, "insert workers, one connection each")
	f.IntVarP(&flagCfg.BatchSize, "batch-size", "b", flagCfg.BatchSize, "rows per insert statement")
	f.IntVarP(&flagCfg.RunDurationMillis, "duration", "d", flagCfg.RunDurationMillis, "insert phase duration, millis")
	f.BoolVar(&flagCfg.CleanTable, "clean-table", flagCfg.CleanTable, "drop and recreate the table before the run")
	f.BoolVar(&flagCfg.RoundRobin, "round-robin", flagCfg.RoundRobin, "spread worker connections across endpoints")
	f.BoolVar(&flagCfg.RefreshTable, "refresh-table", flagCfg.RefreshTable, "REFRESH TABLE before counting")
	f.StringVar(&flagCfg.FailurePolicy, "failure-policy", flagCfg.FailurePolicy, "abort|tolerate")
	f.IntVar(&flagCfg.MaxBatchesPerSec, "max-batches-per-sec", flagCfg.MaxBatchesPerSec, "throttle, 0 is unlimited")
	f.IntVar(&flagCfg.Shards, "shards", flagCfg.Shards, "table shards, 0 keeps workload default")
	f.StringVar(&flagCfg.LogLevel, "log-level", flagCfg.LogLevel, "debug|info|warn|error")
	f.StringVar(&flagCfg.LogEncoding, "log-encoding", flagCfg.LogEncoding, "console|json")
	f.BoolVar(&flagCfg.ReportOptions.CSV, "csv", false, "write batch and tick csv")
	f.BoolVar(&flagCfg.ReportOptions.HTML, "html", false, "render html throughput chart, needs --csv")
	f.BoolVar(&flagCfg.ReportOptions.PNG, "png", false, "render png throughput chart, needs --csv")
	f.BoolVar(&flagCfg.ReportOptions.JSON, "json", false, "write json summary")
	f.StringVar(&flagCfg.ReportOptions.Dir, "report-dir", "", "report files dir")
	f.Int("prometheus-port", 0, "serve /metrics and /status on this port, 0 disables")
	return cmd
}

// loadConfig file values first, then every flag set explicitly
func loadConfig(cmd *cobra.Command) (*insertbot.RunnerConfig, error) {
	if configPath == "" {
		if port, _ := cmd.Flags().GetInt("prometheus-port"); port > 0 {
			flagCfg.Prometheus = &insertbot.Prometheus{Enable: true, Port: port}
		}
		return flagCfg, nil
	}
	cfg, err := insertbot.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	f := cmd.Flags()
	set := func(name string, apply func()) {
		if f.Changed(name) {
			apply()
		}
	}
	set("name", func() { cfg.Name = flagCfg.Name })
	set("workload", func() { cfg.Workload = flagCfg.Workload })
	set("driver", func() { cfg.Driver = flagCfg.Driver })
	set("endpoints", func() { cfg.Endpoints = flagCfg.Endpoints })
	set("user", func() { cfg.User = flagCfg.User })
	set("password", func() { cfg.Password = flagCfg.Password })
	set("database", func() { cfg.Database = flagCfg.Database })
	set("workers", func() { cfg.Workers = flagCfg.Workers })
	set("batch-size", func() { cfg.BatchSize = flagCfg.BatchSize })
	set("duration", func() { cfg.RunDurationMillis = flagCfg.RunDurationMillis })
	set("clean-table", func() { cfg.CleanTable = flagCfg.CleanTable })
	set("round-robin", func() { cfg.RoundRobin = flagCfg.RoundRobin })
	set("refresh-table", func() { cfg.RefreshTable = flagCfg.RefreshTable })
	set("failure-policy", func() { cfg.FailurePolicy = flagCfg.FailurePolicy })
	set("max-batches-per-sec", func() { cfg.MaxBatchesPerSec = flagCfg.MaxBatchesPerSec })
	set("shards", func() { cfg.Shards = flagCfg.Shards })
	set("log-level", func() { cfg.LogLevel = flagCfg.LogLevel })
	set("log-encoding", func() { cfg.LogEncoding = flagCfg.LogEncoding })
	set("csv", func() { cfg.ReportOptions.CSV = flagCfg.ReportOptions.CSV })
	set("html", func() { cfg.ReportOptions.HTML = flagCfg.ReportOptions.HTML })
	set("png", func() { cfg.ReportOptions.PNG = flagCfg.ReportOptions.PNG })
	set("json", func() { cfg.ReportOptions.JSON = flagCfg.ReportOptions.JSON })
	set("report-dir", func() { cfg.ReportOptions.Dir = flagCfg.ReportOptions.Dir })
	set("prometheus-port", func() {
		port, _ := f.GetInt("prometheus-port")
		cfg.Prometheus = &insertbot.Prometheus{Enable: port > 0, Port: port}
	})
	return cfg, nil
}

func workloadsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "workloads",
		Short: "List registered workloads",
		Run: func(cmd *cobra.Command, _ []string) {
			for _, name := range insertbot.Workloads() {
				w, _ := insertbot.WorkloadFromString(name)
				fmt.Fprintf(cmd.OutOrStdout(), "%-10s %s\n", name, w.TableName())
			}
		},
	}
}
