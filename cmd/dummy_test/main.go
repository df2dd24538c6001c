/*
 * // Copyright 2020 Insolar Network Ltd.
 * // All rights reserved.
 * // This material is licensed under the Insolar License version 1.0,
 * // available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.
 */

package main

import (
	"context"
	"log"
	"os"
	"strings"

	"github.com/insolar/insertbot"
	"github.com/insolar/insertbot/workloads"
)

// soak run against a cluster from TARGET, e.g. TARGET=crate-1:5432,crate-2:5432
func main() {
	target := os.Getenv("TARGET")
	if target == "" {
		target = "localhost:5432"
	}
	cfg := &insertbot.RunnerConfig{
		Name:              "dummy_test",
		Driver:            insertbot.DriverPgx,
		Endpoints:         strings.Split(target, ","),
		User:              "crate",
		Workers:           50,
		BatchSize:         500,
		RunDurationMillis: 3_600_000,
		CleanTable:        true,
		RoundRobin:        true,
		RefreshTable:      true,
		FailurePolicy:     insertbot.FailurePolicyTolerate,
		Prometheus:        &insertbot.Prometheus{Enable: true},
		ReportOptions:     &insertbot.ReportOptions{CSV: true, PNG: true},
	}
	d, err := insertbot.NewDialer(cfg)
	if err != nil {
		log.Fatal(err)
	}
	r, err := insertbot.NewRunner(cfg, workloads.NewSensors(12), d)
	if err != nil {
		log.Fatal(err)
	}
	ctx, cancel := insertbot.ShutdownContext(context.Background(), r.L)
	defer cancel()
	if _, err := r.Run(ctx); err != nil {
		log.Fatal(err)
	}
}
