/*
 * // Copyright 2020 Insolar Network Ltd.
 * // All rights reserved.
 * // This material is licensed under the Insolar License version 1.0,
 * // available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.
 */

package insertbot

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DriverPgx      = "pgx"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverMemory   = "memory"

	FailurePolicyAbort    = "abort"
	FailurePolicyTolerate = "tolerate"

	DefaultPrometheusPort = 2112
)

// ReportOptions report options
type ReportOptions struct {
	// CSV writes every batch and every tick to csv files
	CSV bool `yaml:"csv"`
	// HTML renders tick throughput chart, requires CSV
	HTML bool `yaml:"html"`
	// PNG renders tick throughput chart as png, requires CSV
	PNG bool `yaml:"png"`
	// JSON writes run summary to summary_<name>_<runid>_<ts>.json
	JSON bool `yaml:"json"`
	// Dir where report files are created, current dir by default
	Dir string `yaml:"dir"`
}

func (o *ReportOptions) enabled() bool {
	return o != nil && (o.CSV || o.JSON)
}

// Prometheus exposes metrics and run status over http
type Prometheus struct {
	Enable bool `yaml:"enable"`
	Port   int  `yaml:"port"`
}

// RunnerConfig runner configuration
type RunnerConfig struct {
	// Name of a runner instance
	Name string `yaml:"name"`
	// Workload registered workload name
	Workload string `yaml:"workload"`
	// Driver pgx|postgres|mysql|memory
	Driver string `yaml:"driver"`
	// Endpoints candidate "host:port" list, tried in order
	Endpoints []string `yaml:"endpoints"`
	User      string   `yaml:"user"`
	Password  string   `yaml:"password"`
	Database  string   `yaml:"database"`
	// Workers constant amount of insert workers, each holds one connection
	Workers int `yaml:"workers"`
	// BatchSize rows per insert statement
	BatchSize int `yaml:"batch_size"`
	// RunDurationMillis time budget of the insert phase
	RunDurationMillis int `yaml:"run_duration_millis"`
	// CleanTable drops and recreates the table before the run
	CleanTable bool `yaml:"clean_table"`
	// RoundRobin spreads connections across endpoints
	RoundRobin bool `yaml:"round_robin"`
	// RefreshTable issues REFRESH TABLE before every count
	RefreshTable bool `yaml:"refresh_table"`
	// FailurePolicy abort|tolerate, what a failing worker does to the run
	FailurePolicy string `yaml:"failure_policy"`
	// MaxBatchesPerSec throttles all workers together, 0 is unlimited
	MaxBatchesPerSec int `yaml:"max_batches_per_sec"`
	// Shards table shards for workloads supporting it, 0 keeps workload default
	Shards int `yaml:"shards"`
	// LogLevel debug|info, etc.
	LogLevel string `yaml:"log_level"`
	// LogEncoding json|console
	LogEncoding   string         `yaml:"log_encoding"`
	ReportOptions *ReportOptions `yaml:"report"`
	Prometheus    *Prometheus    `yaml:"prometheus"`
}

// DefaultRunnerConfig mirrors a local three node cluster
func DefaultRunnerConfig() *RunnerConfig {
	cfg := &RunnerConfig{
		Name:              "insertbot",
		Workload:          "sensors",
		Driver:            DriverPgx,
		Endpoints:         []string{"localhost:5432", "localhost:5433", "localhost:5434"},
		User:              "crate",
		Workers:           10,
		BatchSize:         200,
		RunDurationMillis: 7_000,
		RefreshTable:      true,
	}
	cfg.DefaultCfgValues()
	return cfg
}

// LoadConfig reads yaml config, missing fields keep DefaultRunnerConfig values
func LoadConfig(path string) (*RunnerConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultRunnerConfig()
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.DefaultCfgValues()
	return cfg, nil
}

// DefaultCfgValues fills optional fields
func (c *RunnerConfig) DefaultCfgValues() {
	if c.Name == "" {
		c.Name = "insertbot"
	}
	if c.Driver == "" {
		c.Driver = DriverPgx
	}
	if c.FailurePolicy == "" {
		c.FailurePolicy = FailurePolicyAbort
	}
	if c.ReportOptions == nil {
		c.ReportOptions = &ReportOptions{}
	}
	if c.Prometheus != nil && c.Prometheus.Enable && c.Prometheus.Port == 0 {
		c.Prometheus.Port = DefaultPrometheusPort
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.LogEncoding == "" {
		c.LogEncoding = DefaultLogEncoding
	}
}

// RunDuration time budget of the insert phase
func (c RunnerConfig) RunDuration() time.Duration {
	return time.Duration(c.RunDurationMillis) * time.Millisecond
}

// Validate checks all settings and returns a list of strings with problems.
func (c RunnerConfig) Validate() (list []string) {
	if len(c.Endpoints) == 0 {
		list = append(list, "please set at least one endpoint")
	}
	for _, e := range c.Endpoints {
		if _, err := ParseEndpoint(e); err != nil {
			list = append(list, err.Error())
		}
	}
	if c.Workers <= 0 {
		list = append(list, "please set workers > 0")
	}
	if c.BatchSize <= 0 {
		list = append(list, "please set batch size > 0")
	}
	if c.RunDurationMillis <= 0 {
		list = append(list, "please set run duration > 0, millis")
	}
	if c.MaxBatchesPerSec < 0 {
		list = append(list, "please set max batches per sec >= 0")
	}
	switch c.Driver {
	case DriverPgx, DriverPostgres, DriverMySQL, DriverMemory, "":
	default:
		list = append(list, fmt.Sprintf(errUnknownDriver, c.Driver))
	}
	switch c.FailurePolicy {
	case FailurePolicyAbort, FailurePolicyTolerate, "":
	default:
		list = append(list, "please set failure policy to abort or tolerate")
	}
	if c.ReportOptions != nil && (c.ReportOptions.HTML || c.ReportOptions.PNG) && !c.ReportOptions.CSV {
		list = append(list, "html and png reports require csv report")
	}
	return
}
