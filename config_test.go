/*
 * // Copyright 2020 Insolar Network Ltd.
 * // All rights reserved.
 * // This material is licensed under the Insolar License version 1.0,
 * // available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.
 */

package insertbot

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCommonDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultRunnerConfig()
	require.Empty(t, cfg.Validate())
	require.Equal(t, FailurePolicyAbort, cfg.FailurePolicy)
	require.Equal(t, 7*time.Second, cfg.RunDuration())
	require.NotNil(t, cfg.ReportOptions)
}

func TestCommonConfigValidate(t *testing.T) {
	cfg := &RunnerConfig{
		Endpoints:        []string{"nohost"},
		Driver:           "oracle",
		FailurePolicy:    "retry",
		MaxBatchesPerSec: -1,
		ReportOptions:    &ReportOptions{HTML: true},
	}
	errs := cfg.Validate()
	require.Len(t, errs, 8)
	require.Contains(t, errs, "please set workers > 0")
	require.Contains(t, errs, "unknown driver: oracle")
	require.Contains(t, errs, "html and png reports require csv report")

	cfg = &RunnerConfig{}
	require.Contains(t, cfg.Validate(), "please set at least one endpoint")
}

func TestCommonLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: nightly
workload: hello
endpoints:
  - crate-1:5432
  - crate-2:5432
workers: 32
round_robin: true
failure_policy: tolerate
report:
  csv: true
  png: true
prometheus:
  enable: true
`), 0600))
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Empty(t, cfg.Validate())
	require.Equal(t, "nightly", cfg.Name)
	require.Equal(t, "hello", cfg.Workload)
	require.Equal(t, []string{"crate-1:5432", "crate-2:5432"}, cfg.Endpoints)
	require.Equal(t, 32, cfg.Workers)
	require.True(t, cfg.RoundRobin)
	require.Equal(t, FailurePolicyTolerate, cfg.FailurePolicy)
	require.True(t, cfg.ReportOptions.CSV)
	require.True(t, cfg.ReportOptions.PNG)
	require.Equal(t, DefaultPrometheusPort, cfg.Prometheus.Port)
	// untouched fields keep defaults
	require.Equal(t, 200, cfg.BatchSize)
	require.Equal(t, 7_000, cfg.RunDurationMillis)
	require.Equal(t, DriverPgx, cfg.Driver)
	require.True(t, cfg.RefreshTable)
}

func TestCommonLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("workers: [1, 2"), 0600))
	_, err = LoadConfig(path)
	require.Error(t, err)
}

func TestCommonParseEndpoint(t *testing.T) {
	ep, err := ParseEndpoint("crate-1:5432")
	require.NoError(t, err)
	require.Equal(t, Endpoint{Host: "crate-1", Port: 5432}, ep)
	require.Equal(t, "crate-1:5432", ep.String())

	ep, err = ParseEndpoint("[::1]:5433")
	require.NoError(t, err)
	require.Equal(t, "[::1]:5433", ep.String())

	ep, err = ParseEndpoint(":4200")
	require.NoError(t, err)
	require.Equal(t, "localhost", ep.Host)

	for _, bad := range []string{"crate-1", "crate-1:abc", "crate-1:0", "crate-1:70000"} {
		_, err := ParseEndpoint(bad)
		require.Error(t, err, bad)
	}

	_, err = ParseEndpoints(nil)
	require.Equal(t, errNoEndpoints, err)
	eps, err := ParseEndpoints([]string{"b:1", "a:2"})
	require.NoError(t, err)
	require.Equal(t, []Endpoint{{Host: "b", Port: 1}, {Host: "a", Port: 2}}, eps)
}
