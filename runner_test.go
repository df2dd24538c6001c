/*
 * // Copyright 2020 Insolar Network Ltd.
 * // All rights reserved.
 * // This material is licensed under the Insolar License version 1.0,
 * // available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.
 */

package insertbot

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func newTestRunner(t *testing.T, cfg *RunnerConfig, m *MemoryStore, opts ...Option) *Runner {
	opts = append([]Option{WithLogger(NewNopLogger())}, opts...)
	r, err := NewRunner(cfg, &testWorkload{}, m, opts...)
	require.NoError(t, err)
	return r
}

func TestCommonRunnerEndToEnd(t *testing.T) {
	defer goleak.VerifyNone(t)
	cfg := testConfig(4, 50)
	m := NewMemoryStore()
	m.Preload(testTable, 100)
	m.SetExecLatency(time.Millisecond)
	r := newTestRunner(t, cfg, m)
	require.Equal(t, StateInit, r.State())

	start := time.Now()
	res, err := r.Run(context.Background())
	require.NoError(t, err)
	require.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)

	require.Equal(t, int64(100), res.PreCount)
	inserted := res.InsertedRows()
	require.Greater(t, inserted, int64(0))
	require.Equal(t, int64(0), inserted%10)
	require.Equal(t, res.PostCount-res.PreCount, inserted)
	require.GreaterOrEqual(t, res.ElapsedMillis, int64(50))
	expected := math.Round(float64(inserted)/(float64(res.ElapsedMillis)/1000)*100) / 100
	require.Equal(t, expected, res.InsertsPerSecond())
	require.Equal(t, r.RunID(), res.RunID)

	require.Equal(t, StateClosed, r.State())
	require.Equal(t, 0, m.OpenConns())
	require.Equal(t, 0, m.Overlaps())
	require.Equal(t, []string{
		"REFRESH TABLE " + testTable,
		"SELECT count(*) FROM " + testTable,
		"REFRESH TABLE " + testTable,
		"SELECT count(*) FROM " + testTable,
	}, m.Statements())
	// admin connection plus one per worker
	require.Len(t, m.Dials(), 5)
	require.LessOrEqual(t, m.MaxOpenConns(), cfg.Workers+1)
}

func TestCommonRunnerStopsWithinOneBatch(t *testing.T) {
	defer goleak.VerifyNone(t)
	const latency = 30 * time.Millisecond
	cfg := testConfig(4, 100)
	m := NewMemoryStore()
	m.Preload(testTable, 0)
	m.SetExecLatency(latency)
	r := newTestRunner(t, cfg, m)

	res, err := r.Run(context.Background())
	require.NoError(t, err)
	require.GreaterOrEqual(t, res.ElapsedMillis, int64(100))
	// a worker finishes at most the batch in flight when the signal fires, commit is instant here
	slack := int64(150)
	require.Less(t, res.ElapsedMillis, int64(100)+latency.Milliseconds()+slack)
	require.Equal(t, cfg.Workers+1, m.MaxOpenConns())
}

func TestCommonRunnerCancelledBeforeBaseline(t *testing.T) {
	cfg := testConfig(2, 50)
	m := NewMemoryStore()
	m.Preload(testTable, 0)
	r := newTestRunner(t, cfg, m)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := r.Run(ctx)
	require.Nil(t, res)
	require.True(t, errors.Is(err, context.Canceled))
	require.False(t, errors.Is(err, ErrEndpointUnreachable))
	require.Zero(t, m.Inserts())
	require.Equal(t, StateClosed, r.State())
}

func TestCommonRunnerReopensLostAdminConnection(t *testing.T) {
	defer goleak.VerifyNone(t)
	cfg := testConfig(2, 1000)
	m := NewMemoryStore()
	m.Preload(testTable, 0)
	m.SetExecLatency(time.Millisecond)
	clk := newManualClock()
	r := newTestRunner(t, cfg, m, WithClock(clk))

	type out struct {
		res *RunResult
		err error
	}
	done := make(chan out, 1)
	go func() {
		res, err := r.Run(context.Background())
		done <- out{res, err}
	}()
	require.Eventually(t, func() bool {
		return r.State() == StateRunning && m.Inserts() > 0
	}, 5*time.Second, time.Millisecond)
	// node restart drops the admin session while workers insert
	require.NoError(t, r.admin.Close(context.Background()))
	clk.Advance(time.Second)
	o := <-done
	require.NoError(t, o.err)
	rows, _ := m.Rows(testTable)
	require.Equal(t, rows, o.res.PostCount)
	require.Equal(t, o.res.PostCount, o.res.InsertedRows())
	// admin, two workers and the reopened admin
	require.Len(t, m.Dials(), 4)
	require.Equal(t, 0, m.OpenConns())
}

func TestCommonRunnerCleanTable(t *testing.T) {
	cfg := testConfig(2, 20)
	cfg.CleanTable = true
	cfg.RefreshTable = false
	m := NewMemoryStore()
	m.Preload(testTable, 100)
	r := newTestRunner(t, cfg, m)

	res, err := r.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(0), res.PreCount)
	rows, _ := m.Rows(testTable)
	require.Equal(t, rows, res.PostCount)
	stmts := m.Statements()
	require.Len(t, stmts, 4)
	require.Equal(t, "DROP TABLE IF EXISTS "+testTable, stmts[0])
	require.Equal(t, (&testWorkload{}).CreateStatement(), stmts[1])
}

func TestCommonRunnerSchemaFailureAbortsBeforeWorkers(t *testing.T) {
	defer goleak.VerifyNone(t)
	cfg := testConfig(4, 50)
	cfg.CleanTable = true
	m := NewMemoryStore()
	m.InjectError("CREATE", 0, 0, errors.New("no space left"))
	r := newTestRunner(t, cfg, m)

	res, err := r.Run(context.Background())
	require.Nil(t, res)
	require.True(t, errors.Is(err, ErrSchemaPreparationFailed))
	require.Zero(t, m.Inserts())
	require.Len(t, m.Dials(), 1)
	require.Equal(t, 0, m.OpenConns())
	require.Equal(t, StateClosed, r.State())
}

func TestCommonRunnerSchemaUnreachable(t *testing.T) {
	cfg := testConfig(1, 50)
	cfg.CleanTable = true
	m := NewMemoryStore()
	for _, ep := range []Endpoint{epA, epB, epC} {
		m.SetDown(ep, true)
	}
	r := newTestRunner(t, cfg, m)

	_, err := r.Run(context.Background())
	require.True(t, errors.Is(err, ErrSchemaPreparationFailed))
}

func TestCommonRunnerCountUnavailable(t *testing.T) {
	cfg := testConfig(2, 50)
	m := NewMemoryStore()
	m.Preload(testTable, 0)
	m.SetNoCountRow(true)
	r := newTestRunner(t, cfg, m)

	res, err := r.Run(context.Background())
	require.Nil(t, res)
	require.True(t, errors.Is(err, ErrCountUnavailable))
	require.Zero(t, m.Inserts())
	require.Equal(t, 0, m.OpenConns())
}

func TestCommonRunnerCountOnMissingTable(t *testing.T) {
	cfg := testConfig(2, 50)
	r := newTestRunner(t, cfg, NewMemoryStore())
	_, err := r.Run(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown")
}

func TestCommonRunnerWorkerFailureFailsRun(t *testing.T) {
	defer goleak.VerifyNone(t)
	cfg := testConfig(4, 10_000)
	m := NewMemoryStore()
	m.Preload(testTable, 0)
	m.SetExecLatency(time.Millisecond)
	m.InjectError("INSERT", 10, 1, errors.New("shard failure"))
	r := newTestRunner(t, cfg, m)

	res, err := r.Run(context.Background())
	require.Nil(t, res)
	require.True(t, errors.Is(err, ErrWorkerExecutionFailed))
	require.Equal(t, 0, m.OpenConns())
	require.Equal(t, StateClosed, r.State())
}

func TestCommonRunnerCancelStopsEarlyAndReports(t *testing.T) {
	cfg := testConfig(2, 60_000)
	m := NewMemoryStore()
	m.Preload(testTable, 0)
	m.SetExecLatency(time.Millisecond)
	r := newTestRunner(t, cfg, m)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	res, err := r.Run(ctx)
	require.NoError(t, err)
	require.Less(t, res.ElapsedMillis, int64(60_000))
	rows, _ := m.Rows(testTable)
	require.Equal(t, rows, res.PostCount)
	require.Equal(t, 0, m.OpenConns())
}

func TestCommonRunnerManualClockElapsed(t *testing.T) {
	cfg := testConfig(2, 1000)
	m := NewMemoryStore()
	m.Preload(testTable, 0)
	m.SetExecLatency(time.Millisecond)
	clk := newManualClock()
	r := newTestRunner(t, cfg, m, WithClock(clk))

	type out struct {
		res *RunResult
		err error
	}
	done := make(chan out, 1)
	go func() {
		res, err := r.Run(context.Background())
		done <- out{res, err}
	}()
	require.Eventually(t, func() bool {
		return r.State() == StateRunning && m.Inserts() > 0
	}, 5*time.Second, time.Millisecond)
	clk.Advance(time.Second)
	o := <-done
	require.NoError(t, o.err)
	require.Equal(t, int64(1000), o.res.ElapsedMillis)
	require.Equal(t, float64(o.res.InsertedRows()), o.res.InsertsPerSecond())
}

func TestCommonRunnerRunsOnce(t *testing.T) {
	cfg := testConfig(1, 10)
	m := NewMemoryStore()
	m.Preload(testTable, 0)
	r := newTestRunner(t, cfg, m)
	_, err := r.Run(context.Background())
	require.NoError(t, err)
	_, err = r.Run(context.Background())
	require.Equal(t, errRunnerUsed, err)
}

func TestCommonRunnerInvalidConfig(t *testing.T) {
	cfg := testConfig(0, 0)
	_, err := NewRunner(cfg, &testWorkload{}, NewMemoryStore())
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid config")
	require.Contains(t, err.Error(), "workers")

	_, err = NewRunner(testConfig(1, 10), &testWorkload{}, nil)
	require.Error(t, err)

	cfg = testConfig(1, 10)
	cfg.Workload = "no_such_workload"
	_, err = NewRunner(cfg, nil, NewMemoryStore(), WithLogger(NewNopLogger()))
	require.True(t, errors.Is(err, ErrUnknownWorkload))
}

func TestCommonRunnerReports(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(2, 50)
	cfg.ReportOptions = &ReportOptions{CSV: true, JSON: true, HTML: true, PNG: true, Dir: dir}
	m := NewMemoryStore()
	m.Preload(testTable, 7)
	m.SetExecLatency(time.Millisecond)
	r := newTestRunner(t, cfg, m)

	res, err := r.Run(context.Background())
	require.NoError(t, err)
	for _, pattern := range []string{"batches_*.csv", "ticks_*.csv", "ticks_*.html", "ticks_*.png", "summary_*.json"} {
		files, err := filepath.Glob(filepath.Join(dir, pattern))
		require.NoError(t, err)
		require.Len(t, files, 1, pattern)
	}
	files, _ := filepath.Glob(filepath.Join(dir, "summary_*.json"))
	b, err := os.ReadFile(files[0])
	require.NoError(t, err)
	var s Summary
	require.NoError(t, jsoniter.Unmarshal(b, &s))
	require.Equal(t, res.RunID, s.RunID)
	require.Equal(t, int64(7), s.PreCount)
	require.Equal(t, res.InsertedRows(), s.InsertedRows)
	require.Equal(t, testTable, s.Table)
	require.Equal(t, 2, s.WorkerCount)
	require.Equal(t, "node-a:5432,node-b:5432,node-c:5432", s.Endpoint)
}

func TestCommonRunnerStatus(t *testing.T) {
	cfg := testConfig(3, 10)
	m := NewMemoryStore()
	m.Preload(testTable, 0)
	r := newTestRunner(t, cfg, m)
	s := r.Status()
	require.Equal(t, "INIT", s.State)
	require.Equal(t, testTable, s.Workload)
	_, err := r.Run(context.Background())
	require.NoError(t, err)
	s = r.Status()
	require.Equal(t, "CLOSED", s.State)
	require.Equal(t, 0, s.ActiveWorkers)
	require.Equal(t, r.RunID(), s.RunID)
}
