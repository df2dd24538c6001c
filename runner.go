/*
 * // Copyright 2020 Insolar Network Ltd.
 * // All rights reserved.
 * // This material is licensed under the Insolar License version 1.0,
 * // available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.
 */

package insertbot

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

const statusServerShutdownTimeout = 3 * time.Second

// RunState is a step of the run lifecycle, steps only move forward
type RunState int32

const (
	StateInit RunState = iota
	StatePrepareSchema
	StateBaselineCount
	StateRunning
	StateDraining
	StateFinalCount
	StateReport
	StateClosed
)

func (s RunState) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StatePrepareSchema:
		return "PREPARE_SCHEMA"
	case StateBaselineCount:
		return "BASELINE_COUNT"
	case StateRunning:
		return "RUNNING"
	case StateDraining:
		return "DRAINING"
	case StateFinalCount:
		return "FINAL_COUNT"
	case StateReport:
		return "REPORT"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// Option customizes Runner
type Option func(r *Runner)

// WithClock replaces the wall clock used for the run deadline and elapsed time
func WithClock(c Clock) Option {
	return func(r *Runner) {
		r.clock = c
	}
}

// WithLogger replaces the logger built from config
func WithLogger(l *Logger) Option {
	return func(r *Runner) {
		r.L = l
	}
}

// shardedWorkload is implemented by workloads with configurable table shards
type shardedWorkload interface {
	WithShards(n int) Workload
}

// Runner drives one timed insert run: prepare, count, insert until deadline, count, report
type Runner struct {
	// Name of a runner
	Name string
	// Cfg runner config
	Cfg      *RunnerConfig
	workload Workload
	factory  *ConnectionFactory
	driver   *StressDriver
	clock    Clock
	runID    string
	state    atomic.Int32
	started  atomic.Bool
	// admin is used for schema and counts only, never by workers
	admin *Lease
	// Report data, nil when no report option is enabled
	Report    *Report
	statusSrv *http.Server
	prom      *PromReporter
	L         *Logger
}

// NewRunner creates runner for workload w, w may be nil to use the workload registered as cfg.Workload
func NewRunner(cfg *RunnerConfig, w Workload, d Dialer, opts ...Option) (*Runner, error) {
	if cfg == nil {
		return nil, fmt.Errorf(errInvalidConfig, "nil config")
	}
	cfg.DefaultCfgValues()
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf(errInvalidConfig, strings.Join(errs, "; "))
	}
	if d == nil {
		return nil, fmt.Errorf(errInvalidConfig, "nil dialer")
	}
	if w == nil {
		var err error
		if w, err = WorkloadFromString(cfg.Workload); err != nil {
			return nil, err
		}
	}
	if sw, ok := w.(shardedWorkload); ok && cfg.Shards > 0 {
		w = sw.WithShards(cfg.Shards)
	}
	eps, err := ParseEndpoints(cfg.Endpoints)
	if err != nil {
		return nil, fmt.Errorf(errInvalidConfig, err)
	}
	r := &Runner{
		Name:     cfg.Name,
		Cfg:      cfg,
		workload: w,
		clock:    RealClock,
		runID:    uuid.New().String(),
		prom:     &PromReporter{},
	}
	for _, o := range opts {
		o(r)
	}
	if r.L == nil {
		r.L = NewLogger(cfg)
	}
	r.L = r.L.With("runner", cfg.Name)
	r.factory = NewConnectionFactory(eps, d, cfg.RoundRobin, r.L)
	r.driver = NewStressDriver(cfg, r.factory, w, r.clock, nil, r.L)
	return r, nil
}

// RunID unique id of this runner, used in report file names
func (r *Runner) RunID() string {
	return r.runID
}

// State current lifecycle step
func (r *Runner) State() RunState {
	return RunState(r.state.Load())
}

func (r *Runner) setState(s RunState) {
	r.L.Debugf("state: %s -> %s", r.State(), s)
	r.state.Store(int32(s))
}

// Run runs the test, a runner can be run only once.
// Cancelling ctx during the insert phase stops workers early, the run is still counted and reported.
func (r *Runner) Run(ctx context.Context) (*RunResult, error) {
	if !r.started.CompareAndSwap(false, true) {
		return nil, errRunnerUsed
	}
	if ctx == nil {
		ctx = context.Background()
	}
	defer r.close()
	r.L.Infof("run %s started, table: %s, endpoints: %s", r.runID, r.workload.TableName(), r.factory.URI())

	report, err := NewReport(r.Cfg, r.runID, r.L)
	if err != nil {
		return nil, err
	}
	r.Report = report
	r.driver.report = report
	if r.Cfg.Prometheus != nil && r.Cfg.Prometheus.Enable {
		r.statusSrv = RunStatusServer(statusAddr(r.Cfg.Prometheus), r)
	}

	if r.Cfg.CleanTable {
		r.setState(StatePrepareSchema)
		if err := r.prepareTable(ctx); err != nil {
			return nil, err
		}
	}

	r.setState(StateBaselineCount)
	pre, err := r.count(ctx)
	if err != nil {
		return nil, err
	}
	r.L.Infof("baseline count: %d", pre)

	r.setState(StateRunning)
	start := r.clock.Now()
	sig := StartTimer(ctx, r.clock, r.Cfg.RunDuration())
	defer sig.Release()
	joined := make(chan struct{})
	go func() {
		select {
		case <-sig.Done():
			r.state.CompareAndSwap(int32(StateRunning), int32(StateDraining))
		case <-joined:
		}
	}()
	stats, err := r.driver.RunUntil(ctx, sig)
	close(joined)
	end := r.clock.Now()
	if err != nil {
		return nil, err
	}

	// counts and reports survive cancellation of ctx, workers already committed
	actx := context.WithoutCancel(ctx)
	r.setState(StateFinalCount)
	post, err := r.count(actx)
	if err != nil {
		return nil, err
	}

	r.setState(StateReport)
	res := &RunResult{
		RunID:         r.runID,
		PreCount:      pre,
		PostCount:     post,
		ElapsedMillis: elapsedMillis(start, end),
		FailedWorkers: stats.FailedWorkers,
		Batches:       stats.Batches,
		Ticks:         stats.Ticks,
	}
	s := NewSummary(r.Cfg, r.workload, r.factory.URI(), res)
	r.L.Info(s.String())
	r.prom.reportRun(res)
	if r.Report != nil {
		if err := r.Report.writeSummary(s); err != nil {
			r.L.Errorf("failed to write summary: %v", err)
		}
	}
	return res, nil
}

// prepareTable drops and recreates the target table
func (r *Runner) prepareTable(ctx context.Context) error {
	r.L.Infof("recreating table %s", r.workload.TableName())
	err := r.withAdmin(ctx, func(conn *Lease) error {
		if err := conn.Exec(ctx, r.workload.DropStatement()); err != nil {
			return fmt.Errorf("drop %s: %w", r.workload.TableName(), err)
		}
		if err := conn.Exec(ctx, r.workload.CreateStatement()); err != nil {
			return fmt.Errorf("create %s: %w", r.workload.TableName(), err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSchemaPreparationFailed, err)
	}
	return nil
}

// count makes committed rows visible and reads the row count
func (r *Runner) count(ctx context.Context) (int64, error) {
	var (
		n  int64
		ok bool
	)
	err := r.withAdmin(ctx, func(conn *Lease) error {
		if r.Cfg.RefreshTable {
			if err := conn.Exec(ctx, refreshStatement(r.workload)); err != nil {
				return fmt.Errorf("refresh %s: %w", r.workload.TableName(), err)
			}
		}
		var err error
		if n, ok, err = conn.QueryCount(ctx, countStatement(r.workload)); err != nil {
			return fmt.Errorf("count %s: %w", r.workload.TableName(), err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrCountUnavailable, r.workload.TableName())
	}
	return n, nil
}

// withAdmin runs fn on the admin connection, a session lost during fn is replaced and fn retried once
func (r *Runner) withAdmin(ctx context.Context, fn func(conn *Lease) error) error {
	conn, err := r.adminConn(ctx)
	if err != nil {
		return err
	}
	err = fn(conn)
	if err == nil || !conn.IsClosed() {
		return err
	}
	r.L.Warnf("admin connection to %s lost: %v", conn.Endpoint, err)
	if conn, err = r.adminConn(ctx); err != nil {
		return err
	}
	return fn(conn)
}

// adminConn acquires the administrative connection on first use and again after it was lost
func (r *Runner) adminConn(ctx context.Context) (*Lease, error) {
	if r.admin != nil && !r.admin.IsClosed() {
		return r.admin, nil
	}
	if r.admin != nil {
		r.L.Infof("reopening admin connection, %s is closed", r.admin.Endpoint)
		_ = r.admin.Close(ctx)
		r.admin = nil
	}
	l, err := r.factory.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	r.L.Debugf("admin connection to %s", l.Endpoint)
	r.admin = l
	return l, nil
}

// close releases everything the runner owns, called on every path out of Run
func (r *Runner) close() {
	ctx := context.Background()
	if r.admin != nil {
		if err := r.admin.Close(ctx); err != nil {
			r.L.Warnf("failed to close admin connection: %v", err)
		}
		r.admin = nil
	}
	if r.Report != nil {
		r.Report.Close()
		// charts only for runs that got to the report
		if r.State() == StateReport {
			r.Report.plot()
		}
	}
	if r.statusSrv != nil {
		sctx, cancel := context.WithTimeout(ctx, statusServerShutdownTimeout)
		defer cancel()
		if err := r.statusSrv.Shutdown(sctx); err != nil {
			r.L.Warnf("failed to stop status server: %v", err)
		}
	}
	r.setState(StateClosed)
	r.L.Infof("runner exited")
}
