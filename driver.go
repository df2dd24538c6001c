/*
 * // Copyright 2020 Insolar Network Ltd.
 * // All rights reserved.
 * // This material is licensed under the Insolar License version 1.0,
 * // available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.
 */

package insertbot

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/ratelimit"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultResultsQueueCapacity = 100_000

	opAcquire    = "acquire"
	opAutoCommit = "autocommit"
	opExec       = "exec"
	opCommit     = "commit"
)

// DriverStats what the workers sent during one RunUntil
type DriverStats struct {
	Batches       *BatchMetrics
	Ticks         []TickMetrics
	FailedWorkers int
}

// StressDriver owns a constant amount of insert workers, each holding one connection
type StressDriver struct {
	cfg      *RunnerConfig
	factory  *ConnectionFactory
	workload Workload
	clock    Clock
	// rl shared by all workers, nil when unlimited
	rl     ratelimit.Limiter
	report *Report
	prom   *PromReporter
	// active workers holding a connection
	active atomic.Int32
	L      *Logger
}

// NewStressDriver creates driver, report may be nil
func NewStressDriver(cfg *RunnerConfig, f *ConnectionFactory, w Workload, c Clock, report *Report, l *Logger) *StressDriver {
	if c == nil {
		c = RealClock
	}
	if l == nil {
		l = NewNopLogger()
	}
	d := &StressDriver{
		cfg:      cfg,
		factory:  f,
		workload: w,
		clock:    c,
		report:   report,
		prom:     &PromReporter{},
		L:        l,
	}
	if cfg.MaxBatchesPerSec > 0 {
		d.rl = ratelimit.New(cfg.MaxBatchesPerSec)
	}
	return d
}

// ActiveWorkers amount of workers currently holding a connection
func (d *StressDriver) ActiveWorkers() int {
	return int(d.active.Load())
}

// RunUntil blocks until every worker observed the signal, committed and released its connection
func (d *StressDriver) RunUntil(ctx context.Context, sig *Signal) (*DriverStats, error) {
	d.L.Infof("launching %d insert workers", d.cfg.Workers)
	results := make(chan BatchResult, DefaultResultsQueueCapacity)
	collected := make(chan *DriverStats, 1)
	go d.collectResults(d.clock.Now(), results, collected)

	// in-flight statements and commits are never interrupted, workers only stop between batches
	wctx := context.WithoutCancel(ctx)
	g, stop := errgroup.WithContext(ctx)
	var (
		failed       atomic.Int32
		firstErr     error
		firstErrOnce sync.Once
	)
	for i := 0; i < d.cfg.Workers; i++ {
		id := i
		g.Go(func() error {
			err := d.worker(wctx, stop, sig, id, results)
			if err == nil {
				return nil
			}
			d.L.Errorf("%v", err)
			if d.cfg.FailurePolicy != FailurePolicyTolerate {
				return err
			}
			failed.Add(1)
			firstErrOnce.Do(func() { firstErr = err })
			return nil
		})
	}
	err := g.Wait()
	close(results)
	stats := <-collected
	stats.FailedWorkers = int(failed.Load())
	if err == nil && stats.FailedWorkers == d.cfg.Workers {
		err = firstErr
	}
	d.L.Infof("all insert workers completed, failed: %d", stats.FailedWorkers)
	return stats, err
}

func (d *StressDriver) worker(ctx, stop context.Context, sig *Signal, id int, results chan<- BatchResult) error {
	l := d.L.With("worker", id)
	lease, err := d.factory.Acquire(ctx)
	if err != nil {
		return &WorkerError{Worker: id, Op: opAcquire, Err: err}
	}
	d.active.Add(1)
	promActiveWorkers.Inc()
	defer func() {
		if err := lease.Close(ctx); err != nil {
			l.Warnf("failed to close connection: %v", err)
		}
		d.active.Add(-1)
		promActiveWorkers.Dec()
	}()
	if err := lease.DisableAutoCommit(ctx); err != nil {
		return &WorkerError{Worker: id, Op: opAutoCommit, Err: err}
	}
	l.Infof("inserting into %s via %s", d.workload.TableName(), lease.Endpoint)

	gen := d.workload.Clone()
	for !sig.IsSet() && stop.Err() == nil {
		if d.rl != nil {
			d.rl.Take()
		}
		stmt := gen.NextBatch(d.cfg.BatchSize)
		begin := d.clock.Now()
		execErr := lease.Exec(ctx, stmt)
		end := d.clock.Now()
		results <- BatchResult{
			Worker:  id,
			Begin:   begin,
			End:     end,
			Elapsed: end.Sub(begin),
			Rows:    d.cfg.BatchSize,
			Err:     execErr,
		}
		if execErr != nil {
			return &WorkerError{Worker: id, Op: opExec, Err: execErr}
		}
	}
	if err := lease.Commit(ctx); err != nil {
		return &WorkerError{Worker: id, Op: opCommit, Err: err}
	}
	l.Debugf("worker completed")
	return nil
}

// collectResults aggregates worker results and writes them to report options
func (d *StressDriver) collectResults(start time.Time, results <-chan BatchResult, out chan<- *DriverStats) {
	var (
		bm          = NewBatchMetrics()
		ticks       = make(map[int]*TickMetrics)
		currentTick = 1
	)
	for res := range results {
		bm.add(res)
		d.prom.reportBatch(res)
		if d.report != nil {
			d.report.writeBatchEntry(res, start)
		}
		tick := int(res.End.Sub(start)/time.Second) + 1
		if _, ok := ticks[tick]; !ok {
			ticks[tick] = &TickMetrics{Tick: tick}
		}
		ticks[tick].Batches++
		if res.Err == nil {
			ticks[tick].Rows += res.Rows
		}
		// results arrive roughly in end order, earlier ticks are done
		for ; currentTick < tick; currentTick++ {
			if t, ok := ticks[currentTick]; ok {
				d.reportTick(*t, bm)
			}
		}
	}
	if t, ok := ticks[currentTick]; ok {
		d.reportTick(*t, bm)
	}
	bm.update()
	stats := &DriverStats{Batches: bm, Ticks: make([]TickMetrics, 0, len(ticks))}
	for _, t := range ticks {
		stats.Ticks = append(stats.Ticks, *t)
	}
	sort.Slice(stats.Ticks, func(i, j int) bool { return stats.Ticks[i].Tick < stats.Ticks[j].Tick })
	if d.report != nil {
		for _, t := range stats.Ticks {
			d.report.writeTickEntry(t)
		}
	}
	out <- stats
}

func (d *StressDriver) reportTick(t TickMetrics, bm *BatchMetrics) {
	d.prom.reportTick(t, bm)
	d.L.Infof(
		"tick: %d, rows [%d], batches [%d], perc: 50 [%v] 99 [%v], active workers [%d]",
		t.Tick,
		t.Rows,
		t.Batches,
		bm.Latencies.P50,
		bm.Latencies.P99,
		d.ActiveWorkers(),
	)
}
