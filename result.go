/*
 * // Copyright 2020 Insolar Network Ltd.
 * // All rights reserved.
 * // This material is licensed under the Insolar License version 1.0,
 * // available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.
 */

package insertbot

import (
	"fmt"
	"math"
	"time"
)

// BatchResult is one executed insert statement
type BatchResult struct {
	Worker     int
	Begin, End time.Time
	Elapsed    time.Duration
	Rows       int
	Err        error
}

func (b BatchResult) String() string {
	return fmt.Sprintf(
		"worker: %d, begin: %s, elapsed: %s, rows: %d, err: %v",
		b.Worker,
		b.Begin.Format(time.RFC3339Nano),
		b.Elapsed,
		b.Rows,
		b.Err,
	)
}

// RunResult outcome of one completed run, read-only once computed
type RunResult struct {
	RunID         string
	PreCount      int64
	PostCount     int64
	ElapsedMillis int64
	// FailedWorkers is non zero only with tolerate failure policy
	FailedWorkers int
	Batches       *BatchMetrics
	Ticks         []TickMetrics
}

// InsertedRows committed rows observed between the baseline and final count
func (r RunResult) InsertedRows() int64 {
	return r.PostCount - r.PreCount
}

// ElapsedSeconds elapsed run time, never less than one millisecond
func (r RunResult) ElapsedSeconds() float64 {
	ms := r.ElapsedMillis
	if ms < 1 {
		ms = 1
	}
	return float64(ms) / 1000.0
}

// InsertsPerSecond rounded to two decimals
func (r RunResult) InsertsPerSecond() float64 {
	return math.Round(float64(r.InsertedRows())/r.ElapsedSeconds()*100) / 100
}

func elapsedMillis(begin, end time.Time) int64 {
	ms := end.Sub(begin).Milliseconds()
	if ms < 1 {
		return 1
	}
	return ms
}
