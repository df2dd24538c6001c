/*
 * // Copyright 2020 Insolar Network Ltd.
 * // All rights reserved.
 * // This material is licensed under the Insolar License version 1.0,
 * // available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.
 */

package insertbot

import (
	"time"

	"github.com/streadway/quantile"
)

// BatchMetrics aggregates executed batches, not safe for concurrent use
type BatchMetrics struct {
	// Latencies holds computed batch latency metrics.
	Latencies LatencyMetrics `json:"latencies"`
	// Earliest is the earliest batch begin.
	Earliest time.Time `json:"earliest"`
	// End is the latest batch end.
	End time.Time `json:"end"`
	// Duration between Earliest and End.
	Duration time.Duration `json:"duration"`
	// Batches is the total number of executed batches.
	Batches uint64 `json:"batches"`
	// Rows sent by successful batches, not the committed count.
	Rows uint64 `json:"rows"`
	// Errors is the number of failed batches.
	Errors uint64 `json:"errors"`
	// Rate is rows sent per second.
	Rate float64 `json:"rate"`

	latencies *quantile.Estimator
}

// LatencyMetrics holds computed batch latency metrics.
type LatencyMetrics struct {
	// Total is the total latency sum of all batches.
	Total time.Duration `json:"total"`
	// Mean is the mean batch latency.
	Mean time.Duration `json:"mean"`
	// P50 is the 50th percentile batch latency.
	P50 time.Duration `json:"50th"`
	// P95 is the 95th percentile batch latency.
	P95 time.Duration `json:"95th"`
	// P99 is the 99th percentile batch latency.
	P99 time.Duration `json:"99th"`
	// Max is the maximum observed batch latency.
	Max time.Duration `json:"max"`
}

func NewBatchMetrics() *BatchMetrics {
	return &BatchMetrics{
		latencies: quantile.New(
			quantile.Known(0.50, 0.01),
			quantile.Known(0.95, 0.001),
			quantile.Known(0.99, 0.0005),
		),
	}
}

func (m *BatchMetrics) add(r BatchResult) {
	m.Batches++
	if r.Err != nil {
		m.Errors++
	} else {
		m.Rows += uint64(r.Rows)
	}
	m.Latencies.Total += r.Elapsed
	m.latencies.Add(float64(r.Elapsed))
	if m.Earliest.IsZero() || m.Earliest.After(r.Begin) {
		m.Earliest = r.Begin
	}
	if r.End.After(m.End) {
		m.End = r.End
	}
	if r.Elapsed > m.Latencies.Max {
		m.Latencies.Max = r.Elapsed
	}
}

// update computes derived summary metrics which don't need to be run on every add call.
func (m *BatchMetrics) update() {
	if m.Batches == 0 {
		return
	}
	m.Duration = m.End.Sub(m.Earliest)
	if secs := m.Duration.Seconds(); secs > 0 {
		m.Rate = float64(m.Rows) / secs
	}
	m.Latencies.Mean = time.Duration(float64(m.Latencies.Total) / float64(m.Batches))
	m.Latencies.P50 = time.Duration(m.latencies.Get(0.50))
	m.Latencies.P95 = time.Duration(m.latencies.Get(0.95))
	m.Latencies.P99 = time.Duration(m.latencies.Get(0.99))
}

// TickMetrics rows sent during one second of the run
type TickMetrics struct {
	Tick    int
	Batches int
	Rows    int
}
