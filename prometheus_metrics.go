/*
 * // Copyright 2020 Insolar Network Ltd.
 * // All rights reserved.
 * // This material is licensed under the Insolar License version 1.0,
 * // available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.
 */

package insertbot

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	promConnectFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "insertbot_connect_failures_total",
		Help: "Failed connection attempts per endpoint",
	}, []string{"endpoint"})
	promActiveWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "insertbot_active_workers",
		Help: "Workers currently holding a connection",
	})
	promBatches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "insertbot_batches_total",
		Help: "Executed insert batches",
	})
	promBatchErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "insertbot_batch_errors_total",
		Help: "Failed insert batches",
	})
	promRowsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "insertbot_rows_sent_total",
		Help: "Rows sent by successful batches",
	})
	promTickRows = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "insertbot_tick_rows",
		Help: "Rows sent during the last completed second",
	})
	promBatchP50 = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "insertbot_batch_p50_ms",
		Help: "Batch latency 50 Percentile",
	})
	promBatchP99 = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "insertbot_batch_p99_ms",
		Help: "Batch latency 99 Percentile",
	})
	promInsertsPerSecond = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "insertbot_inserts_per_second",
		Help: "Committed inserts per second of the last finished run",
	})
)

type PromReporter struct{}

func (m *PromReporter) reportBatch(r BatchResult) {
	promBatches.Inc()
	if r.Err != nil {
		promBatchErrors.Inc()
		return
	}
	promRowsSent.Add(float64(r.Rows))
}

func (m *PromReporter) reportTick(t TickMetrics, bm *BatchMetrics) {
	promTickRows.Set(float64(t.Rows))
	bm.update()
	promBatchP50.Set(float64(bm.Latencies.P50.Milliseconds()))
	promBatchP99.Set(float64(bm.Latencies.P99.Milliseconds()))
}

func (m *PromReporter) reportRun(res *RunResult) {
	promInsertsPerSecond.Set(res.InsertsPerSecond())
}
