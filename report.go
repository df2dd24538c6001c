/*
 * // Copyright 2020 Insolar Network Ltd.
 * // All rights reserved.
 * // This material is licensed under the Insolar License version 1.0,
 * // available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.
 */

package insertbot

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
)

const (
	BatchLogFile     = "batches_%s_%s_%d.csv"
	TickLogFile      = "ticks_%s_%s_%d.csv"
	ReportGraphFile  = "ticks_%s_%s_%d.html"
	ReportPNGFile    = "ticks_%s_%s_%d.png"
	SummaryJSONFile  = "summary_%s_%s_%d.json"
	reportFileAccess = 0644
)

var (
	BatchCsvHeader = []string{"Worker", "OffsetMillis", "ElapsedMicros", "Rows", "Error"}
	TickCsvHeader  = []string{"Tick", "Batches", "Rows"}
)

// Summary is the structured record emitted after a run
type Summary struct {
	RunID            string  `json:"run_id"`
	Table            string  `json:"table"`
	Endpoint         string  `json:"endpoint"`
	InsertPrefix     string  `json:"insert_prefix"`
	BatchSize        int     `json:"batch_size"`
	ApproxInsertSize int     `json:"approx_insert_size"`
	WorkerCount      int     `json:"worker_count"`
	FailedWorkers    int     `json:"failed_workers"`
	PreCount         int64   `json:"pre_count"`
	PostCount        int64   `json:"post_count"`
	ElapsedMillis    int64   `json:"elapsed_millis"`
	InsertedRows     int64   `json:"inserted_rows"`
	InsertsPerSecond float64 `json:"inserts_per_second"`
	Batches          uint64  `json:"batches"`
	P50Millis        int64   `json:"p50_millis"`
	P95Millis        int64   `json:"p95_millis"`
	P99Millis        int64   `json:"p99_millis"`
}

// NewSummary derives summary of a completed run
func NewSummary(cfg *RunnerConfig, w Workload, endpoint string, res *RunResult) Summary {
	s := Summary{
		RunID:            res.RunID,
		Table:            w.TableName(),
		Endpoint:         endpoint,
		InsertPrefix:     w.InsertPrefix(),
		BatchSize:        cfg.BatchSize,
		ApproxInsertSize: ApproxInsertSize(w, cfg.BatchSize),
		WorkerCount:      cfg.Workers,
		FailedWorkers:    res.FailedWorkers,
		PreCount:         res.PreCount,
		PostCount:        res.PostCount,
		ElapsedMillis:    res.ElapsedMillis,
		InsertedRows:     res.InsertedRows(),
		InsertsPerSecond: res.InsertsPerSecond(),
	}
	if res.Batches != nil {
		s.Batches = res.Batches.Batches
		s.P50Millis = res.Batches.Latencies.P50.Milliseconds()
		s.P95Millis = res.Batches.Latencies.P95.Milliseconds()
		s.P99Millis = res.Batches.Latencies.P99.Milliseconds()
	}
	return s
}

func (s Summary) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Results for table: %s\n", s.Table)
	fmt.Fprintf(&sb, "   Host: %s\n", s.Endpoint)
	fmt.Fprintf(&sb, "   Insert prefix: %s\n", s.InsertPrefix)
	fmt.Fprintf(&sb, "   Values per insert: %d\n", s.BatchSize)
	fmt.Fprintf(&sb, "   Aprox. insert size: %d\n", s.ApproxInsertSize)
	fmt.Fprintf(&sb, "   Num. workers: %d (failed: %d)\n", s.WorkerCount, s.FailedWorkers)
	fmt.Fprintf(&sb, "   Batches: %d, perc: 50 [%dms] 95 [%dms] 99 [%dms]\n", s.Batches, s.P50Millis, s.P95Millis, s.P99Millis)
	fmt.Fprintf(&sb, "   Pre run count: %d\n", s.PreCount)
	fmt.Fprintf(&sb, "   Post run count: %d\n", s.PostCount)
	fmt.Fprintf(&sb, ">> Inserts: %d, Elapsed (ms): %d, IPS: %.2f", s.InsertedRows, s.ElapsedMillis, s.InsertsPerSecond)
	return sb.String()
}

// Report writes run artifacts selected by ReportOptions
type Report struct {
	runID            string
	runName          string
	batchLogFilename string
	tickLogFilename  string
	graphFilename    string
	pngFilename      string
	summaryFilename  string
	batchLogFile     *csv.Writer
	tickLogFile      *csv.Writer
	files            []*os.File
	reportOptions    *ReportOptions
	L                *Logger
}

// NewReport creates report files, nil report when no option is enabled
func NewReport(cfg *RunnerConfig, runID string, l *Logger) (*Report, error) {
	if !cfg.ReportOptions.enabled() {
		return nil, nil
	}
	tn := time.Now().Unix()
	dir := cfg.ReportOptions.Dir
	name := func(tpl string) string {
		return filepath.Join(dir, fmt.Sprintf(tpl, cfg.Name, runID, tn))
	}
	r := &Report{
		runID:            runID,
		runName:          cfg.Name,
		batchLogFilename: name(BatchLogFile),
		tickLogFilename:  name(TickLogFile),
		graphFilename:    name(ReportGraphFile),
		pngFilename:      name(ReportPNGFile),
		summaryFilename:  name(SummaryJSONFile),
		reportOptions:    cfg.ReportOptions,
		L:                l.With("report", cfg.Name),
	}
	if r.reportOptions.CSV {
		bf, err := CreateFileOrReplace(r.batchLogFilename)
		if err != nil {
			return nil, err
		}
		tf, err := CreateFileOrReplace(r.tickLogFilename)
		if err != nil {
			_ = bf.Close()
			return nil, err
		}
		r.files = append(r.files, bf, tf)
		r.batchLogFile = csv.NewWriter(bf)
		r.tickLogFile = csv.NewWriter(tf)
		_ = r.batchLogFile.Write(BatchCsvHeader)
		_ = r.tickLogFile.Write(TickCsvHeader)
	}
	return r, nil
}

func (r *Report) writeBatchEntry(res BatchResult, start time.Time) {
	if r.batchLogFile == nil {
		return
	}
	errMsg := "ok"
	if res.Err != nil {
		errMsg = res.Err.Error()
	}
	_ = r.batchLogFile.Write([]string{
		strconv.Itoa(res.Worker),
		strconv.FormatInt(res.Begin.Sub(start).Milliseconds(), 10),
		strconv.FormatInt(res.Elapsed.Microseconds(), 10),
		strconv.Itoa(res.Rows),
		errMsg,
	})
}

func (r *Report) writeTickEntry(t TickMetrics) {
	if r.tickLogFile == nil {
		return
	}
	_ = r.tickLogFile.Write([]string{
		strconv.Itoa(t.Tick),
		strconv.Itoa(t.Batches),
		strconv.Itoa(t.Rows),
	})
}

func (r *Report) flushLogs() {
	if r.batchLogFile != nil {
		r.batchLogFile.Flush()
	}
	if r.tickLogFile != nil {
		r.tickLogFile.Flush()
	}
}

// plot renders charts from the tick log, must be called after flushLogs
func (r *Report) plot() {
	if r.reportOptions.HTML {
		r.L.Infof("reporting graphs: %s", r.graphFilename)
		chart, err := ThroughputChart(r.tickLogFilename, r.runName)
		if err != nil {
			r.L.Error(err)
		} else if err := RenderEChart(chart, r.graphFilename); err != nil {
			r.L.Error(err)
		}
	}
	if r.reportOptions.PNG {
		r.L.Infof("reporting png: %s", r.pngFilename)
		chart, err := ThroughputChartPNG(r.runName, r.tickLogFilename)
		if err != nil {
			r.L.Error(err)
		} else if err := RenderChart(chart, r.pngFilename); err != nil {
			r.L.Error(err)
		}
	}
}

func (r *Report) writeSummary(s Summary) error {
	if !r.reportOptions.JSON {
		return nil
	}
	b, err := jsoniter.MarshalIndent(s, "", "    ")
	if err != nil {
		return err
	}
	r.L.Infof("writing summary: %s", r.summaryFilename)
	return os.WriteFile(r.summaryFilename, b, reportFileAccess)
}

// Close flushes and closes report files
func (r *Report) Close() {
	r.flushLogs()
	for _, f := range r.files {
		if err := f.Close(); err != nil {
			r.L.Warnf("failed to close %s: %v", f.Name(), err)
		}
	}
	r.files = nil
}
