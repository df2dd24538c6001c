/*
 * // Copyright 2020 Insolar Network Ltd.
 * // All rights reserved.
 * // This material is licensed under the Insolar License version 1.0,
 * // available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.
 */

package insertbot

import (
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testTable = "doc.test"

var (
	epA = Endpoint{Host: "node-a", Port: 5432}
	epB = Endpoint{Host: "node-b", Port: 5432}
	epC = Endpoint{Host: "node-c", Port: 5432}
)

func testEndpoints() []string {
	return []string{epA.String(), epB.String(), epC.String()}
}

// testWorkload inserts sequential values into doc.test
type testWorkload struct {
	next int
}

func (w *testWorkload) TableName() string {
	return testTable
}

func (w *testWorkload) CreateStatement() string {
	return "CREATE TABLE " + testTable + " (v INTEGER)"
}

func (w *testWorkload) DropStatement() string {
	return "DROP TABLE IF EXISTS " + testTable
}

func (w *testWorkload) InsertPrefix() string {
	return "INSERT INTO " + testTable + "(v) VALUES"
}

func (w *testWorkload) NextBatch(batchSize int) string {
	var sb strings.Builder
	sb.WriteString(w.InsertPrefix())
	for i := 0; i < batchSize; i++ {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(" (")
		sb.WriteString(strconv.Itoa(w.next))
		sb.WriteString(")")
		w.next++
	}
	return sb.String()
}

func (w *testWorkload) Clone() Workload {
	return &testWorkload{}
}

func testConfig(workers int, durationMillis int) *RunnerConfig {
	cfg := DefaultRunnerConfig()
	cfg.Name = "test_runner"
	cfg.Driver = DriverMemory
	cfg.Endpoints = testEndpoints()
	cfg.Workers = workers
	cfg.BatchSize = 10
	cfg.RunDurationMillis = durationMillis
	return cfg
}

// manualClock fires timers only when advanced
type manualClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*manualTimer
}

type manualTimer struct {
	c       *manualClock
	at      time.Time
	f       func()
	done    bool
	stopped bool
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{c: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*manualTimer
	for _, t := range c.timers {
		if !t.done && !t.stopped && !t.at.After(c.now) {
			t.done = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()
	for _, t := range due {
		t.f()
	}
}

func (t *manualTimer) Stop() bool {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	if t.done || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

func requireFired(t *testing.T, s *Signal) {
	select {
	case <-s.Done():
	case <-time.After(5 * time.Second):
		require.FailNow(t, "signal not fired")
	}
	require.True(t, s.IsSet())
}
