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
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// injectedError fails statements with matching prefix once more than after of them were seen
type injectedError struct {
	prefix string
	after  int
	// times left to fail, negative is unlimited
	times int
	seen  int
	err   error
}

// MemoryStore is an in-process Dialer used for dry runs and tests.
// Only the statements produced by workloads are understood:
// CREATE TABLE, DROP TABLE, REFRESH TABLE, INSERT ... VALUES and SELECT count(*).
type MemoryStore struct {
	mu          sync.Mutex
	tables      map[string]int64
	down        map[Endpoint]bool
	injected    []*injectedError
	execLatency time.Duration
	noCountRow  bool
	dials       []Endpoint
	statements  []string
	inserts     int64

	nextConnID atomic.Int64
	open       atomic.Int32
	maxOpen    atomic.Int32
	overlaps   atomic.Int32
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tables: make(map[string]int64),
		down:   make(map[Endpoint]bool),
	}
}

// SetDown makes ep refuse new connections, already opened ones keep working
func (m *MemoryStore) SetDown(ep Endpoint, down bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.down[ep] = down
}

// SetExecLatency delays every Exec
func (m *MemoryStore) SetExecLatency(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.execLatency = d
}

// SetNoCountRow makes count queries return no row
func (m *MemoryStore) SetNoCountRow(v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.noCountRow = v
}

// InjectError fails statements starting with prefix (case-insensitive) once the first "after" ones succeeded,
// at most times statements fail, times <= 0 fails all of them
func (m *MemoryStore) InjectError(prefix string, after, times int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if times <= 0 {
		times = -1
	}
	m.injected = append(m.injected, &injectedError{prefix: prefix, after: after, times: times, err: err})
}

// Preload creates table with n committed rows
func (m *MemoryStore) Preload(table string, n int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tables[table] = n
}

// Rows committed rows of table
func (m *MemoryStore) Rows(table string) (int64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.tables[table]
	return n, ok
}

// Dials endpoints connected to, in order, refused ones included
func (m *MemoryStore) Dials() []Endpoint {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Endpoint(nil), m.dials...)
}

// Statements executed non insert statements, in order
func (m *MemoryStore) Statements() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.statements...)
}

// Inserts executed insert statements, committed or not
func (m *MemoryStore) Inserts() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inserts
}

// OpenConns connections not yet closed
func (m *MemoryStore) OpenConns() int {
	return int(m.open.Load())
}

// MaxOpenConns the highest number of connections open at the same time
func (m *MemoryStore) MaxOpenConns() int {
	return int(m.maxOpen.Load())
}

// Overlaps calls made on a connection while another call on it was in progress
func (m *MemoryStore) Overlaps() int {
	return int(m.overlaps.Load())
}

func (m *MemoryStore) Dial(ctx context.Context, ep Endpoint) (Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dials = append(m.dials, ep)
	if m.down[ep] {
		return nil, fmt.Errorf(errEndpointIsDown, ep)
	}
	// dials are serialized by mu, so the plain compare is enough
	if n := m.open.Add(1); n > m.maxOpen.Load() {
		m.maxOpen.Store(n)
	}
	return &memConn{
		id:         m.nextConnID.Add(1),
		store:      m,
		ep:         ep,
		autoCommit: true,
		pending:    make(map[string]int64),
	}, nil
}

// checkInjected must be called with mu held
func (m *MemoryStore) checkInjected(stmt string) error {
	for _, inj := range m.injected {
		if len(stmt) < len(inj.prefix) || !strings.EqualFold(stmt[:len(inj.prefix)], inj.prefix) {
			continue
		}
		inj.seen++
		if inj.seen > inj.after && inj.times != 0 {
			if inj.times > 0 {
				inj.times--
			}
			return inj.err
		}
	}
	return nil
}

type memConn struct {
	id         int64
	store      *MemoryStore
	ep         Endpoint
	busy       atomic.Bool
	autoCommit bool
	closed     atomic.Bool
	pending    map[string]int64
}

func (c *memConn) enter() func() {
	if !c.busy.CompareAndSwap(false, true) {
		c.store.overlaps.Add(1)
		return func() {}
	}
	return func() { c.busy.Store(false) }
}

func (c *memConn) Exec(ctx context.Context, stmt string) error {
	defer c.enter()()
	if c.closed.Load() {
		return errConnClosed
	}
	c.store.mu.Lock()
	latency := c.store.execLatency
	c.store.mu.Unlock()
	if latency > 0 {
		t := time.NewTimer(latency)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
	stmt = strings.TrimSpace(stmt)
	m := c.store
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkInjected(stmt); err != nil {
		return err
	}
	words := strings.Fields(stmt)
	if len(words) < 3 {
		return fmt.Errorf("syntax error: %q", stmt)
	}
	verb := strings.ToUpper(words[0])
	if verb != "INSERT" {
		m.statements = append(m.statements, stmt)
	}
	switch verb {
	case "CREATE":
		table := tableAfter(words, "TABLE")
		if _, ok := m.tables[table]; ok {
			if strings.Contains(strings.ToUpper(stmt), "IF NOT EXISTS") {
				return nil
			}
			return fmt.Errorf("relation %s already exists", table)
		}
		m.tables[table] = 0
	case "DROP":
		table := tableAfter(words, "TABLE")
		if _, ok := m.tables[table]; !ok && !strings.Contains(strings.ToUpper(stmt), "IF EXISTS") {
			return fmt.Errorf("relation %s unknown", table)
		}
		delete(m.tables, table)
	case "REFRESH":
		table := tableAfter(words, "TABLE")
		if _, ok := m.tables[table]; !ok {
			return fmt.Errorf("relation %s unknown", table)
		}
	case "INSERT":
		table := tableAfter(words, "INTO")
		if _, ok := m.tables[table]; !ok {
			return fmt.Errorf("relation %s unknown", table)
		}
		rows, err := countTuples(stmt)
		if err != nil {
			return err
		}
		m.inserts++
		if c.autoCommit {
			m.tables[table] += rows
		} else {
			c.pending[table] += rows
		}
	default:
		return fmt.Errorf("unsupported statement: %s", words[0])
	}
	return nil
}

func (c *memConn) QueryCount(_ context.Context, stmt string) (int64, bool, error) {
	defer c.enter()()
	if c.closed.Load() {
		return 0, false, errConnClosed
	}
	m := c.store
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkInjected(stmt); err != nil {
		return 0, false, err
	}
	m.statements = append(m.statements, stmt)
	if m.noCountRow {
		return 0, false, nil
	}
	words := strings.Fields(stmt)
	if len(words) < 4 || !strings.EqualFold(words[0], "SELECT") || !strings.EqualFold(words[1], "count(*)") {
		return 0, false, fmt.Errorf("unsupported query: %q", stmt)
	}
	table := tableAfter(words, "FROM")
	n, ok := m.tables[table]
	if !ok {
		return 0, false, fmt.Errorf("relation %s unknown", table)
	}
	return n, true, nil
}

func (c *memConn) DisableAutoCommit(_ context.Context) error {
	defer c.enter()()
	if c.closed.Load() {
		return errConnClosed
	}
	c.autoCommit = false
	return nil
}

func (c *memConn) Commit(_ context.Context) error {
	defer c.enter()()
	if c.closed.Load() {
		return errConnClosed
	}
	if c.autoCommit {
		return errNotAutoCommit
	}
	m := c.store
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkInjected("COMMIT"); err != nil {
		return err
	}
	for table, rows := range c.pending {
		// table dropped by someone else in the meantime
		if _, ok := m.tables[table]; ok {
			m.tables[table] += rows
		}
	}
	c.pending = make(map[string]int64)
	return nil
}

func (c *memConn) Close(_ context.Context) error {
	defer c.enter()()
	if !c.closed.CompareAndSwap(false, true) {
		return errConnClosed
	}
	c.pending = nil
	c.store.open.Add(-1)
	return nil
}

func (c *memConn) IsClosed() bool {
	return c.closed.Load()
}

func (c *memConn) String() string {
	return fmt.Sprintf("memconn #%d to %s", c.id, c.ep)
}

// tableAfter returns the identifier following keyword, skipping IF [NOT] EXISTS
func tableAfter(words []string, keyword string) string {
	for i, w := range words {
		if !strings.EqualFold(w, keyword) {
			continue
		}
		rest := words[i+1:]
		for len(rest) > 0 {
			u := strings.ToUpper(rest[0])
			if u != "IF" && u != "NOT" && u != "EXISTS" {
				break
			}
			rest = rest[1:]
		}
		if len(rest) == 0 {
			return ""
		}
		name := rest[0]
		if i := strings.IndexByte(name, '('); i >= 0 {
			name = name[:i]
		}
		return name
	}
	return ""
}

var errNoValues = errors.New("insert has no VALUES clause")

// countTuples counts top level parenthesised tuples after VALUES, quoted text is skipped
func countTuples(stmt string) (int64, error) {
	idx := strings.Index(strings.ToUpper(stmt), "VALUES")
	if idx < 0 {
		return 0, errNoValues
	}
	var (
		rows   int64
		depth  int
		quoted bool
	)
	for _, ch := range stmt[idx+len("VALUES"):] {
		switch {
		case ch == '\'':
			quoted = !quoted
		case quoted:
		case ch == '(':
			if depth == 0 {
				rows++
			}
			depth++
		case ch == ')':
			depth--
			if depth < 0 {
				return 0, fmt.Errorf("unbalanced parentheses in insert")
			}
		}
	}
	if depth != 0 || quoted {
		return 0, fmt.Errorf("unterminated tuple in insert")
	}
	return rows, nil
}
