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
	"sync/atomic"
)

// Conn is a live session to exactly one endpoint, it is never shared between goroutines
type Conn interface {
	// Exec executes one statement
	Exec(ctx context.Context, stmt string) error
	// QueryCount reads a single scalar, ok is false when the query returned no row
	QueryCount(ctx context.Context, stmt string) (n int64, ok bool, err error)
	// DisableAutoCommit switches the session to explicit commit
	DisableAutoCommit(ctx context.Context) error
	// Commit commits everything executed since DisableAutoCommit
	Commit(ctx context.Context) error
	// Close releases the session, uncommitted work is discarded
	Close(ctx context.Context) error
	// IsClosed reports a session that was closed or lost its transport
	IsClosed() bool
}

// Dialer opens sessions to a single endpoint
type Dialer interface {
	Dial(ctx context.Context, ep Endpoint) (Conn, error)
}

// Lease is a connection handed out by ConnectionFactory
type Lease struct {
	Conn
	// Endpoint the connection is bound to
	Endpoint Endpoint
	// Tried every attempt made during acquisition, the last one succeeded
	Tried []Attempt
}

// ConnectionFactory resolves one live connection per request, failing over across the endpoint pool
type ConnectionFactory struct {
	endpoints  []Endpoint
	dialer     Dialer
	roundRobin bool
	// rrIdx is shared by all callers of this factory
	rrIdx atomic.Uint64
	L     *Logger
}

// NewConnectionFactory creates factory, endpoints are copied and never modified afterwards
func NewConnectionFactory(endpoints []Endpoint, d Dialer, roundRobin bool, l *Logger) *ConnectionFactory {
	eps := make([]Endpoint, len(endpoints))
	copy(eps, endpoints)
	if l == nil {
		l = NewNopLogger()
	}
	return &ConnectionFactory{
		endpoints:  eps,
		dialer:     d,
		roundRobin: roundRobin,
		L:          l,
	}
}

// Endpoints returns a copy of the pool
func (f *ConnectionFactory) Endpoints() []Endpoint {
	eps := make([]Endpoint, len(f.endpoints))
	copy(eps, f.endpoints)
	return eps
}

// URI describes the pool for reports
func (f *ConnectionFactory) URI() string {
	if len(f.endpoints) == 0 {
		return ""
	}
	s := f.endpoints[0].String()
	for _, ep := range f.endpoints[1:] {
		s += "," + ep.String()
	}
	return s
}

// Acquire returns the first endpoint accepting a connection, trying the whole pool at most once.
// ErrEndpointUnreachable is returned only after every endpoint refused, cancellation wraps ctx.Err().
func (f *ConnectionFactory) Acquire(ctx context.Context) (*Lease, error) {
	size := len(f.endpoints)
	if size == 0 {
		return nil, errFactoryClosed
	}
	start := 0
	if f.roundRobin {
		start = int((f.rrIdx.Add(1) - 1) % uint64(size))
	}
	tried := make([]Attempt, 0, size)
	for i := 0; i < size; i++ {
		ep := f.endpoints[(start+i)%size]
		f.L.Debugf("connecting to: %s", ep)
		conn, err := f.dialer.Dial(ctx, ep)
		tried = append(tried, Attempt{Endpoint: ep, Err: err})
		if err != nil {
			promConnectFailures.WithLabelValues(ep.String()).Inc()
			f.L.Warnf("failed to connect to: %s, %v", ep, err)
			// an abandoned pass says nothing about the endpoints left
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, fmt.Errorf("acquire stopped after %d of %d endpoints: %w", len(tried), size, ctxErr)
			}
			continue
		}
		return &Lease{Conn: conn, Endpoint: ep, Tried: tried}, nil
	}
	return nil, &UnreachableError{Attempts: tried}
}
