/*
 * // Copyright 2020 Insolar Network Ltd.
 * // All rights reserved.
 * // This material is licensed under the Insolar License version 1.0,
 * // available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.
 */

package insertbot

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEndpointUnreachable     = errors.New("database is unreachable")
	ErrSchemaPreparationFailed = errors.New("schema preparation failed")
	ErrWorkerExecutionFailed   = errors.New("worker execution failed")
	ErrCountUnavailable        = errors.New("count query returned no row")
	ErrUnknownWorkload         = errors.New("unknown workload")

	errNoEndpoints    = errors.New("endpoint pool is empty")
	errUnknownDriver  = "unknown driver: %s"
	errInvalidConfig  = "invalid config: %s"
	errFactoryClosed  = errors.New("connection factory has no endpoints")
	errNotAutoCommit  = errors.New("commit called while in autocommit mode")
	errConnClosed     = errors.New("connection is closed")
	errEndpointIsDown = "endpoint %s refused connection"
	errRunnerUsed     = errors.New("runner can be run only once")
)

// Attempt is one connection attempt made by the factory
type Attempt struct {
	Endpoint Endpoint
	Err      error
}

// UnreachableError is returned when every endpoint refused a connection in one Acquire call
type UnreachableError struct {
	Attempts []Attempt
}

func (e *UnreachableError) Error() string {
	tried := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		tried = append(tried, fmt.Sprintf("%s: %v", a.Endpoint, a.Err))
	}
	return fmt.Sprintf("%s, tried [%s]", ErrEndpointUnreachable, strings.Join(tried, "; "))
}

func (e *UnreachableError) Is(target error) bool {
	return target == ErrEndpointUnreachable
}

// WorkerError is a fatal failure of one insert worker
type WorkerError struct {
	Worker int
	// Op is one of acquire, autocommit, exec, commit
	Op  string
	Err error
}

func (e *WorkerError) Error() string {
	return fmt.Sprintf("worker %d: %s: %v", e.Worker, e.Op, e.Err)
}

func (e *WorkerError) Unwrap() error {
	return e.Err
}

func (e *WorkerError) Is(target error) bool {
	// acquire failures keep their own identity (ErrEndpointUnreachable)
	return target == ErrWorkerExecutionFailed && e.Op != opAcquire
}
