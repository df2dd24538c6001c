/*
 * // Copyright 2020 Insolar Network Ltd.
 * // All rights reserved.
 * // This material is licensed under the Insolar License version 1.0,
 * // available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.
 */

package insertbot

// Workload must be implemented by every insert scenario.
// Statements are consumed verbatim by the runner and the workers.
type Workload interface {
	// TableName fully qualified target table
	TableName() string
	// CreateStatement creates the target table
	CreateStatement() string
	// DropStatement drops the target table if it exists
	DropStatement() string
	// InsertPrefix is the "INSERT INTO t(cols) VALUES" part of every batch
	InsertPrefix() string
	// NextBatch returns one complete multi-row insert with batchSize rows
	NextBatch(batchSize int) string
	// Clone should return a generator with its own random state, one per worker
	Clone() Workload
}

// BatchSampler is implemented by workloads whose clones share state, e.g. an id sequence.
// SampleBatch must return a representative batch without advancing that state.
type BatchSampler interface {
	SampleBatch(batchSize int) string
}

// ApproxInsertSize length of one generated batch statement
func ApproxInsertSize(w Workload, batchSize int) int {
	if s, ok := w.(BatchSampler); ok {
		return len(s.SampleBatch(batchSize))
	}
	return len(w.Clone().NextBatch(batchSize))
}

func countStatement(w Workload) string {
	return "SELECT count(*) FROM " + w.TableName()
}

func refreshStatement(w Workload) string {
	return "REFRESH TABLE " + w.TableName()
}
