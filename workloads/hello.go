/*
 * // Copyright 2020 Insolar Network Ltd.
 * // All rights reserved.
 * // This material is licensed under the Insolar License version 1.0,
 * // available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.
 */

package workloads

import (
	"math/rand"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/insolar/insertbot"
)

const HelloTable = "doc.hello"

func init() {
	insertbot.RegisterWorkload("hello", NewHello())
}

// Hello inserts rows with a sequential id shared by every clone
type Hello struct {
	nextID *atomic.Int64
	rnd    *rand.Rand
	sb     strings.Builder
}

func NewHello() *Hello {
	return &Hello{nextID: &atomic.Int64{}, rnd: newRand()}
}

func (h *Hello) TableName() string {
	return HelloTable
}

func (h *Hello) InsertPrefix() string {
	return "INSERT INTO " + HelloTable + "(id, avg_value, total_value) VALUES"
}

func (h *Hello) DropStatement() string {
	return "DROP TABLE IF EXISTS " + HelloTable
}

func (h *Hello) CreateStatement() string {
	return `CREATE TABLE IF NOT EXISTS ` + HelloTable + ` (
    id INTEGER,
    avg_value DOUBLE PRECISION,
    total_value BIGINT
)
CLUSTERED INTO 30 SHARDS
WITH (
    number_of_replicas = '0-2',
    refresh_interval = 1000,
    "translog.durability" = 'REQUEST',
    "write.wait_for_active_shards" = '1'
)`
}

func (h *Hello) NextBatch(batchSize int) string {
	h.sb.Reset()
	h.sb.WriteString(h.InsertPrefix())
	for i := 0; i < batchSize; i++ {
		if i > 0 {
			h.sb.WriteString(",")
		}
		h.sb.WriteString(" (")
		h.sb.WriteString(strconv.FormatInt(h.nextID.Add(1)-1, 10))
		h.sb.WriteString(", ")
		h.sb.WriteString(strconv.FormatFloat(h.rnd.Float64()*maxValue, 'f', -1, 64))
		h.sb.WriteString(", ")
		h.sb.WriteString(strconv.Itoa(h.rnd.Intn(1_000_000)))
		h.sb.WriteString(")")
	}
	return h.sb.String()
}

// SampleBatch renders a batch from a private copy of the sequence, ids handed to workers stay contiguous
func (h *Hello) SampleBatch(batchSize int) string {
	seq := &atomic.Int64{}
	seq.Store(h.nextID.Load())
	return (&Hello{nextID: seq, rnd: newRand()}).NextBatch(batchSize)
}

func (h *Hello) Clone() insertbot.Workload {
	return &Hello{nextID: h.nextID, rnd: newRand()}
}
