/*
 * // Copyright 2020 Insolar Network Ltd.
 * // All rights reserved.
 * // This material is licensed under the Insolar License version 1.0,
 * // available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.
 */

package workloads

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/insolar/insertbot"
)

const (
	SensorsTable        = "doc.sensors"
	DefaultSensorShards = 6

	numClientIDs = 21
	numSensorIDs = 1000
	maxValue     = 1_000_000.0
)

func init() {
	insertbot.RegisterWorkload("sensors", NewSensors(DefaultSensorShards))
}

var seedSeq atomic.Int64

func newRand() *rand.Rand {
	return rand.New(rand.NewSource(time.Now().UnixNano() + seedSeq.Add(1)))
}

// Sensors inserts random readings of 1000 sensors belonging to 21 clients
type Sensors struct {
	Shards int
	rnd    *rand.Rand
	sb     strings.Builder
}

func NewSensors(shards int) *Sensors {
	if shards <= 0 {
		shards = DefaultSensorShards
	}
	return &Sensors{Shards: shards, rnd: newRand()}
}

func (s *Sensors) TableName() string {
	return SensorsTable
}

func (s *Sensors) InsertPrefix() string {
	return "INSERT INTO " + SensorsTable + "(client_id, sensor_id, ts, value) VALUES"
}

func (s *Sensors) DropStatement() string {
	return "DROP TABLE IF EXISTS " + SensorsTable
}

func (s *Sensors) CreateStatement() string {
	return fmt.Sprintf(`CREATE TABLE %s (
    client_id INTEGER,
    sensor_id TEXT,
    ts TIMESTAMPTZ,
    value DOUBLE PRECISION INDEX OFF,
    PRIMARY KEY (client_id, sensor_id, ts)
)
CLUSTERED INTO %d SHARDS
WITH (
    number_of_replicas = 0,
    "translog.durability" = 'ASYNC',
    "translog.sync_interval" = 5000,
    refresh_interval = 10000,
    "store.type" = 'hybridfs'
)`, SensorsTable, s.Shards)
}

func (s *Sensors) NextBatch(batchSize int) string {
	s.sb.Reset()
	s.sb.WriteString(s.InsertPrefix())
	for i := 0; i < batchSize; i++ {
		if i > 0 {
			s.sb.WriteString(",")
		}
		s.sb.WriteString(" (")
		s.sb.WriteString(strconv.Itoa(s.rnd.Intn(numClientIDs)))
		s.sb.WriteString(", 'sensor_")
		s.sb.WriteString(strconv.Itoa(s.rnd.Intn(numSensorIDs)))
		s.sb.WriteString("', '")
		s.sb.WriteString(time.Now().UTC().Format(time.RFC3339Nano))
		s.sb.WriteString("', ")
		s.sb.WriteString(strconv.FormatFloat(s.rnd.Float64()*maxValue, 'f', -1, 64))
		s.sb.WriteString(")")
	}
	return s.sb.String()
}

func (s *Sensors) Clone() insertbot.Workload {
	return NewSensors(s.Shards)
}

// WithShards returns a copy creating the table with n shards
func (s *Sensors) WithShards(n int) insertbot.Workload {
	return NewSensors(n)
}
