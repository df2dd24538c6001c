/*
 * // Copyright 2020 Insolar Network Ltd.
 * // All rights reserved.
 * // This material is licensed under the Insolar License version 1.0,
 * // available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.
 */

package insertbot

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
)

func TestCommonSQLDialerDSN(t *testing.T) {
	ep := Endpoint{Host: "db-1", Port: 4000}

	d := &SQLDialer{Driver: DriverMySQL, User: "root", Password: "secret", Database: "doc"}
	dsn, err := d.DSN(ep)
	require.NoError(t, err)
	require.Contains(t, dsn, "root:secret@tcp(db-1:4000)/doc")

	d = &SQLDialer{Driver: DriverPostgres, User: "crate", Database: "doc"}
	dsn, err = d.DSN(ep)
	require.NoError(t, err)
	require.Equal(t, "postgres://crate@db-1:4000/doc?sslmode=disable", dsn)

	d = &SQLDialer{Driver: "oracle"}
	_, err = d.DSN(ep)
	require.EqualError(t, err, "unknown driver: oracle")
}

func TestCommonPgxDialerConnString(t *testing.T) {
	d := &PgxDialer{User: "crate", Password: "p@ss"}
	cs := d.connString(Endpoint{Host: "crate-1", Port: 5432})
	cfg, err := pgx.ParseConfig(cs)
	require.NoError(t, err)
	require.Equal(t, "crate-1", cfg.Host)
	require.Equal(t, uint16(5432), cfg.Port)
	require.Equal(t, "crate", cfg.User)
	require.Equal(t, "p@ss", cfg.Password)
}

func TestCommonNewDialer(t *testing.T) {
	cfg := DefaultRunnerConfig()
	for driver, expected := range map[string]interface{}{
		DriverPgx:      &PgxDialer{},
		DriverPostgres: &SQLDialer{},
		DriverMySQL:    &SQLDialer{},
		DriverMemory:   &MemoryStore{},
	} {
		cfg.Driver = driver
		d, err := NewDialer(cfg)
		require.NoError(t, err)
		require.IsType(t, expected, d, driver)
	}
	cfg.Driver = "oracle"
	_, err := NewDialer(cfg)
	require.Error(t, err)
}

func TestCommonDialersFailFastOnDeadEndpoint(t *testing.T) {
	dead := Endpoint{Host: "127.0.0.1", Port: 1}
	for _, d := range []Dialer{
		&PgxDialer{User: "crate"},
		&SQLDialer{Driver: DriverPostgres, User: "crate"},
		&SQLDialer{Driver: DriverMySQL, User: "root"},
	} {
		_, err := d.Dial(context.Background(), dead)
		require.Error(t, err)
	}
}
