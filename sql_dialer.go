/*
 * // Copyright 2020 Insolar Network Ltd.
 * // All rights reserved.
 * // This material is licensed under the Insolar License version 1.0,
 * // available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.
 */

package insertbot

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net/url"

	"github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
)

// SQLDialer connects through database/sql, one *sql.DB limited to a single connection per Conn
type SQLDialer struct {
	// Driver postgres or mysql
	Driver   string
	User     string
	Password string
	Database string
}

// DSN data source name for ep in the driver's format
func (d *SQLDialer) DSN(ep Endpoint) (string, error) {
	switch d.Driver {
	case DriverMySQL:
		cfg := mysql.NewConfig()
		cfg.User = d.User
		cfg.Passwd = d.Password
		cfg.Net = "tcp"
		cfg.Addr = ep.String()
		cfg.DBName = d.Database
		return cfg.FormatDSN(), nil
	case DriverPostgres:
		u := &url.URL{
			Scheme:   "postgres",
			Host:     ep.String(),
			Path:     "/" + d.Database,
			RawQuery: "sslmode=disable",
		}
		if d.Password != "" {
			u.User = url.UserPassword(d.User, d.Password)
		} else if d.User != "" {
			u.User = url.User(d.User)
		}
		return u.String(), nil
	default:
		return "", fmt.Errorf(errUnknownDriver, d.Driver)
	}
}

func (d *SQLDialer) Dial(ctx context.Context, ep Endpoint) (Conn, error) {
	dsn, err := d.DSN(ep)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(d.Driver, dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	conn, err := db.Conn(ctx)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	// sql.Open is lazy, ping to fail over on a dead endpoint right away
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		_ = db.Close()
		return nil, err
	}
	return &sqlConn{db: db, conn: conn, autoCommit: true}, nil
}

type sqlConn struct {
	db         *sql.DB
	conn       *sql.Conn
	autoCommit bool
	tx         *sql.Tx
	// closed by Close or lost, once set the session is never reused
	closed bool
}

// track marks the session lost on errors after which database/sql drops the connection
func (c *sqlConn) track(err error) error {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) || errors.Is(err, mysql.ErrInvalidConn) {
		c.closed = true
	}
	return err
}

func (c *sqlConn) begin(ctx context.Context) error {
	if c.autoCommit || c.tx != nil {
		return nil
	}
	tx, err := c.conn.BeginTx(ctx, nil)
	if err != nil {
		return c.track(err)
	}
	c.tx = tx
	return nil
}

func (c *sqlConn) Exec(ctx context.Context, stmt string) error {
	if err := c.begin(ctx); err != nil {
		return err
	}
	if c.tx != nil {
		_, err := c.tx.ExecContext(ctx, stmt)
		return c.track(err)
	}
	_, err := c.conn.ExecContext(ctx, stmt)
	return c.track(err)
}

func (c *sqlConn) QueryCount(ctx context.Context, stmt string) (int64, bool, error) {
	if err := c.begin(ctx); err != nil {
		return 0, false, err
	}
	var row *sql.Row
	if c.tx != nil {
		row = c.tx.QueryRowContext(ctx, stmt)
	} else {
		row = c.conn.QueryRowContext(ctx, stmt)
	}
	var n int64
	if err := row.Scan(&n); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, c.track(err)
	}
	return n, true, nil
}

func (c *sqlConn) DisableAutoCommit(_ context.Context) error {
	c.autoCommit = false
	return nil
}

func (c *sqlConn) Commit(_ context.Context) error {
	if c.autoCommit {
		return errNotAutoCommit
	}
	if c.tx == nil {
		return nil
	}
	tx := c.tx
	c.tx = nil
	return c.track(tx.Commit())
}

func (c *sqlConn) IsClosed() bool {
	return c.closed
}

func (c *sqlConn) Close(_ context.Context) error {
	c.closed = true
	if c.tx != nil {
		_ = c.tx.Rollback()
		c.tx = nil
	}
	if err := c.conn.Close(); err != nil {
		_ = c.db.Close()
		return err
	}
	return c.db.Close()
}

// NewDialer picks the Dialer for cfg.Driver
func NewDialer(cfg *RunnerConfig) (Dialer, error) {
	switch cfg.Driver {
	case DriverPgx, "":
		return &PgxDialer{User: cfg.User, Password: cfg.Password, Database: cfg.Database}, nil
	case DriverPostgres, DriverMySQL:
		return &SQLDialer{Driver: cfg.Driver, User: cfg.User, Password: cfg.Password, Database: cfg.Database}, nil
	case DriverMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf(errUnknownDriver, cfg.Driver)
	}
}
