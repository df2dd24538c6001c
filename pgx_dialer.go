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
	"net/url"

	"github.com/jackc/pgx/v5"
)

// PgxDialer connects over the PostgreSQL wire protocol, CrateDB speaks it on port 5432 by default
type PgxDialer struct {
	User     string
	Password string
	Database string
}

func (d *PgxDialer) connString(ep Endpoint) string {
	u := &url.URL{
		Scheme: "postgres",
		Host:   ep.String(),
		Path:   "/" + d.Database,
	}
	if d.Password != "" {
		u.User = url.UserPassword(d.User, d.Password)
	} else if d.User != "" {
		u.User = url.User(d.User)
	}
	q := url.Values{}
	q.Set("sslmode", "disable")
	u.RawQuery = q.Encode()
	return u.String()
}

func (d *PgxDialer) Dial(ctx context.Context, ep Endpoint) (Conn, error) {
	cfg, err := pgx.ParseConfig(d.connString(ep))
	if err != nil {
		return nil, err
	}
	// CrateDB has no server side prepared statement cache worth using for one-off batches
	cfg.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol
	conn, err := pgx.ConnectConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &pgxConn{conn: conn, autoCommit: true}, nil
}

type pgxConn struct {
	conn       *pgx.Conn
	autoCommit bool
	// tx is opened lazily by the first statement after a commit
	tx pgx.Tx
}

func (c *pgxConn) begin(ctx context.Context) error {
	if c.autoCommit || c.tx != nil {
		return nil
	}
	tx, err := c.conn.Begin(ctx)
	if err != nil {
		return err
	}
	c.tx = tx
	return nil
}

func (c *pgxConn) Exec(ctx context.Context, stmt string) error {
	if err := c.begin(ctx); err != nil {
		return err
	}
	if c.tx != nil {
		_, err := c.tx.Exec(ctx, stmt)
		return err
	}
	_, err := c.conn.Exec(ctx, stmt)
	return err
}

func (c *pgxConn) QueryCount(ctx context.Context, stmt string) (int64, bool, error) {
	if err := c.begin(ctx); err != nil {
		return 0, false, err
	}
	var row pgx.Row
	if c.tx != nil {
		row = c.tx.QueryRow(ctx, stmt)
	} else {
		row = c.conn.QueryRow(ctx, stmt)
	}
	var n int64
	if err := row.Scan(&n); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return n, true, nil
}

func (c *pgxConn) DisableAutoCommit(_ context.Context) error {
	if c.conn.IsClosed() {
		return errConnClosed
	}
	c.autoCommit = false
	return nil
}

func (c *pgxConn) Commit(ctx context.Context) error {
	if c.autoCommit {
		return errNotAutoCommit
	}
	if c.tx == nil {
		return nil
	}
	tx := c.tx
	c.tx = nil
	return tx.Commit(ctx)
}

func (c *pgxConn) IsClosed() bool {
	return c.conn.IsClosed()
}

func (c *pgxConn) Close(ctx context.Context) error {
	if c.tx != nil {
		_ = c.tx.Rollback(ctx)
		c.tx = nil
	}
	return c.conn.Close(ctx)
}
