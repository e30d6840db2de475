// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dbquery

import (
	"context"
	"database/sql"
	"time"
)

// DB wraps a database/sql handle and reports every executed query to the
// Listener. Queries run inside transactions from BeginTx and through
// statements from PrepareContext are reported as well. The context-less
// methods of the embedded handle are not traced.
type DB struct {
	*sql.DB
	listener *Listener
}

// WrapDB returns a DB reporting queries of db to l.
func WrapDB(db *sql.DB, l *Listener) *DB {
	return &DB{
		DB:       db,
		listener: l,
	}
}

func (db *DB) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	start := db.listener.now()
	r, err := db.DB.ExecContext(ctx, query, args...)
	db.listener.report(ctx, query, args, start, err)
	return r, err
}

func (db *DB) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	start := db.listener.now()
	rows, err := db.DB.QueryContext(ctx, query, args...)
	db.listener.report(ctx, query, args, start, err)
	return rows, err
}

// QueryRowContext reports the query when the row is returned, together with
// the error of the row if there is one.
func (db *DB) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	start := db.listener.now()
	row := db.DB.QueryRowContext(ctx, query, args...)
	db.listener.report(ctx, query, args, start, row.Err())
	return row
}

// BeginTx starts a transaction whose queries are reported to the Listener.
func (db *DB) BeginTx(ctx context.Context, opts *sql.TxOptions) (*Tx, error) {
	tx, err := db.DB.BeginTx(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &Tx{Tx: tx, listener: db.listener}, nil
}

// PrepareContext prepares a statement whose executions are reported to the
// Listener with the prepared query.
func (db *DB) PrepareContext(ctx context.Context, query string) (*Stmt, error) {
	stmt, err := db.DB.PrepareContext(ctx, query)
	if err != nil {
		return nil, err
	}
	return &Stmt{Stmt: stmt, query: query, listener: db.listener}, nil
}

// Tx wraps a database/sql transaction.
type Tx struct {
	*sql.Tx
	listener *Listener
}

func (tx *Tx) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	start := tx.listener.now()
	r, err := tx.Tx.ExecContext(ctx, query, args...)
	tx.listener.report(ctx, query, args, start, err)
	return r, err
}

func (tx *Tx) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	start := tx.listener.now()
	rows, err := tx.Tx.QueryContext(ctx, query, args...)
	tx.listener.report(ctx, query, args, start, err)
	return rows, err
}

func (tx *Tx) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	start := tx.listener.now()
	row := tx.Tx.QueryRowContext(ctx, query, args...)
	tx.listener.report(ctx, query, args, start, row.Err())
	return row
}

// PrepareContext prepares a statement within the transaction.
func (tx *Tx) PrepareContext(ctx context.Context, query string) (*Stmt, error) {
	stmt, err := tx.Tx.PrepareContext(ctx, query)
	if err != nil {
		return nil, err
	}
	return &Stmt{Stmt: stmt, query: query, listener: tx.listener}, nil
}

// Stmt wraps a prepared database/sql statement.
type Stmt struct {
	*sql.Stmt
	query    string
	listener *Listener
}

func (s *Stmt) ExecContext(ctx context.Context, args ...interface{}) (sql.Result, error) {
	start := s.listener.now()
	r, err := s.Stmt.ExecContext(ctx, args...)
	s.listener.report(ctx, s.query, args, start, err)
	return r, err
}

func (s *Stmt) QueryContext(ctx context.Context, args ...interface{}) (*sql.Rows, error) {
	start := s.listener.now()
	rows, err := s.Stmt.QueryContext(ctx, args...)
	s.listener.report(ctx, s.query, args, start, err)
	return rows, err
}

func (s *Stmt) QueryRowContext(ctx context.Context, args ...interface{}) *sql.Row {
	start := s.listener.now()
	row := s.Stmt.QueryRowContext(ctx, args...)
	s.listener.report(ctx, s.query, args, start, row.Err())
	return row
}

func (l *Listener) report(ctx context.Context, query string, args []interface{}, start time.Time, err error) {
	l.QueryExecuted(ctx, QueryExecuted{
		SQL:      query,
		Bindings: args,
		Duration: l.now().Sub(start),
		Err:      err,
	})
}
