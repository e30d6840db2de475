// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dbquery

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

var _ pgx.QueryTracer = (*PgxTracer)(nil)

type pgxQueryKey struct{}

type pgxQuery struct {
	sql   string
	args  []interface{}
	start time.Time
}

// PgxTracer reports queries of a pgx connection to the Listener. It is set
// as the Tracer of pgx.ConnConfig.
type PgxTracer struct {
	listener *Listener
}

// NewPgxTracer returns a pgx.QueryTracer for the listener.
func NewPgxTracer(l *Listener) *PgxTracer {
	return &PgxTracer{listener: l}
}

func (t *PgxTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	return context.WithValue(ctx, pgxQueryKey{}, pgxQuery{
		sql:   data.SQL,
		args:  data.Args,
		start: t.listener.now(),
	})
}

func (t *PgxTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	q, ok := ctx.Value(pgxQueryKey{}).(pgxQuery)
	if !ok {
		return
	}
	t.listener.QueryExecuted(ctx, QueryExecuted{
		SQL:      q.sql,
		Bindings: q.args,
		Duration: t.listener.now().Sub(q.start),
		Err:      data.Err,
	})
}
