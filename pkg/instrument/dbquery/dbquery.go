// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package dbquery traces executed database queries. Queries are reported
// after they have been executed and their spans are back-dated by the query
// duration.
package dbquery

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	"github.com/opentracing/opentracing-go/log"
	"github.com/sett/tracer/pkg/spantag"
	"github.com/sett/tracer/pkg/switches"
	"github.com/sett/tracer/pkg/tracing"
)

// Span name and tags of database queries.
const (
	SpanName     = "db.query"
	TagStatement = "db.statement"
	TagQueryTime = "db.query_time"
)

// QueryExecuted describes a query after its execution.
type QueryExecuted struct {
	SQL      string
	Bindings []interface{}
	Duration time.Duration
	Err      error
}

// Listener records executed queries as spans of the logical unit of work
// when database tracing is switched on.
type Listener struct {
	starter *tracing.SpanStarter
	now     func() time.Time
}

// NewListener returns a Listener that starts spans with starter.
func NewListener(starter *tracing.SpanStarter) *Listener {
	return &Listener{
		starter: starter,
		now:     time.Now,
	}
}

// QueryExecuted records the query. The span ends now and starts the query
// duration earlier.
func (l *Listener) QueryExecuted(ctx context.Context, e QueryExecuted) {
	if !l.starter.IsEnabled(ctx, switches.DB) {
		return
	}

	end := l.now()
	span, ctx := l.starter.StartSpan(ctx, SpanName, tracing.KindClient, opentracing.StartTime(end.Add(-e.Duration)))
	ext.DBType.Set(span, "sql")
	span.SetTag(TagStatement, Interpolate(e.SQL, e.Bindings))
	span.SetTag(TagQueryTime, strconv.FormatFloat(float64(e.Duration)/float64(time.Millisecond), 'f', -1, 64)+" ms")
	l.starter.Record(ctx, spantag.DB, spantag.Data{Arguments: e.Bindings, Err: e.Err, Value: e}, span)

	if e.Err != nil {
		ext.Error.Set(span, true)
		span.LogFields(log.String("event", "error"), log.String("message", e.Err.Error()))
	}
	span.FinishWithOptions(opentracing.FinishOptions{FinishTime: end})
}

// Interpolate replaces positional placeholders of the statement, "?" or
// "$N", with the quoted bindings. Placeholders without a binding are kept.
func Interpolate(sql string, bindings []interface{}) string {
	if len(bindings) == 0 {
		return sql
	}

	var b strings.Builder
	b.Grow(len(sql))
	next := 0
	for i := 0; i < len(sql); i++ {
		switch c := sql[i]; c {
		case '?':
			if next < len(bindings) {
				b.WriteString(quote(bindings[next]))
				next++
				continue
			}
		case '$':
			j := i + 1
			for j < len(sql) && sql[j] >= '0' && sql[j] <= '9' {
				j++
			}
			if j > i+1 {
				n, err := strconv.Atoi(sql[i+1 : j])
				if err == nil && n >= 1 && n <= len(bindings) {
					b.WriteString(quote(bindings[n-1]))
					i = j - 1
					continue
				}
			}
		}
		b.WriteByte(sql[i])
	}
	return b.String()
}

func quote(v interface{}) string {
	switch v := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return "'" + string(v) + "'"
	case time.Time:
		return "'" + v.Format(time.RFC3339Nano) + "'"
	}
	return fmt.Sprintf("'%v'", v)
}
