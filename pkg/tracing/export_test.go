// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tracing

import "github.com/prometheus/client_golang/prometheus/testutil"

func (t *Tracer) RootSpanCount() float64      { return testutil.ToFloat64(t.metrics.RootSpanCount) }
func (t *Tracer) ChildSpanCount() float64     { return testutil.ToFloat64(t.metrics.ChildSpanCount) }
func (t *Tracer) ExtractCount() float64       { return testutil.ToFloat64(t.metrics.ExtractCount) }
func (t *Tracer) ExtractFailedCount() float64 { return testutil.ToFloat64(t.metrics.ExtractFailedCount) }
func (t *Tracer) FlushFailedCount() float64   { return testutil.ToFloat64(t.metrics.FlushFailedCount) }
func (t *Tracer) TagPanicCount() float64      { return testutil.ToFloat64(t.metrics.TagPanicCount) }
