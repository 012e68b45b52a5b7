// Copyright (c) 2023 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package common

import (
	"context"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
)

const (
	traceIdLogField = "traceID"
	tracerName      = "playthrough-rules"
)

// Scope carries the span and the trace-tagged logger of one scheduler operation.
// Ctx must be passed to every call made on behalf of the operation.
type Scope struct {
	Ctx  context.Context
	Log  *log.Entry
	span oteltrace.Span
}

// StartScope opens a span named name under ctx.
func StartScope(ctx context.Context, name string) *Scope {
	spanCtx, span := otel.Tracer(tracerName).Start(ctx, name)

	return &Scope{
		Ctx:  spanCtx,
		Log:  log.WithField(traceIdLogField, span.SpanContext().TraceID().String()),
		span: span,
	}
}

// Tag sets key on the span and adds it as a field to every later log line.
func (s *Scope) Tag(key, value string) {
	s.span.SetAttributes(attribute.String(key, value))
	s.Log = s.Log.WithField(key, value)
}

// Fail records err on the span. A rejection is an expected outcome, such as a
// rate-limited pick, and is kept as an event without marking the span failed.
func (s *Scope) Fail(err error, code string, rejection bool) {
	if rejection {
		s.span.AddEvent("rejected", oteltrace.WithAttributes(
			attribute.String("error.code", code),
			attribute.String("error.message", err.Error()),
		))
		return
	}
	s.span.RecordError(err)
	s.span.SetStatus(codes.Error, err.Error())
}

// Finish ends the span.
func (s *Scope) Finish() {
	s.span.End()
}
