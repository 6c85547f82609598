// Package tracing wraps the global OpenTelemetry tracer for service spans.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	dErrors "credreg/pkg/domain-errors"
)

// Tracer returns a named tracer from the global provider. Without a
// configured provider spans are no-ops.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

// Start opens a span and returns a finisher that records *errp. Domain
// rejections are tagged with their code but do not mark the span failed;
// only internal errors do.
//
//	ctx, end := tracing.Start(ctx, s.tracer, "credential.CreateRecord")
//	defer end(&err)
func Start(ctx context.Context, tracer trace.Tracer, name string, attrs ...attribute.KeyValue) (context.Context, func(errp *error)) {
	ctx, span := tracer.Start(ctx, name, trace.WithAttributes(attrs...))
	return ctx, func(errp *error) {
		if errp != nil && *errp != nil {
			code := dErrors.CodeOf(*errp)
			span.SetAttributes(attribute.String("error.code", string(code)))
			if code == dErrors.CodeInternal || code == dErrors.CodeTimeout {
				span.RecordError(*errp)
				span.SetStatus(codes.Error, string(code))
			}
		}
		span.End()
	}
}
