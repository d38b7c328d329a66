// Package mtrace is a thin helper around go.opentelemetry.io/otel, mirroring
// the teacher's mopentelemetry.HandleSpanError span-annotation idiom.
package mtrace

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope used by every Artifortress span.
const TracerName = "github.com/sremani/Artifortress-sub001"

// Start opens a span named name under TracerName.
func Start(ctx context.Context, name string) (context.Context, trace.Span) {
	return otel.Tracer(TracerName).Start(ctx, name)
}

// RecordError marks span as failed with err, if err is non-nil.
func RecordError(span trace.Span, description string, err error) {
	if err == nil {
		return
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, description)
}
