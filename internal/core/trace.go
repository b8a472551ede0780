package core

import (
	"context"
	"strings"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"goirc/util"
)

// spanLog exports finished spans as debug lines on a Logger.
type spanLog struct {
	logger *util.Logger
}

func (e spanLog) ExportSpans(_ context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, s := range spans {
		attrs := make([]string, 0, len(s.Attributes()))
		for _, kv := range s.Attributes() {
			attrs = append(attrs, string(kv.Key)+"="+kv.Value.Emit())
		}
		e.logger.Debug("%s %s status=%s %s", s.Name(),
			s.EndTime().Sub(s.StartTime()), s.Status().Code, strings.Join(attrs, " "))
	}
	return nil
}

func (spanLog) Shutdown(context.Context) error { return nil }

// newTracerProvider exports every span synchronously to logger.
func newTracerProvider(logger *util.Logger) *sdktrace.TracerProvider {
	return sdktrace.NewTracerProvider(sdktrace.WithSyncer(spanLog{logger: logger}))
}
