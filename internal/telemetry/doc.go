// Package telemetry wires the OpenTelemetry SDK into lexd.
//
// Every instrumented package creates its tracer through the global
// provider (otel.Tracer("lexd.<pkg>")); those tracers are inert until
// this package installs real providers. New builds OTLP exporters for
// traces and metrics, installs them globally, and hands back a handle
// for flushing and shutdown.
//
// # Usage
//
//	tel, err := telemetry.New(ctx, telemetry.Config{Enabled: true}, logger)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
// # Error handling
//
// Export failures never crash lexd. If an exporter cannot be built the
// instance degrades: spans and metrics stay no-ops, the degradation is
// logged once, and Health reports it.
//
// # Testing
//
// NewTestTelemetry records spans in memory:
//
//	tt := telemetry.NewTestTelemetry()
//	_, span := tt.Tracer("test").Start(ctx, "classify.span")
//	span.End()
//	tt.AssertSpanExists(t, "classify.span")
package telemetry
