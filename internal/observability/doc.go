// Package observability provides logging and tracing for the
// transformation service.
//
// Structured logging is built on zap behind the Logger interface;
// distributed tracing uses OpenTelemetry with OTLP export. Prometheus
// collectors live next to the code they measure and are registered
// centrally at startup.
//
// # Logging
//
// The Logger interface provides structured logging:
//
//	logger, err := observability.NewLogger(observability.DefaultLogConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer logger.Sync()
//
//	logger.Info("template activated",
//	    observability.String("consumer_id", "orders-consumer"),
//	    observability.String("version", "1.2.0"),
//	)
//
// # Tracing
//
// OpenTelemetry distributed tracing with OTLP export:
//
//	tracer, err := observability.NewTracer(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tracer.Shutdown(ctx)
package observability
