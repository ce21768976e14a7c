// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package telemetry wires OpenTelemetry tracing and metrics for crategraph
// binaries.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Options selects which telemetry surfaces to enable.
type Options struct {
	// ServiceName appears as service.name on every span.
	ServiceName string

	// TraceToStdout enables span export to stdout. Off by default; spans
	// still record (and feed metrics) without an exporter.
	TraceToStdout bool

	// Logger receives setup diagnostics.
	Logger *slog.Logger
}

// Shutdown tears down the configured providers.
type Shutdown func(context.Context) error

// Init configures the global tracer and meter providers.
//
// Description:
//
//	Installs a composite W3C propagator, an SDK tracer provider (with an
//	optional stdout exporter), and a meter provider bridged to the
//	process-wide Prometheus registry so OTel instruments surface on the
//	same /metrics endpoint as the native collectors.
//
// Outputs:
//   - Shutdown: flushes and stops the providers; always safe to call.
func Init(ctx context.Context, opts Options) (Shutdown, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	if opts.ServiceName == "" {
		opts.ServiceName = "crategraph"
	}

	res, err := resource.Merge(resource.Default(),
		resource.NewWithAttributes(semconv.SchemaURL,
			semconv.ServiceName(opts.ServiceName)))
	if err != nil {
		return nil, fmt.Errorf("building otel resource: %w", err)
	}

	tpOpts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	if opts.TraceToStdout {
		exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("creating stdout trace exporter: %w", err)
		}
		tpOpts = append(tpOpts, sdktrace.WithBatcher(exporter))
	}
	tp := sdktrace.NewTracerProvider(tpOpts...)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	promExporter, err := otelprom.New()
	if err != nil {
		return nil, fmt.Errorf("creating prometheus exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(promExporter),
	)
	otel.SetMeterProvider(mp)

	log.Debug("telemetry initialized",
		slog.String("service", opts.ServiceName),
		slog.Bool("stdout_traces", opts.TraceToStdout))

	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		terr := tp.Shutdown(ctx)
		merr := mp.Shutdown(ctx)
		if terr != nil {
			return terr
		}
		return merr
	}, nil
}
