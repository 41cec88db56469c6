// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// This file wires the OpenTelemetry SDK to Cloud Trace and Cloud Monitoring.
// The command spans and counters of the derivative chains go through the
// global providers installed here.
package telemetry

import (
	"context"
	"errors"
	"log/slog"

	mexporter "github.com/GoogleCloudPlatform/opentelemetry-operations-go/exporter/metric"
	texporter "github.com/GoogleCloudPlatform/opentelemetry-operations-go/exporter/trace"
	"go.opentelemetry.io/contrib/detectors/gcp"
	"go.opentelemetry.io/contrib/propagators/autoprop"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"

	"github.com/jaycherian/gcp-go-media-derivatives/internal/cloud"
)

// ShutdownFunc flushes and stops the installed providers.
type ShutdownFunc func(context.Context) error

// SetupOpenTelemetry installs the global propagator and, when
// telemetry.enabled is set, a tracer and a meter provider exporting to the
// configured Google Cloud project. With telemetry disabled the providers stay
// no-op. The returned ShutdownFunc is never nil when err is nil.
func SetupOpenTelemetry(ctx context.Context, config *cloud.Config) (ShutdownFunc, error) {
	otel.SetTextMapPropagator(autoprop.NewTextMapPropagator())

	var stops []ShutdownFunc
	shutdown := func(ctx context.Context) error {
		var err error
		for _, stop := range stops {
			err = errors.Join(err, stop(ctx))
		}
		stops = nil
		return err
	}
	if !config.Telemetry.Enabled {
		return shutdown, nil
	}

	res, err := newResource(ctx, config.Application.Name)
	if err != nil {
		return nil, err
	}
	projectID := config.Application.GoogleProjectId

	tp, err := newTracerProvider(projectID, res)
	if err != nil {
		return nil, err
	}
	stops = append(stops, tp.Shutdown)
	otel.SetTracerProvider(tp)

	mp, err := newMeterProvider(projectID, res)
	if err != nil {
		return nil, errors.Join(err, shutdown(ctx))
	}
	stops = append(stops, mp.Shutdown)
	otel.SetMeterProvider(mp)

	slog.InfoContext(ctx, "exporting telemetry", "project", projectID, "service", config.Application.Name)
	return shutdown, nil
}

// newResource describes this process. Partial GCP detection off-cloud is
// logged and tolerated.
func newResource(ctx context.Context, serviceName string) (*resource.Resource, error) {
	res, err := resource.New(ctx,
		resource.WithDetectors(gcp.NewDetector()),
		resource.WithTelemetrySDK(),
		resource.WithAttributes(semconv.ServiceNameKey.String(serviceName)),
	)
	switch {
	case errors.Is(err, resource.ErrPartialResource), errors.Is(err, resource.ErrSchemaURLConflict):
		slog.WarnContext(ctx, "partial resource detection", "error", err)
		return res, nil
	case err != nil:
		return nil, err
	}
	return res, nil
}

func newTracerProvider(projectID string, res *resource.Resource) (*sdktrace.TracerProvider, error) {
	exporter, err := texporter.New(texporter.WithProjectID(projectID))
	if err != nil {
		return nil, err
	}
	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	), nil
}

func newMeterProvider(projectID string, res *resource.Resource) (*sdkmetric.MeterProvider, error) {
	exporter, err := mexporter.New(mexporter.WithProjectID(projectID))
	if err != nil {
		return nil, err
	}
	return sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)),
		sdkmetric.WithResource(res),
	), nil
}
