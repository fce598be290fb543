package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

const scope = "github.com/aussiebroadwan/otpd"

// Instruments records the service's metrics and spans. A nil *Instruments
// records nothing.
type Instruments struct {
	tracer           trace.Tracer
	issued           metric.Int64Counter
	verifications    metric.Int64Counter
	deliveryDuration metric.Float64Histogram
}

func NewInstruments(mp metric.MeterProvider, tp trace.TracerProvider) (*Instruments, error) {
	meter := mp.Meter(scope)

	issued, err := meter.Int64Counter("otp.issued",
		metric.WithDescription("Codes generated and handed to a delivery channel"),
	)
	if err != nil {
		return nil, err
	}

	verifications, err := meter.Int64Counter("otp.verifications",
		metric.WithDescription("Verification attempts by result"),
	)
	if err != nil {
		return nil, err
	}

	deliveryDuration, err := meter.Float64Histogram("otp.delivery.duration",
		metric.WithDescription("Time spent handing a code to its channel"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &Instruments{
		tracer:           tp.Tracer(scope),
		issued:           issued,
		verifications:    verifications,
		deliveryDuration: deliveryDuration,
	}, nil
}

// Issued counts a generated code. op is "issue" or "resend".
func (i *Instruments) Issued(ctx context.Context, kind, op string) {
	if i == nil {
		return
	}
	i.issued.Add(ctx, 1, metric.WithAttributes(
		attribute.String("channel", kind),
		attribute.String("op", op),
	))
}

// Verification counts a verify outcome; result is "success" or a reason code.
func (i *Instruments) Verification(ctx context.Context, result string) {
	if i == nil {
		return
	}
	i.verifications.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

func (i *Instruments) Delivery(ctx context.Context, kind string, d time.Duration, err error) {
	if i == nil {
		return
	}
	i.deliveryDuration.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("channel", kind),
		attribute.Bool("ok", err == nil),
	))
}

// Start opens a span. End it with End.
func (i *Instruments) Start(ctx context.Context, name string) (context.Context, trace.Span) {
	if i == nil {
		return tracenoop.NewTracerProvider().Tracer(scope).Start(ctx, name)
	}
	return i.tracer.Start(ctx, name)
}

// End records err on span, if any, and ends it.
func End(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
