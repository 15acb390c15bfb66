package sqlstore

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/JoeShih716/go-account-ledger/internal/app/core/domain"
)

const instrumentationName = "github.com/JoeShih716/go-account-ledger/sqlstore"

// storeMetrics 儲存層的 OpenTelemetry 指標
type storeMetrics struct {
	ops      metric.Int64Counter
	errors   metric.Int64Counter
	duration metric.Float64Histogram
}

// Option configures a Store
type Option func(*Store)

// WithTracer sets the OpenTelemetry tracer for the store
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Store) {
		s.tracer = tracer
	}
}

// WithDefaultTracer uses the global OpenTelemetry tracer
func WithDefaultTracer() Option {
	return func(s *Store) {
		s.tracer = otel.Tracer(instrumentationName)
	}
}

// WithMeter sets the OpenTelemetry meter for metrics
func WithMeter(meter metric.Meter) Option {
	return func(s *Store) {
		s.metrics = initMetrics(meter)
	}
}

// WithDefaultMeter uses the global OpenTelemetry meter
func WithDefaultMeter() Option {
	return func(s *Store) {
		s.metrics = initMetrics(otel.Meter(instrumentationName))
	}
}

func initMetrics(meter metric.Meter) *storeMetrics {
	ops, _ := meter.Int64Counter("ledger.store.ops",
		metric.WithDescription("Total number of store operations"),
		metric.WithUnit("{operation}"),
	)
	errs, _ := meter.Int64Counter("ledger.store.errors",
		metric.WithDescription("Store operations that failed with a storage error"),
		metric.WithUnit("{error}"),
	)
	duration, _ := meter.Float64Histogram("ledger.store.duration",
		metric.WithDescription("Store operation duration in milliseconds"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 25, 50, 100, 250, 500, 1000),
	)
	return &storeMetrics{ops: ops, errors: errs, duration: duration}
}

// observe 開始一個 span，回傳的 done 需在操作結束時以最終錯誤呼叫
// 只有 *domain.StorageError 算錯誤；找不到帳戶、餘額不足屬於正常業務結果
func (s *Store) observe(ctx context.Context, op string, number domain.AccountNumber) (context.Context, func(error)) {
	start := time.Now()
	attrs := []attribute.KeyValue{
		attribute.String("db.operation", op),
		attribute.String("db.system", s.client.Driver()),
	}

	var span trace.Span
	if s.tracer != nil {
		spanAttrs := attrs
		if number != 0 {
			spanAttrs = append(spanAttrs, attribute.String("ledger.account_number", number.String()))
		}
		ctx, span = s.tracer.Start(ctx, "store."+op,
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(spanAttrs...),
		)
	}

	return ctx, func(err error) {
		failed := errors.Is(err, domain.ErrStorage)
		if span != nil {
			if failed {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			}
			span.End()
		}
		if s.metrics != nil {
			set := metric.WithAttributes(attrs...)
			s.metrics.ops.Add(ctx, 1, set)
			s.metrics.duration.Record(ctx, float64(time.Since(start).Microseconds())/1000, set)
			if failed {
				s.metrics.errors.Add(ctx, 1, set)
			}
		}
	}
}
