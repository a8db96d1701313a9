package crawler

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/kinlink/kinlink/internal/telemetry"
)

// crawlTracer is the OTel tracer for per-person crawl spans. It uses
// the global provider, which is a no-op until telemetry.Init() runs.
var crawlTracer = telemetry.Tracer("github.com/kinlink/kinlink/internal/crawler")

// crawlMetrics holds the crawler's OTel metric instruments, registered
// against the global delegating provider at init time.
var crawlMetrics struct {
	retryCount   metric.Int64Counter
	deletedCount metric.Int64Counter
}

func init() {
	m := otel.Meter("github.com/kinlink/kinlink/internal/crawler")
	crawlMetrics.retryCount, _ = m.Int64Counter("kinlink.crawler.retry_count",
		metric.WithDescription("Fetches retried due to transient provider errors"),
		metric.WithUnit("{retry}"),
	)
	crawlMetrics.deletedCount, _ = m.Int64Counter("kinlink.crawler.deleted_count",
		metric.WithDescription("Provider records reported deleted, triggering a child refetch"),
		metric.WithUnit("{record}"),
	)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func personSpanAttrs(provider, externalID string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("kinlink.provider", provider),
		attribute.String("kinlink.external_id", externalID),
	}
}
