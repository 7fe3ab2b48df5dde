package postgres

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pscheid92/planetpulse/internal/adapter/metrics"
)

// MetricsTracer records query latency and failures keyed by statement verb.
type MetricsTracer struct {
	m *metrics.DBMetrics
}

var _ pgx.QueryTracer = (*MetricsTracer)(nil)

func NewMetricsTracer(m *metrics.DBMetrics) *MetricsTracer {
	return &MetricsTracer{m: m}
}

type queryStartKey struct{}

type queryStart struct {
	at   time.Time
	verb string
}

func (t *MetricsTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	return context.WithValue(ctx, queryStartKey{}, queryStart{at: time.Now(), verb: statementVerb(data.SQL)})
}

func (t *MetricsTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	qs, ok := ctx.Value(queryStartKey{}).(queryStart)
	if !ok {
		return
	}

	t.m.QueryDuration.WithLabelValues(qs.verb).Observe(time.Since(qs.at).Seconds())
	if data.Err != nil {
		t.m.Errors.WithLabelValues(qs.verb).Inc()
	}
}

// statementVerb keeps label cardinality bounded: "select", "insert", ...
func statementVerb(sql string) string {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return "unknown"
	}
	return strings.ToLower(fields[0])
}
