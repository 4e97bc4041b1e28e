package core

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"gennotes/pkg/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type captureAuditRecorder struct {
	entries []AuditEntry
}

func (c *captureAuditRecorder) Record(_ context.Context, entry AuditEntry) {
	c.entries = append(c.entries, entry)
}

func (c *captureAuditRecorder) has(op string, status AuditStatus, predicate func(AuditEntry) bool) bool {
	for _, entry := range c.entries {
		if entry.Operation == op && entry.Status == status {
			if predicate == nil || predicate(entry) {
				return true
			}
		}
	}
	return false
}

type metricsCall struct {
	op      string
	success bool
}

type captureMetricsRecorder struct {
	calls []metricsCall
}

func (c *captureMetricsRecorder) Observe(_ context.Context, op string, success bool, _ time.Duration) {
	c.calls = append(c.calls, metricsCall{op: op, success: success})
}

func (c *captureMetricsRecorder) has(op string, success bool) bool {
	for _, call := range c.calls {
		if call.op == op && call.success == success {
			return true
		}
	}
	return false
}

type captureTracer struct {
	ended map[string]error
}

func (c *captureTracer) Start(ctx context.Context, op string) (context.Context, TraceSpan) {
	return ctx, &captureSpan{tracer: c, op: op}
}

type captureSpan struct {
	tracer *captureTracer
	op     string
}

func (s *captureSpan) End(err error) {
	s.tracer.ended[s.op] = err
}

type captureLogger struct {
	messages []string
}

func (l *captureLogger) Debug(msg string, _ ...any) { l.messages = append(l.messages, "debug:"+msg) }
func (l *captureLogger) Info(msg string, _ ...any)  { l.messages = append(l.messages, "info:"+msg) }
func (l *captureLogger) Warn(msg string, _ ...any)  { l.messages = append(l.messages, "warn:"+msg) }
func (l *captureLogger) Error(msg string, _ ...any) { l.messages = append(l.messages, "error:"+msg) }

func TestServiceObservability(t *testing.T) {
	ctx := context.Background()
	fixed := time.Date(2024, 10, 1, 8, 30, 0, 0, time.UTC)
	audit := &captureAuditRecorder{}
	metrics := &captureMetricsRecorder{}
	tracer := &captureTracer{ended: map[string]error{}}
	logger := &captureLogger{}

	svc := NewInMemoryService(
		WithAuditRecorder(audit),
		WithMetricsRecorder(metrics),
		WithTracer(tracer),
		WithLogger(logger),
		WithClock(ClockFunc(func() time.Time { return fixed })),
	)

	rel, err := svc.CreateRelation(ctx, editor, domain.Tags{"type": "causes"}, nil, "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !audit.has(opCreateRelation, AuditStatusSuccess, func(e AuditEntry) bool {
		return e.RecordID == rel.ID && e.Entity == domain.EntityRelation && e.Action == domain.ActionCreate && e.Timestamp.Equal(fixed) && e.Actor.Username == "curator"
	}) {
		t.Fatalf("expected audit entry for create_relation, got %+v", audit.entries)
	}

	stale := int64(9)
	if err := svc.DeleteRelation(ctx, editor, rel.ID, &stale, ""); err == nil {
		t.Fatalf("expected conflict")
	}
	if !audit.has(opDeleteRelation, AuditStatusError, func(e AuditEntry) bool { return e.Error != "" }) {
		t.Fatalf("expected audit error entry for delete_relation")
	}
	if !metrics.has(opDeleteRelation, false) || !metrics.has(opCreateRelation, true) {
		t.Fatalf("expected metrics for both outcomes, got %+v", metrics.calls)
	}
	if err, ok := tracer.ended[opDeleteRelation]; !ok || !errors.Is(err, domain.ErrEditConflict) {
		t.Fatalf("expected failed span, got %v", err)
	}
	joined := strings.Join(logger.messages, ",")
	if !strings.Contains(joined, "info:operation committed") || !strings.Contains(joined, "warn:operation rejected") {
		t.Fatalf("unexpected log messages %v", logger.messages)
	}
}

func TestDefaultServiceOptions(t *testing.T) {
	opts := defaultServiceOptions()
	if opts.clock == nil || opts.logger == nil || opts.audit == nil || opts.metrics == nil || opts.tracer == nil {
		t.Fatalf("expected defaults populated")
	}
	_ = opts.clock.Now()
	opts.logger.Debug("noop", "k", 1)
	opts.audit.Record(context.Background(), AuditEntry{})
	opts.metrics.Observe(context.Background(), "noop", true, 0)
	_, span := opts.tracer.Start(context.Background(), "noop")
	span.End(nil)

	WithLogger(nil)(&opts)
	WithClock(nil)(&opts)
	if opts.logger == nil || opts.clock == nil {
		t.Fatalf("nil options must keep defaults")
	}
}

func TestPrometheusMetricsRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := NewPrometheusMetricsRecorder(reg)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	svc := NewInMemoryService(WithMetricsRecorder(rec))
	ctx := context.Background()
	if _, err := svc.CreateRelation(ctx, editor, domain.Tags{"type": "causes"}, nil, ""); err != nil {
		t.Fatalf("create: %v", err)
	}
	_, _ = svc.CreateRelation(ctx, editor, domain.Tags{}, nil, "")
	rec.Observe(ctx, "", true, time.Second)

	if got := testutil.ToFloat64(rec.operations.WithLabelValues(opCreateRelation, "success")); got != 1 {
		t.Fatalf("expected 1 success, got %v", got)
	}
	if got := testutil.ToFloat64(rec.operations.WithLabelValues(opCreateRelation, "error")); got != 1 {
		t.Fatalf("expected 1 error, got %v", got)
	}
	if _, err := NewPrometheusMetricsRecorder(reg); err == nil {
		t.Fatalf("expected duplicate registration to fail")
	}
}

func TestOpenPersistentStore(t *testing.T) {
	ctx := context.Background()
	store, err := OpenPersistentStore(ctx, StorageOptions{Driver: StorageMemory})
	if err != nil || store == nil {
		t.Fatalf("memory store: %v", err)
	}
	path := t.TempDir() + "/gennotes.db"
	sqliteStore, err := OpenPersistentStore(ctx, StorageOptions{Driver: StorageSQLite, SQLitePath: path})
	if err != nil {
		t.Fatalf("sqlite store: %v", err)
	}
	if closer, ok := sqliteStore.(interface{ Close() error }); ok {
		_ = closer.Close()
	}
	if _, err := OpenPersistentStore(ctx, StorageOptions{Driver: "bogus"}); err == nil {
		t.Fatalf("expected unknown driver error")
	}
}
