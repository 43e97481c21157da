package core

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"applicantsync/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type captureAuditRecorder struct {
	entries chan AuditEntry
}

func (c *captureAuditRecorder) Record(_ context.Context, entry AuditEntry) { c.entries <- entry }

func TestClockFuncNowNilFallsBackToUTCTime(t *testing.T) {
	got := ClockFunc(nil).Now()
	if got.IsZero() || got.Location() != time.UTC {
		t.Fatalf("expected current UTC time, got %s", got)
	}
}

func TestNoopImplementations(_ *testing.T) {
	var logger noopLogger
	logger.Debug("d", "k", 1)
	logger.Info("i")
	logger.Warn("w")
	logger.Error("e")
	noopAuditRecorder{}.Record(context.Background(), AuditEntry{})
	noopMetricsRecorder{}.Observe(context.Background(), "noop", true, 0)
	_, span := noopTracer{}.Start(context.Background(), "noop")
	span.End(nil)
}

func TestCoordinatorObservability(t *testing.T) {
	gw := newFakeGateway()
	gw.deleteErr = errors.New("reject")
	audit := &captureAuditRecorder{entries: make(chan AuditEntry, 4)}
	metrics := NewExpvarMetricsRecorder("")
	var buf bytes.Buffer
	tracer := NewJSONTracer(&buf)
	fixed := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	c := newTestCoordinator(t, newTestStore(t), gw,
		WithAuditRecorder(audit), WithMetricsRecorder(metrics), WithTracer(tracer),
		WithClock(ClockFunc(func() time.Time { return fixed })))

	op, _ := c.Create(context.Background(), domain.Fields{"name": "Kim"})
	_ = waitOp(t, op)
	entry := <-audit.entries
	if entry.Operation != "create_row" || entry.Status != AuditStatusSuccess || entry.Key != "1" || entry.OperationID != op.ID || !entry.Timestamp.Equal(fixed) {
		t.Fatalf("unexpected audit entry: %+v", entry)
	}

	del, _ := c.Delete(context.Background(), "1")
	_ = waitOp(t, del)
	entry = <-audit.entries
	if entry.Status != AuditStatusRolledBack || !strings.Contains(entry.Error, "reject") {
		t.Fatalf("unexpected failure audit entry: %+v", entry)
	}

	if metrics.Count("create_row", "success") != 1 || metrics.Count("delete_row", "error") != 1 {
		t.Fatalf("unexpected metrics counts")
	}
	entries := tracer.Entries()
	if len(entries) != 2 || entries[0].Operation != "create_row" || entries[1].Status != "error" {
		t.Fatalf("unexpected trace entries: %+v", entries)
	}
	if !strings.Contains(buf.String(), `"operation":"delete_row"`) {
		t.Fatalf("expected JSON line for delete_row, got %s", buf.String())
	}
}

func TestJSONTraceSpanEndsOnce(t *testing.T) {
	tracer := NewJSONTracer(nil)
	_, span := tracer.Start(context.Background(), "op")
	span.End(nil)
	span.End(errors.New("late"))
	if got := tracer.Entries(); len(got) != 1 || got[0].Status != "success" {
		t.Fatalf("expected single success entry, got %+v", got)
	}
}

func TestPrometheusMetricsRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := NewPrometheusMetricsRecorder(reg)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	rec.Observe(context.Background(), "create_row", true, 20*time.Millisecond)
	rec.Observe(context.Background(), "create_row", false, time.Millisecond)
	rec.Observe(context.Background(), "create_row", true, time.Millisecond)
	if got := testutil.ToFloat64(rec.results.WithLabelValues("create_row", "success")); got != 2 {
		t.Fatalf("expected 2 successes, got %v", got)
	}
	if _, err := NewPrometheusMetricsRecorder(reg); err == nil {
		t.Fatalf("expected duplicate registration to fail")
	}
}

func TestLogAuditRecorder(t *testing.T) {
	log := &captureLogger{}
	rec := LogAuditRecorder{Logger: log}
	rec.Record(context.Background(), AuditEntry{Operation: "create_row", Status: AuditStatusSuccess})
	rec.Record(context.Background(), AuditEntry{Operation: "delete_row", Status: AuditStatusRolledBack, Error: "x"})
	LogAuditRecorder{}.Record(context.Background(), AuditEntry{})
	if !log.has("i:mutation settled") || !log.has("w:mutation settled") {
		t.Fatalf("expected info and warn entries, got %v", log.calls)
	}
}
