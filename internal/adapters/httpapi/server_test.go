package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"applicantsync/internal/infra/gateway/memory"
	"applicantsync/pkg/domain"
	"applicantsync/pkg/registryapi"
)

var schema = domain.Schema{Columns: []string{"id", "name"}, KeyColumn: "id"}

type captureLogger struct{ errors []string }

func (c *captureLogger) Debug(string, ...any)       {}
func (c *captureLogger) Info(string, ...any)        {}
func (c *captureLogger) Warn(string, ...any)        {}
func (c *captureLogger) Error(msg string, _ ...any) { c.errors = append(c.errors, msg) }

type captureMetrics struct{ ops []string }

func (c *captureMetrics) Observe(_ context.Context, op string, _ bool, _ time.Duration) {
	c.ops = append(c.ops, op)
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRoutesAndStatuses(t *testing.T) {
	backend := memory.New(schema)
	metrics := &captureMetrics{}
	h := NewServer(backend, WithMetricsRecorder(metrics))

	if rec := do(t, h, http.MethodGet, "/health", ""); rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "ok") {
		t.Fatalf("health: %d %s", rec.Code, rec.Body.String())
	}
	if rec := do(t, h, http.MethodPost, "/rows", `{"key":"1","record":{"name":"Kim"}}`); rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body.String())
	}
	rec := do(t, h, http.MethodPost, "/rows", `{"key":"1","record":{"name":"Kim"}}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate: %d", rec.Code)
	}
	var apiErr registryapi.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &apiErr); err != nil || apiErr.Code != registryapi.CodeDuplicateKey || apiErr.Key != "1" {
		t.Fatalf("unexpected error body %s", rec.Body.String())
	}
	if rec := do(t, h, http.MethodPost, "/rows", `{"record":{}}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing key: %d", rec.Code)
	}
	if rec := do(t, h, http.MethodPost, "/rows", `{"bogus":1}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown field: %d", rec.Code)
	}
	if rec := do(t, h, http.MethodPut, "/rows/1", `{"record":{"name":"Lee"}}`); rec.Code != http.StatusNoContent {
		t.Fatalf("update: %d %s", rec.Code, rec.Body.String())
	}
	if rec := do(t, h, http.MethodPut, "/rows/9", `{"record":{"name":"Lee"}}`); rec.Code != http.StatusNotFound {
		t.Fatalf("update missing: %d", rec.Code)
	}

	rec = do(t, h, http.MethodGet, "/rows", "")
	var table domain.Table
	if err := json.Unmarshal(rec.Body.Bytes(), &table); err != nil {
		t.Fatalf("decode table: %v", err)
	}
	if len(table.Rows) != 1 || table.Rows[0][1] != "Lee" {
		t.Fatalf("unexpected table %+v", table)
	}
	rec = do(t, h, http.MethodGet, "/state-hash", "")
	var hash registryapi.StateHashResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &hash)
	if want, _ := backend.FetchStateHash(context.Background()); hash.Hash != want {
		t.Fatalf("hash mismatch %s vs %s", hash.Hash, want)
	}
	if rec := do(t, h, http.MethodDelete, "/rows/1", ""); rec.Code != http.StatusNoContent {
		t.Fatalf("delete: %d", rec.Code)
	}
	if len(metrics.ops) == 0 {
		t.Fatalf("expected gateway calls to be observed")
	}
	if rec := do(t, h, http.MethodGet, "/metrics", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("metrics should be absent without a handler, got %d", rec.Code)
	}
}

func TestBackendErrorsAreLoggedAsInternal(t *testing.T) {
	backend := memory.New(schema)
	logger := &captureLogger{}
	h := NewServer(backend, WithLogger(logger), WithMetricsHandler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("metrics"))
	})))
	backend.FailNext(memory.OpHash, errors.New("quota exceeded"))
	rec := do(t, h, http.MethodGet, "/state-hash", "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if len(logger.errors) != 1 {
		t.Fatalf("expected one error log, got %v", logger.errors)
	}
	if rec := do(t, h, http.MethodGet, "/metrics", ""); rec.Body.String() != "metrics" {
		t.Fatalf("expected metrics handler mounted, got %q", rec.Body.String())
	}
}
