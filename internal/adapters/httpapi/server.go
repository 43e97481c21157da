// Package httpapi serves any domain.Gateway over HTTP so that remote clients can use it as
// their authoritative registry through the httpgw client gateway.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"applicantsync/internal/core"
	"applicantsync/pkg/domain"
	"applicantsync/pkg/registryapi"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// ServerOption configures NewServer.
type ServerOption func(*server)

// WithLogger sets the request logger.
func WithLogger(l core.Logger) ServerOption {
	return func(s *server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetricsHandler mounts h at /metrics.
func WithMetricsHandler(h http.Handler) ServerOption {
	return func(s *server) { s.metrics = h }
}

// WithMetricsRecorder observes every gateway call made on behalf of a request.
func WithMetricsRecorder(m core.MetricsRecorder) ServerOption {
	return func(s *server) {
		if m != nil {
			s.recorder = m
		}
	}
}

type server struct {
	gw       domain.Gateway
	logger   core.Logger
	metrics  http.Handler
	recorder core.MetricsRecorder
}

// NewServer wires the registry routes into a chi router.
func NewServer(gw domain.Gateway, opts ...ServerOption) http.Handler {
	s := &server{gw: gw, logger: core.NewNopLogger(), recorder: core.NewNopMetricsRecorder()}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Get(registryapi.PathHealth, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if s.metrics != nil {
		r.Method(http.MethodGet, registryapi.PathMetrics, s.metrics)
	}
	r.Get(registryapi.PathStateHash, s.stateHash)
	r.Route(registryapi.PathRows, func(r chi.Router) {
		r.Get("/", s.list)
		r.Post("/", s.create)
		r.Put("/{key}", s.update)
		r.Delete("/{key}", s.remove)
	})
	return r
}

func (s *server) list(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	table, err := s.gw.FetchAll(r.Context())
	s.recorder.Observe(r.Context(), "http_fetch_all", err == nil, time.Since(start))
	if err != nil {
		s.fail(w, r, http.StatusInternalServerError, "", err)
		return
	}
	writeJSON(w, http.StatusOK, table)
}

func (s *server) stateHash(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	hash, err := s.gw.FetchStateHash(r.Context())
	s.recorder.Observe(r.Context(), "http_state_hash", err == nil, time.Since(start))
	if err != nil {
		s.fail(w, r, http.StatusInternalServerError, "", err)
		return
	}
	writeJSON(w, http.StatusOK, registryapi.StateHashResponse{Hash: hash})
}

func (s *server) create(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decode(w, r)
	if !ok {
		return
	}
	if req.Key == "" {
		s.fail(w, r, http.StatusBadRequest, "", errors.New("key is required"))
		return
	}
	s.save(w, r, req.Record, false, req.Key, http.StatusCreated)
}

func (s *server) update(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decode(w, r)
	if !ok {
		return
	}
	s.save(w, r, req.Record, true, domain.Key(chi.URLParam(r, "key")), http.StatusNoContent)
}

func (s *server) save(w http.ResponseWriter, r *http.Request, record domain.Fields, update bool, key domain.Key, okStatus int) {
	start := time.Now()
	err := s.gw.Save(r.Context(), record, update, key)
	s.recorder.Observe(r.Context(), "http_save", err == nil, time.Since(start))
	if err != nil {
		s.fail(w, r, statusFor(err), key, err)
		return
	}
	w.WriteHeader(okStatus)
}

func (s *server) remove(w http.ResponseWriter, r *http.Request) {
	key := domain.Key(chi.URLParam(r, "key"))
	start := time.Now()
	err := s.gw.Delete(r.Context(), key)
	s.recorder.Observe(r.Context(), "http_delete", err == nil, time.Since(start))
	if err != nil {
		s.fail(w, r, statusFor(err), key, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) decode(w http.ResponseWriter, r *http.Request) (registryapi.SaveRequest, bool) {
	var req registryapi.SaveRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		s.failCode(w, r, http.StatusBadRequest, registryapi.CodeBadRequest, "", err)
		return req, false
	}
	if req.Record == nil {
		req.Record = domain.Fields{}
	}
	return req, true
}

func (s *server) fail(w http.ResponseWriter, r *http.Request, status int, key domain.Key, err error) {
	code := registryapi.CodeFor(err)
	if status == http.StatusBadRequest {
		code = registryapi.CodeBadRequest
	}
	s.failCode(w, r, status, code, key, err)
}

func (s *server) failCode(w http.ResponseWriter, r *http.Request, status int, code string, key domain.Key, err error) {
	if status >= http.StatusInternalServerError {
		s.logger.Error("registry request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	} else {
		s.logger.Debug("registry request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}
	writeJSON(w, status, registryapi.ErrorResponse{Code: code, Message: err.Error(), Key: key})
}

func statusFor(err error) int {
	switch registryapi.CodeFor(err) {
	case registryapi.CodeNotFound:
		return http.StatusNotFound
	case registryapi.CodeDuplicateKey:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
