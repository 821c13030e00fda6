package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/valyala/fastjson"

	"github.com/emertechie/vic-viewer/internal/engine"
	"github.com/emertechie/vic-viewer/internal/metrics"
	"github.com/emertechie/vic-viewer/internal/source"
)

const (
	maxBodyBytes    = 1 << 20
	requestIDHeader = "X-Request-Id"
)

// Error codes of the API error envelope.
const (
	CodeValidation       = "VALIDATION_ERROR"
	CodeInvalidCursor    = "INVALID_CURSOR"
	CodeUpstreamFailed   = "UPSTREAM_REQUEST_FAILED"
	CodeUpstreamInvalid  = "UPSTREAM_RESPONSE_INVALID"
	CodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	CodeInternal         = "INTERNAL_SERVER_ERROR"
)

// Pager serves one page of logs.
type Pager interface {
	Paginate(ctx context.Context, req engine.Request) (*engine.Page, error)
}

type Options struct {
	Pager    Pager
	Profiles engine.ProfileProvider
	Metrics  *metrics.Recorder
	// Upstream names the record source reported by the health endpoint.
	Upstream string
	Logger   *slog.Logger
}

type Server struct {
	pager    Pager
	profiles engine.ProfileProvider
	metrics  *metrics.Recorder
	upstream string
	logger   *slog.Logger
	parser   fastjson.ParserPool
	srv      *http.Server
}

type errorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Details   any    `json:"details,omitempty"`
	RequestID string `json:"requestId"`
}

type ctxKey struct{}

func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Server{
		pager:    opts.Pager,
		profiles: opts.Profiles,
		metrics:  opts.Metrics,
		upstream: opts.Upstream,
		logger:   opts.Logger,
	}
}

// Handler returns the API routes wrapped with request id handling.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/logs/query", s.handleLogsQuery)
	mux.HandleFunc("/api/logs/profile", s.handleProfile)
	mux.HandleFunc("/api/health", s.handleHealth)
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics.Handler())
	}
	return s.withRequestID(mux)
}

// Start runs the HTTP server until Shutdown.
func (s *Server) Start(addr string) error {
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv != nil {
		return s.srv.Shutdown(ctx)
	}
	return nil
}

func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
	})
}

func requestID(r *http.Request) string {
	id, _ := r.Context().Value(ctxKey{}).(string)
	return id
}

// handleLogsQuery processes POST /api/logs/query.
func (s *Server) handleLogsQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, r, http.MethodPost)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		s.writeError(w, r, &engine.ValidationError{Field: "body", Message: "could not be read"})
		return
	}

	req, err := s.parseQueryRequest(body)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	began := time.Now()
	page, err := s.pager.Paginate(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.logger.Info("logs query served",
		"requestId", requestID(r),
		"query", req.Query,
		"start", req.Start,
		"end", req.End,
		"limit", req.Limit,
		"withCursor", req.Cursor != nil,
		"rows", len(page.Rows),
		"duration", time.Since(began),
	)
	s.writeJSON(w, http.StatusOK, page)
}

func (s *Server) parseQueryRequest(body []byte) (engine.Request, error) {
	p := s.parser.Get()
	defer s.parser.Put(p)

	v, err := p.ParseBytes(body)
	if err != nil {
		return engine.Request{}, &engine.ValidationError{Field: "body", Message: "must be valid JSON"}
	}
	if v.Type() != fastjson.TypeObject {
		return engine.Request{}, &engine.ValidationError{Field: "body", Message: "must be a JSON object"}
	}

	var req engine.Request
	for _, f := range []struct {
		name     string
		dst      *string
		required bool
	}{
		{"query", &req.Query, false},
		{"start", &req.Start, true},
		{"end", &req.End, true},
	} {
		fv := v.Get(f.name)
		if fv == nil || fv.Type() == fastjson.TypeNull {
			if f.required {
				return engine.Request{}, &engine.ValidationError{Field: f.name, Message: "is required"}
			}
			continue
		}
		if fv.Type() != fastjson.TypeString {
			return engine.Request{}, &engine.ValidationError{Field: f.name, Message: "must be a string"}
		}
		*f.dst = string(fv.GetStringBytes())
	}

	if lv := v.Get("limit"); lv != nil && lv.Type() != fastjson.TypeNull {
		n, err := lv.Int()
		if err != nil {
			return engine.Request{}, &engine.ValidationError{Field: "limit", Message: "must be an integer"}
		}
		// An explicit limit below one is clamped, not defaulted.
		req.Limit = max(n, 1)
	}

	if cv := v.Get("cursor"); cv != nil && cv.Type() != fastjson.TypeNull {
		if cv.Type() != fastjson.TypeString && cv.Type() != fastjson.TypeObject {
			return engine.Request{}, &engine.ValidationError{Field: "cursor", Message: "must be a string or an object"}
		}
		req.Cursor = json.RawMessage(cv.MarshalTo(nil))
	}
	return req, nil
}

// handleProfile returns the active log profile.
func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, r, http.MethodGet)
		return
	}
	s.writeJSON(w, http.StatusOK, s.profiles.Active())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"services": map[string]string{
			"api":      "ready",
			"upstream": s.upstream,
		},
	})
}

func (s *Server) methodNotAllowed(w http.ResponseWriter, r *http.Request, allow string) {
	w.Header().Set("Allow", allow)
	s.writeJSON(w, http.StatusMethodNotAllowed, errorBody{
		Code:      CodeMethodNotAllowed,
		Message:   "Method not allowed",
		RequestID: requestID(r),
	})
}

// writeError maps err onto the API error envelope.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validation *engine.ValidationError
		upstream   *source.UpstreamError
	)
	body := errorBody{RequestID: requestID(r)}
	status := http.StatusInternalServerError

	switch {
	case errors.As(err, &validation):
		status = http.StatusBadRequest
		body.Code = CodeValidation
		body.Message = "Request validation failed"
		body.Details = map[string]string{"field": validation.Field, "message": validation.Message}
	case errors.Is(err, engine.ErrInvalidCursor):
		status = http.StatusBadRequest
		body.Code = CodeInvalidCursor
		body.Message = "Cursor is invalid for this query context"
	case errors.Is(err, engine.ErrInvalidPayload):
		status = http.StatusBadGateway
		body.Code = CodeUpstreamInvalid
		body.Message = "VictoriaLogs returned an invalid logs payload"
	case errors.As(err, &upstream):
		status = upstream.StatusCode
		if status < 400 || status > 599 {
			status = http.StatusBadGateway
		}
		body.Code = CodeUpstreamFailed
		body.Message = upstream.Message
		body.Details = map[string]any{"source": upstream.Source, "statusCode": upstream.StatusCode}
	default:
		body.Code = CodeInternal
		body.Message = "Unexpected server error"
	}

	level := slog.LevelWarn
	if status >= 500 {
		level = slog.LevelError
	}
	s.logger.Log(r.Context(), level, "request failed",
		"requestId", body.RequestID,
		"path", r.URL.Path,
		"status", status,
		"code", body.Code,
		"error", err,
	)
	s.writeJSON(w, status, body)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("write response", "error", fmt.Errorf("encode json: %w", err))
	}
}
