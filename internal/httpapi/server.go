// Package httpapi exposes the interview engine over HTTP: JSON endpoints
// for session control, a poll endpoint, and a server-sent event stream.
package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gleehq/interviewd/internal/auth"
	"github.com/gleehq/interviewd/internal/dispatch"
	"github.com/gleehq/interviewd/internal/events"
	"github.com/gleehq/interviewd/internal/fault"
	"github.com/gleehq/interviewd/internal/feedback"
	"github.com/gleehq/interviewd/internal/observability"
	"github.com/gleehq/interviewd/internal/session"
	"github.com/gleehq/interviewd/internal/tasks"
	"github.com/gleehq/interviewd/internal/telemetry"
)

// maxPollWait caps the bounded wait of the status endpoint so proxies do
// not kill the request first.
const maxPollWait = 25 * time.Second

const maxBodyBytes = 16 << 20 // audio payloads arrive base64-encoded

type Deps struct {
	Logger        *slog.Logger
	Verifier      auth.Verifier
	Sessions      session.Store
	Tasks         *tasks.Service
	Dispatcher    *dispatch.Dispatcher
	Poller        *events.Poller
	Streamer      *events.Streamer
	Monitor       *telemetry.Monitor
	Reports       *feedback.Service
	ProcessingTTL time.Duration
}

type Server struct {
	deps Deps
	mux  *http.ServeMux
}

func NewServer(deps Deps) *Server {
	s := &Server{deps: deps, mux: http.NewServeMux()}

	s.mux.HandleFunc("GET /health", s.handleHealth)

	s.mux.Handle("POST /api/v1/interview/start", s.authed(s.handleStart))
	s.mux.Handle("POST /api/v1/interview/{id}/respond", s.authed(s.handleRespond))
	s.mux.Handle("GET /api/v1/interview/{id}/status", s.authed(s.handleStatus))
	s.mux.Handle("GET /api/v1/interview/{id}/stream", s.authed(s.handleStream))
	s.mux.Handle("POST /api/v1/interview/{id}/telemetry", s.authed(s.handleTelemetry))
	s.mux.Handle("POST /api/v1/interview/{id}/end", s.authed(s.handleEnd))
	s.mux.Handle("DELETE /api/v1/interview/{id}", s.authed(s.handleDelete))

	s.mux.Handle("GET /api/v1/tasks/{id}", s.authed(s.handleTask))

	s.mux.Handle("POST /api/v1/feedback/generate", s.authed(s.handleFeedbackGenerate))
	s.mux.Handle("GET /api/v1/feedback/session/{id}", s.authed(s.handleReport))

	s.mux.Handle("POST /api/v1/resume/analyze", s.authed(s.handleResumeAnalyze))
	s.mux.Handle("GET /api/v1/resume/{id}", s.authed(s.handleResumeResult))

	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

type ctxKey int

const userKey ctxKey = 0

func userFrom(ctx context.Context) string {
	user, _ := ctx.Value(userKey).(string)
	return user
}

// authed verifies the bearer token. EventSource clients cannot set headers,
// so a token query parameter is accepted as well.
func (s *Server) authed(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if token == "" || token == r.Header.Get("Authorization") {
			token = r.URL.Query().Get("token")
		}
		if token == "" {
			s.writeError(w, r, fault.New(fault.KindForbidden, "missing credentials"))
			return
		}
		userID, err := s.deps.Verifier.Verify(token)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		ctx := context.WithValue(r.Context(), userKey, userID)
		ctx = observability.WithRequestID(ctx, uuid.NewString())
		next(w, r.WithContext(ctx))
	})
}

// owned loads a session and checks it belongs to the caller.
func (s *Server) owned(ctx context.Context, sessionID string) (session.Data, error) {
	data, err := s.deps.Sessions.Get(ctx, sessionID)
	if err != nil {
		return session.Data{}, err
	}
	if data.UserID != userFrom(ctx) {
		return session.Data{}, fault.New(fault.KindForbidden, "session belongs to another user")
	}
	return data, nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.deps.Logger.Error("response encoding failed", "error", err)
	}
}

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := fault.KindOf(err)
	status := statusFor(kind)
	if status >= http.StatusInternalServerError {
		s.deps.Logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	} else {
		s.deps.Logger.Debug("request rejected", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	s.writeJSON(w, status, errorBody{Error: err.Error(), Kind: kind.String()})
}

func statusFor(kind fault.Kind) int {
	switch kind {
	case fault.KindNotFound:
		return http.StatusNotFound
	case fault.KindForbidden:
		return http.StatusForbidden
	case fault.KindInvalidInput:
		return http.StatusBadRequest
	case fault.KindRateLimited:
		return http.StatusTooManyRequests
	case fault.KindUpstream:
		return http.StatusBadGateway
	case fault.KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func decodeBody(r *http.Request, into any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(into); err != nil {
		return fault.Wrap(fault.KindInvalidInput, err, "request body")
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
