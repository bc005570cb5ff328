// Package server exposes the chat pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"travelgo-chat/internal/common/auth"
	apperrors "travelgo-chat/internal/common/errors"
	"travelgo-chat/internal/common/logger"
	"travelgo-chat/internal/common/validation"
	"travelgo-chat/internal/models"
)

const maxBodyBytes = 64 << 10

// ChatHandler is satisfied by *chat.Service.
type ChatHandler interface {
	Handle(ctx context.Context, req models.ChatRequest, caller models.CallerIdentity) (models.ChatResponse, error)
}

// Identities is satisfied by *auth.Resolver.
type Identities interface {
	Resolve(ctx context.Context, token string) (models.CallerIdentity, error)
	Logout(ctx context.Context, token string) error
}

// Check reports whether a dependency is usable.
type Check func(ctx context.Context) error

type Options struct {
	Chat           ChatHandler
	Identities     Identities
	Validator      *validation.Validator
	AllowedOrigins []string
	Checks         map[string]Check
	Logger         logger.Logger
}

type Server struct {
	router     *chi.Mux
	chat       ChatHandler
	identities Identities
	validator  *validation.Validator
	checks     map[string]Check
	logger     logger.Logger
}

func New(opts Options) (*Server, error) {
	if opts.Chat == nil || opts.Identities == nil {
		return nil, errors.New("chat handler and identities are required")
	}
	v := opts.Validator
	if v == nil {
		var err error
		if v, err = validation.NewChatRequestValidator(0); err != nil {
			return nil, err
		}
	}
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	s := &Server{
		router:     r,
		chat:       opts.Chat,
		identities: opts.Identities,
		validator:  v,
		checks:     opts.Checks,
		logger:     opts.Logger.WithFields(map[string]interface{}{"component": "http"}),
	}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Get("/ready", s.handleReady)
	s.router.Handle("/metrics", promhttp.Handler())
	s.router.Post("/chat", s.handleChat)
	s.router.Post("/logout", s.handleLogout)
}

func (s *Server) Router() http.Handler { return s.router }

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := http.StatusOK
	results := map[string]string{}
	for _, name := range names {
		if err := s.checks[name](ctx); err != nil {
			status = http.StatusServiceUnavailable
			results[name] = err.Error()
			continue
		}
		results[name] = "ok"
	}

	state := "ready"
	if status != http.StatusOK {
		state = "not_ready"
	}
	writeJSON(w, status, map[string]interface{}{
		"status": state,
		"checks": results,
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		s.writeError(w, r, apperrors.NewInvalidRequestError("request body too large or unreadable"))
		return
	}

	result, err := s.validator.ValidateJSON(body)
	if err != nil {
		s.writeError(w, r, apperrors.NewInvalidRequestError("request body is not valid JSON"))
		return
	}
	if !result.Valid {
		s.writeError(w, r, apperrors.NewInvalidRequestError(result.Summary()))
		return
	}

	var req models.ChatRequest
	if err := json.Unmarshal(body, &req); err != nil {
		s.writeError(w, r, apperrors.NewInvalidRequestError(err.Error()))
		return
	}

	caller, err := s.identities.Resolve(r.Context(), auth.BearerToken(r.Header.Get("Authorization")))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp, err := s.chat.Handle(r.Context(), req, caller)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.identities.Logout(r.Context(), auth.BearerToken(r.Header.Get("Authorization"))); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

type errorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Details   string `json:"details,omitempty"`
	Retryable bool   `json:"retryable"`
	RequestID string `json:"request_id,omitempty"`
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	stdErr := apperrors.Normalize(err)
	status := apperrors.HTTPStatus(stdErr.Code)

	fields := map[string]interface{}{
		"code":      string(stdErr.Code),
		"status":    status,
		"path":      r.URL.Path,
		"requestId": RequestIDFrom(r.Context()),
	}
	if status >= http.StatusInternalServerError {
		fields["error"] = err.Error()
		s.logger.Error("request failed", fields)
	} else {
		s.logger.Warn("request rejected", fields)
	}

	body := errorBody{
		Code:      string(stdErr.Code),
		Message:   stdErr.Message,
		Retryable: stdErr.Retryable,
		RequestID: RequestIDFrom(r.Context()),
	}
	if status < http.StatusInternalServerError {
		body.Details = stdErr.Details
	}
	writeJSON(w, status, map[string]errorBody{"error": body})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
