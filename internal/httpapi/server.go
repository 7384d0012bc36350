package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/zerohouse/eventhost/internal/config"
	"github.com/zerohouse/eventhost/internal/events"
	"github.com/zerohouse/eventhost/internal/heygen"
	"github.com/zerohouse/eventhost/internal/mail"
	"github.com/zerohouse/eventhost/internal/observability"
)

// AvatarProvider is the upstream avatar API, held behind the relay so the
// provider credential never reaches clients.
type AvatarProvider interface {
	NewSession(ctx context.Context, avatarID, voiceID, quality string) (heygen.Session, error)
	SendTask(ctx context.Context, sessionID, text, taskType string) (heygen.TaskResult, error)
	StartSession(ctx context.Context, sessionToken string) (heygen.Session, error)
	CreateToken(ctx context.Context, avatarID string) (string, error)
}

// Mailer sends transactional invitation email.
type Mailer interface {
	Configured() bool
	SendInvitation(ctx context.Context, inv mail.Invitation) (mail.SendResult, error)
}

type Server struct {
	cfg      config.Config
	provider AvatarProvider
	events   events.Store
	mailer   Mailer
	metrics  *observability.Metrics
}

func New(cfg config.Config, provider AvatarProvider, store events.Store, mailer Mailer, metrics *observability.Metrics) *Server {
	return &Server{
		cfg:      cfg,
		provider: provider,
		events:   store,
		mailer:   mailer,
		metrics:  metrics,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Route("/v1/avatar", func(r chi.Router) {
		r.Use(s.requireBearer)
		r.Post("/session/new", s.handleProvision)
		r.Post("/session/task", s.handleTask)
		r.Post("/session/start", s.handleDirectStart)
		r.Post("/token", s.handleCreateToken)
	})

	r.Route("/v1/events", func(r chi.Router) {
		r.Get("/{id}", s.handleGetEvent)
		r.Post("/{id}", s.handleUpdateEvent)
	})

	r.With(s.requireBearer).Post("/v1/invitations/email", s.handleSendInvitation)

	return withCORS(r)
}

// withCORS answers every preflight with an empty 200 and stamps the CORS
// headers on all responses, the same contract the browser client relies on.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Client-Info, Apikey")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireBearer authenticates callers against the configured relay token.
// An empty token disables auth for local development.
func (s *Server) requireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.RelayAuthToken == "" {
			next.ServeHTTP(w, r)
			return
		}
		auth := strings.TrimSpace(r.Header.Get("Authorization"))
		if auth != "Bearer "+s.cfg.RelayAuthToken {
			respondError(w, http.StatusUnauthorized, "unauthorized", "missing or invalid bearer token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":              "ok",
		"provider_configured": s.cfg.HeyGenAPIKey != "",
		"mail_configured":     s.mailer != nil && s.mailer.Configured(),
	})
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
