package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tbraaten/quizcov/internal/coverage"
)

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	coverage  *coverage.Service
	tokenHash []byte
	timeout   time.Duration
}

// Config carries handler settings.
type Config struct {
	// TokenHash is the bcrypt hash of the API bearer token. Empty disables
	// authentication (local development only).
	TokenHash []byte
	// Timeout bounds a single coverage computation.
	Timeout time.Duration
}

// New creates a new Handler.
func New(svc *coverage.Service, cfg Config) *Handler {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Handler{coverage: svc, tokenHash: cfg.TokenHash, timeout: cfg.Timeout}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/healthz", h.handleHealth)
	r.Route("/api", func(api chi.Router) {
		api.Use(h.requireToken)
		api.Get("/coverage/{quizID}/modules", h.handleModuleList)
		api.Get("/coverage/{quizID}/modules/{moduleID}", h.handleModuleCoverage)
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleModuleList(w http.ResponseWriter, r *http.Request) {
	quizID, err := uuid.Parse(chi.URLParam(r, "quizID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_quiz_id", "quiz ID must be a UUID", false)
		return
	}

	resp, err := h.coverage.Modules(r.Context(), quizID)
	if err != nil {
		h.writeCoverageError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleModuleCoverage(w http.ResponseWriter, r *http.Request) {
	quizID, err := uuid.Parse(chi.URLParam(r, "quizID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_quiz_id", "quiz ID must be a UUID", false)
		return
	}
	moduleID := chi.URLParam(r, "moduleID")

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	resp, err := h.coverage.ModuleCoverage(ctx, quizID, moduleID)
	if err != nil {
		h.writeCoverageError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// writeCoverageError maps service errors onto the API error taxonomy. A
// module with nothing to analyze is a distinct state from a failed analysis,
// and embedding failures are explicitly retryable.
func (h *Handler) writeCoverageError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, coverage.ErrQuizNotFound):
		writeError(w, http.StatusNotFound, "quiz_not_found", "quiz not found", false)
	case errors.Is(err, coverage.ErrModuleNotFound):
		writeError(w, http.StatusNotFound, "module_not_found", "module not found", false)
	case errors.Is(err, coverage.ErrNoContent):
		writeError(w, http.StatusUnprocessableEntity, "no_content", "module has no extracted content to analyze", false)
	case errors.Is(err, coverage.ErrEmbeddingFailed),
		errors.Is(err, context.DeadlineExceeded):
		slog.Error("coverage computation failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusBadGateway, "embedding_unavailable", "coverage computation failed, try again", true)
	default:
		slog.Error("coverage request failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "internal error", false)
	}
}

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Retryable bool   `json:"retryable"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, msg string, retryable bool) {
	writeJSON(w, status, errorResponse{Error: msg, Code: code, Retryable: retryable})
}
