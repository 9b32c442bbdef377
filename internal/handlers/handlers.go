// Package handlers wires the generation client, the session store and
// the runner behind the HTTP API and the embedded page.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/appforge/appforge/internal/config"
	"github.com/appforge/appforge/internal/generate"
	"github.com/appforge/appforge/internal/models"
	"github.com/appforge/appforge/internal/runner"
	"github.com/appforge/appforge/internal/session"
	"github.com/appforge/appforge/internal/utils"
	"github.com/appforge/appforge/templates"
)

const sessionCookie = "appforge_session"

// Handler serves the page and the JSON API.
type Handler struct {
	cfg     *config.Config
	client  generate.Client
	store   *session.Store
	runner  *runner.Runner
	limiter *utils.RateLimiter
	log     *zap.Logger
}

func New(cfg *config.Config, client generate.Client, store *session.Store, r *runner.Runner, log *zap.Logger) *Handler {
	return &Handler{
		cfg:     cfg,
		client:  client,
		store:   store,
		runner:  r,
		limiter: utils.NewRateLimiter(cfg.RequestsPerMinute),
		log:     log,
	}
}

// Routes builds the router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/", h.handleHome)
	r.Get("/health", h.handleHealth)
	r.Get("/robots.txt", h.handleRobots)

	r.Route("/api", func(r chi.Router) {
		r.Post("/generate", h.handleGenerate)
		r.Post("/run", h.handleRun)
		r.Get("/session", h.handleSession)
	})
	return r
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		h.log.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)))
	})
}

func (h *Handler) handleHome(w http.ResponseWriter, r *http.Request) {
	tmpl, err := template.ParseFS(templates.Templates, "index.html")
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.ensureSession(w, r)
	if err := tmpl.Execute(w, nil); err != nil {
		h.log.Error("render page", zap.Error(err))
	}
}

func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	sid := h.ensureSession(w, r)

	if err := h.limiter.Allow(utils.ExtractIP(r)); err != nil {
		writeError(w, http.StatusTooManyRequests, "Too many requests, slow down.")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, int64(h.cfg.MaxPromptBytes))
	var req models.GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Error decoding JSON")
		return
	}

	description := strings.TrimSpace(req.Description)
	if description == "" {
		writeError(w, http.StatusBadRequest, "Please enter a description for your app or game first.")
		return
	}

	mode, err := generate.ParseMode(req.Mode)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.store.Begin(sid); err != nil {
		if errors.Is(err, session.ErrBusy) {
			writeError(w, http.StatusConflict, "A generation is already in progress. Wait for it to finish.")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.cfg.GenerateTimeout)
	defer cancel()

	code, err := h.client.Generate(ctx, description, mode)
	if err != nil {
		h.store.Abort(sid)
		h.log.Warn("generation failed", zap.String("session", sid), zap.Error(err))
		writeError(w, http.StatusBadGateway,
			"No code received from the generator. Check the workflow configuration or its logs.")
		return
	}

	h.store.Complete(sid, code, mode)
	writeJSON(w, http.StatusOK, models.GenerateResponse{Code: code})
}

func (h *Handler) handleRun(w http.ResponseWriter, r *http.Request) {
	sid := h.ensureSession(w, r)

	code, _, ok := h.store.Code(sid)
	if !ok {
		writeError(w, http.StatusBadRequest, "Generate the code first before trying to run the app.")
		return
	}

	doc, err := h.runner.Run(r.Context(), code)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, runMessage(err))
		return
	}
	writeJSON(w, http.StatusOK, models.RunResponse{Document: doc})
}

// runMessage maps runner faults to the messages the page shows. The
// missing entry point is called out as a generator contract violation.
func runMessage(err error) string {
	switch {
	case errors.Is(err, runner.ErrNoEntryPoint):
		return fmt.Sprintf("%s() function not found in generated code. "+
			"The workflow must always define: func %s()", runner.EntryPoint, runner.EntryPoint)
	case errors.Is(err, runner.ErrForbiddenImport):
		return fmt.Sprintf("The generated code uses packages that are not available here: %v", err)
	case errors.Is(err, runner.ErrRunTimeout):
		return "The generated app took too long and was cut off."
	default:
		return fmt.Sprintf("Error while running the generated app: %v", err)
	}
}

func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request) {
	sid := h.ensureSession(w, r)
	code, mode, _ := h.store.Code(sid)
	writeJSON(w, http.StatusOK, models.SessionResponse{Code: code, Mode: string(mode)})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.HealthResponse{
		Status:   "ok",
		Sessions: h.store.Len(),
	})
}

func (h *Handler) handleRobots(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte("User-agent: *\nDisallow: /api/\n"))
}

// ensureSession returns the request's session ID, minting a cookie on
// first contact. Only values we minted are accepted: anything that is
// not a uuid is replaced rather than used as a store key.
func (h *Handler) ensureSession(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(sessionCookie); err == nil {
		if _, err := uuid.Parse(c.Value); err == nil {
			return c.Value
		}
	}
	sid := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    sid,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return sid
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, models.ErrorResponse{Error: msg})
}
