// Package httpapi exposes the generation operation, the voice catalog, and
// job history over HTTP. Routing is plain glue; all pipeline behavior lives in
// the speech package.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/duetaudio/duet-core/internal/history"
	"github.com/duetaudio/duet-core/internal/script"
	"github.com/duetaudio/duet-core/internal/speech"
)

// Server bundles the HTTP handlers and their dependencies.
type Server struct {
	svc        *speech.Service
	jobs       *history.Store
	defaultKey string
	ready      func() bool
	log        *slog.Logger
}

func NewServer(svc *speech.Service, jobs *history.Store, defaultKey string, ready func() bool, log *slog.Logger) *Server {
	if ready == nil {
		ready = func() bool { return true }
	}
	return &Server{
		svc:        svc,
		jobs:       jobs,
		defaultKey: defaultKey,
		ready:      ready,
		log:        log.With(slog.String("component", "httpapi")),
	}
}

// Router builds the chi router with the service's middleware stack.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(allowAllCORS)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/speech", s.handleGenerate)
		r.Get("/voices", s.handleVoices)
		r.Get("/jobs", s.handleJobs)
	})
	return r
}

// allowAllCORS mirrors the permissive policy of the public deployment.
func allowAllCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Engine-Key")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type generateBody struct {
	Text   string `json:"text"`
	Format string `json:"format"`
}

type generateResponse struct {
	AudioBase64     string  `json:"audio_base64"`
	Groups          int     `json:"groups"`
	Speakers        int     `json:"speakers"`
	DurationSeconds float64 `json:"duration_seconds"`
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Group   int    `json:"group"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var body generateBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, &speech.Error{Kind: speech.KindValidation, Group: -1, Err: fmt.Errorf("malformed request body: %v", err)})
		return
	}

	credential := r.Header.Get("X-Engine-Key")
	if credential == "" {
		credential = s.defaultKey
	}

	res, err := s.svc.Generate(r.Context(), speech.Request{
		Text:       body.Text,
		Credential: credential,
		Format:     body.Format,
		Source:     "http",
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	if res.AudioBase64 != "" {
		writeJSON(w, http.StatusOK, generateResponse{
			AudioBase64:     res.AudioBase64,
			Groups:          res.Groups,
			Speakers:        res.Speakers,
			DurationSeconds: res.DurationSeconds,
		})
		return
	}

	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("X-Duet-Groups", strconv.Itoa(res.Groups))
	w.Header().Set("X-Duet-Speakers", strconv.Itoa(res.Speakers))
	w.Header().Set("X-Duet-Duration-Seconds", strconv.FormatFloat(res.DurationSeconds, 'f', 3, 64))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(res.Audio); err != nil {
		s.log.Warn("failed to write audio response", slog.String("error", err.Error()))
	}
}

func (s *Server) handleVoices(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"voices": script.Voices()})
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			s.writeError(w, &speech.Error{Kind: speech.KindValidation, Group: -1, Err: errors.New("limit must be a positive integer")})
			return
		}
		limit = parsed
	}
	jobs, err := s.jobs.Recent(r.Context(), limit)
	if err != nil {
		s.writeError(w, &speech.Error{Kind: speech.KindInternal, Group: -1, Err: err})
		return
	}
	type jobView struct {
		ID              string  `json:"id"`
		Source          string  `json:"source"`
		Status          string  `json:"status"`
		Error           string  `json:"error,omitempty"`
		Groups          int     `json:"groups"`
		Speakers        int     `json:"speakers"`
		DurationSeconds float64 `json:"duration_seconds"`
		CreatedAt       string  `json:"created_at"`
	}
	views := make([]jobView, 0, len(jobs))
	for _, j := range jobs {
		views = append(views, jobView{
			ID:              j.ID,
			Source:          j.Source,
			Status:          j.Status,
			Error:           j.Error,
			Groups:          j.Groups,
			Speakers:        j.Speakers,
			DurationSeconds: j.DurationSeconds,
			CreatedAt:       j.CreatedAt.Format(time.RFC3339Nano),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": views})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	if s.ready() {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("not ready"))
}

// statusFor maps the failure taxonomy onto HTTP statuses.
func statusFor(kind speech.Kind) int {
	switch kind {
	case speech.KindValidation:
		return http.StatusBadRequest
	case speech.KindEngineTimeout:
		return http.StatusGatewayTimeout
	case speech.KindEngineTransport, speech.KindEngineResponse:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	detail := errorDetail{Code: string(speech.KindInternal), Message: err.Error(), Group: -1}
	status := http.StatusInternalServerError
	var gerr *speech.Error
	if errors.As(err, &gerr) {
		detail.Code = string(gerr.Kind)
		detail.Group = gerr.Group
		status = statusFor(gerr.Kind)
	}
	s.log.Warn("request failed",
		slog.String("code", detail.Code),
		slog.Int("status", status),
		slog.String("error", detail.Message))
	writeJSON(w, status, errorBody{Error: detail})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
