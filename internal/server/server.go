// Package server exposes discovery over HTTP.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/shpitdev/mailfinder/internal/finder"
)

// MissingParamsMessage is returned when a request lacks first_name or company_website.
const MissingParamsMessage = "Missing required parameters. Please provide first_name and company_website"

const maxRequestBytes = 64 << 10

// Discoverer runs one discovery. *finder.Finder satisfies it.
type Discoverer interface {
	Discover(ctx context.Context, p finder.Person) finder.Result
}

type Server struct {
	discoverer Discoverer
	logger     *zap.Logger
}

func New(d Discoverer, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{discoverer: d, logger: logger}
}

// Routes returns a chi.Router serving POST /find_email and GET /healthz.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Post("/find_email", s.handleFindEmail)
	return r
}

func (s *Server) handleFindEmail(w http.ResponseWriter, r *http.Request) {
	var p finder.Person
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		s.logger.Debug("rejecting undecodable request", zap.Error(err))
		writeError(w, http.StatusBadRequest, MissingParamsMessage)
		return
	}
	p.FirstName = strings.TrimSpace(p.FirstName)
	p.LastName = strings.TrimSpace(p.LastName)
	p.CompanyWebsite = strings.TrimSpace(p.CompanyWebsite)
	if p.FirstName == "" || p.CompanyWebsite == "" {
		writeError(w, http.StatusBadRequest, MissingParamsMessage)
		return
	}

	res := s.discoverer.Discover(r.Context(), p)
	s.logger.Info("discovery finished",
		zap.String("domain", finder.ExtractRootDomain(p.CompanyWebsite)),
		zap.Bool("found", res.Found()),
		zap.Int("credits", res.TotalCreditsUsed),
	)
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
