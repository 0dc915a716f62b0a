// Package api exposes the report service over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/haral/audit-reports/internal/files"
	"github.com/haral/audit-reports/internal/service"
	"github.com/haral/audit-reports/internal/store"
)

// Options configures the HTTP server.
type Options struct {
	AllowedOrigins []string
	MaxUploadBytes int64
}

// Server routes HTTP requests to the service.
type Server struct {
	svc       *service.Service
	gate      *RenderGate
	maxUpload int64
	origins   []string
}

// NewServer creates a Server. Document downloads pass through gate.
func NewServer(svc *service.Service, gate *RenderGate, opts Options) *Server {
	maxUpload := opts.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = 16 << 20
	}
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return &Server{svc: svc, gate: gate, maxUpload: maxUpload, origins: origins}
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/customers", func(r chi.Router) {
		r.Get("/", s.listCustomers)
		r.Post("/", s.createCustomer)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.getCustomer)
			r.Put("/", s.updateCustomer)
			r.Delete("/", s.deleteCustomer)
			r.Post("/logo", s.uploadLogo)
		})
	})

	r.Route("/api/reports", func(r chi.Router) {
		r.Get("/", s.listReports)
		r.Post("/", s.createReport)
		r.Get("/search", s.searchReports)
		r.Get("/statistics", s.statistics)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.getReport)
			r.Put("/", s.updateReport)
			r.Delete("/", s.deleteReport)
			r.Put("/status", s.setStatus)
			r.Post("/duplicate", s.duplicateReport)
			r.Post("/images", s.uploadImage)
			r.Get("/pdf", s.downloadPDF)
		})
	})

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

type errorBody struct {
	Error   string   `json:"error"`
	Field   string   `json:"field,omitempty"`
	Allowed []string `json:"allowed,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("encode response", zap.Error(err))
	}
}

// writeError maps service errors onto status codes. Unexpected errors are
// logged and reported without detail.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *service.ValidationError
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: ve.Error(), Field: ve.Field, Allowed: ve.Allowed})
	case errors.As(err, &tooLarge):
		writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: "upload too large"})
	case errors.Is(err, store.ErrNotFound), errors.Is(err, files.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
	case errors.Is(err, service.ErrConflict):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error()})
	case errors.Is(err, ErrBusy):
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "server busy, retry later"})
	default:
		zap.L().Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: msg})
}
