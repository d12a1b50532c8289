// Package httpapi exposes the cleaning session over a JSON HTTP API. It is
// a thin layer: request decoding, session lookup and error mapping; all
// semantics live in the domain packages.
package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/okabe/seriescrub/internal/domain/session"
)

// Server wires HTTP handlers over the session manager.
type Server struct {
	sessions       *session.Manager
	logger         *slog.Logger
	uploadMaxBytes int64
}

// Options configures the HTTP server.
type Options struct {
	UploadMaxBytes int64
	// APIToken enables bearer token auth on all session routes when set.
	APIToken string
}

// NewRouter builds the chi router for the API.
func NewRouter(sessions *session.Manager, logger *slog.Logger, opts Options) *chi.Mux {
	srv := &Server{
		sessions:       sessions,
		logger:         logger,
		uploadMaxBytes: opts.UploadMaxBytes,
	}
	if srv.uploadMaxBytes <= 0 {
		srv.uploadMaxBytes = 64 << 20
	}

	r := chi.NewRouter()
	r.Use(srv.requestLogger)

	r.Get("/health", srv.handleHealth)

	r.Route("/sessions", func(r chi.Router) {
		if opts.APIToken != "" {
			r.Use(authMiddleware(opts.APIToken))
		}

		r.Post("/", srv.handleCreateSession)
		r.Get("/", srv.handleListSessions)

		r.Route("/{sessionID}", func(r chi.Router) {
			r.Delete("/", srv.handleCloseSession)

			r.Post("/data", srv.handleUpload)
			r.Get("/data", srv.handleExport)
			r.Get("/data/info", srv.handleDataInfo)

			r.Post("/selections", srv.handlePreview)
			r.Post("/removals", srv.handleRemove)

			r.Get("/history", srv.handleHistory)
			r.Post("/history/{seq}/restore", srv.handleRestore)

			r.Get("/stats", srv.handleDescribe)
			r.Get("/stats/correlation", srv.handleCorrelation)
			r.Get("/stats/normality", srv.handleNormality)
			r.Get("/stats/trend", srv.handleTrend)
			r.Get("/stats/outliers", srv.handleOutlierBounds)
			r.Get("/stats/compare", srv.handleComparePeriods)

			r.Get("/charts/timeseries.png", srv.handleTimeSeriesPNG)
			r.Get("/charts/timeseries.html", srv.handleTimeSeriesHTML)
			r.Get("/charts/histogram.png", srv.handleHistogramPNG)
			r.Get("/charts/correlation.html", srv.handleCorrelationHeatmap)
			r.Get("/charts/scatter.html", srv.handleScatterHTML)

			r.Get("/report", srv.handleReport)
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// requestLogger logs each request with method, path, status and duration.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// session resolves the session from the URL, writing the error itself when
// the lookup fails.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id := chi.URLParam(r, "sessionID")
	sess, err := s.sessions.Get(id)
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	return sess, true
}
