// Package httpapi serves a read-only view of jobs and their artifacts: job
// records, the analysis result, the clip manifest and the clip and subtitle
// downloads, plus a component health report.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/forPelevin/vodclips/internal/jobs"
	"github.com/forPelevin/vodclips/internal/logging"
	"github.com/forPelevin/vodclips/internal/ports"
)

// JobReader is the read side of the job store.
type JobReader interface {
	Get(ctx context.Context, id string) (*jobs.Job, error)
	List(ctx context.Context, limit int) ([]jobs.Job, error)
	Ping(ctx context.Context) error
}

type Deps struct {
	Store       ports.BlobStore
	Jobs        JobReader
	Transcriber ports.ReadinessReporter
	Logger      *slog.Logger
}

type Server struct {
	router      chi.Router
	store       ports.BlobStore
	jobs        JobReader
	transcriber ports.ReadinessReporter
	logger      *slog.Logger
}

func New(d Deps) *Server {
	s := &Server{
		router:      chi.NewRouter(),
		store:       d.Store,
		jobs:        d.Jobs,
		transcriber: d.Transcriber,
		logger:      logging.NewComponentLogger(d.Logger, "httpapi"),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)
	s.router.Use(s.logRequests)

	s.router.Get("/health", s.handleHealth)

	s.router.Route("/jobs", func(r chi.Router) {
		r.Get("/", s.handleListJobs)
		r.Get("/{jobID}", s.handleGetJob)
	})

	s.router.Get("/audio/analysis/{jobID}", s.handleGetAnalysis)
	s.router.Get("/transcript/{jobID}", s.handleGetTranscript)

	s.router.Route("/clips/{jobID}", func(r chi.Router) {
		r.Get("/", s.handleGetManifest)
		r.Get("/preview", s.handlePreview)
		r.Get("/download/{index}", s.handleDownloadClip)
		r.Get("/srt/{index}", s.handleDownloadSRT)
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	s.logger.Info("http api listening", slog.String("addr", ln.Addr().String()))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http api: %w", err)
		}
		return nil
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Duration("duration", time.Since(start)),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
