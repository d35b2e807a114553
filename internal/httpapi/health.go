package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/forPelevin/vodclips/internal/ports"
	"github.com/forPelevin/vodclips/internal/warmup"
)

const (
	statusHealthy   = "healthy"
	statusDegraded  = "degraded"
	statusUnhealthy = "unhealthy"
)

// ComponentHealth describes the health of a single component.
type ComponentHealth struct {
	Status  string `json:"status"`
	State   string `json:"state,omitempty"`
	Latency string `json:"latency,omitempty"`
	Message string `json:"message,omitempty"`
}

type HealthResponse struct {
	Status     string                     `json:"status"`
	Components map[string]ComponentHealth `json:"components"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	components := map[string]ComponentHealth{
		"store":       s.checkStore(ctx),
		"jobs":        checkPing(ctx, s.jobs.Ping),
		"transcriber": s.checkTranscriber(),
	}
	overall := statusHealthy
	for _, c := range components {
		switch {
		case c.Status == statusUnhealthy:
			overall = statusUnhealthy
		case c.Status == statusDegraded && overall == statusHealthy:
			overall = statusDegraded
		}
	}

	status := http.StatusOK
	if overall == statusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, HealthResponse{Status: overall, Components: components}, s.logger)
}

func (s *Server) checkStore(ctx context.Context) ComponentHealth {
	if p, ok := s.store.(ports.Pinger); ok {
		return checkPing(ctx, p.Ping)
	}
	return ComponentHealth{Status: statusHealthy}
}

func checkPing(ctx context.Context, ping func(context.Context) error) ComponentHealth {
	start := time.Now()
	if err := ping(ctx); err != nil {
		return ComponentHealth{Status: statusUnhealthy, Message: err.Error()}
	}
	return ComponentHealth{Status: statusHealthy, Latency: time.Since(start).String()}
}

// checkTranscriber reports the readiness gate. A backend that failed to load
// degrades the service; reads keep working.
func (s *Server) checkTranscriber() ComponentHealth {
	if s.transcriber == nil {
		return ComponentHealth{Status: statusDegraded, Message: "not configured"}
	}
	state := s.transcriber.State()
	switch state {
	case warmup.StateError:
		msg := ""
		if err := s.transcriber.Err(); err != nil {
			msg = err.Error()
		}
		return ComponentHealth{Status: statusDegraded, State: state, Message: msg}
	default:
		return ComponentHealth{Status: statusHealthy, State: state}
	}
}
