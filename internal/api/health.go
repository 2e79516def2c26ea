package api

import (
	"context"
	"net/http"
	"time"
)

const probeTimeout = 3 * time.Second

type healthReport struct {
	Status    string          `json:"status"`
	Timestamp time.Time       `json:"timestamp"`
	Version   string          `json:"version"`
	Uptime    float64         `json:"uptime"`
	Services  map[string]bool `json:"services"`
}

// probe runs every check and the engine ping. It returns the per-service
// result and the name of the first failing service.
func (s *Server) probe(ctx context.Context) (map[string]bool, string) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	services := make(map[string]bool, len(s.checks)+1)
	failed := ""
	record := func(name string, err error) {
		services[name] = err == nil
		if err != nil {
			s.logger.Warn("health probe failed", "service", name, "error", err)
			if failed == "" {
				failed = name
			}
		}
	}

	record("accounts", s.accounts.Ping(ctx))
	for _, c := range s.checks {
		record(c.Name, c.Probe(ctx))
	}
	return services, failed
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	services, failed := s.probe(r.Context())
	report := healthReport{
		Status:    "healthy",
		Timestamp: s.now().UTC(),
		Version:   s.version,
		Uptime:    time.Since(s.started).Seconds(),
		Services:  services,
	}
	if failed != "" {
		report.Status = "unhealthy"
		respondWithJSON(w, http.StatusServiceUnavailable, envelope{
			Success: false,
			Data:    report,
			Error: &errorBody{
				Code:       "HEALTH_CHECK_FAILED",
				Message:    "One or more services are unhealthy",
				StatusCode: http.StatusServiceUnavailable,
			},
		})
		return
	}
	respondOK(w, http.StatusOK, report, "")
}

func (s *Server) handlePing(w http.ResponseWriter, _ *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]bool{"pong": true})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if _, failed := s.probe(r.Context()); failed != "" {
		respondWithJSON(w, http.StatusServiceUnavailable, map[string]any{"ready": false, "reason": failed + " not ready"})
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]bool{"ready": true})
}
