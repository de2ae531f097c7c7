package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// HealthCheck probes one dependency
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type ServiceStatus struct {
	Service string `json:"service"`
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
	Latency string `json:"latency,omitempty"`
}

type HealthResponse struct {
	Status    string          `json:"status"`
	Timestamp string          `json:"timestamp"`
	Uptime    string          `json:"uptime"`
	Services  []ServiceStatus `json:"services"`
	Summary   struct {
		Total     int `json:"total"`
		Healthy   int `json:"healthy"`
		Unhealthy int `json:"unhealthy"`
	} `json:"summary"`
}

// HealthHandler reports dependency status. Any failing dependency makes the
// service degraded; a majority failing makes it unhealthy (503).
type HealthHandler struct {
	checks  []HealthCheck
	timeout time.Duration
	started time.Time
}

func NewHealthHandler(timeout time.Duration, checks ...HealthCheck) *HealthHandler {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &HealthHandler{checks: checks, timeout: timeout, started: time.Now()}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	services := make([]ServiceStatus, 0, len(h.checks))
	unhealthy := 0
	for _, c := range h.checks {
		start := time.Now()
		err := c.Check(ctx)
		s := ServiceStatus{Service: c.Name, Status: "healthy", Latency: time.Since(start).String()}
		if err != nil {
			s.Status = "unhealthy"
			s.Error = err.Error()
			unhealthy++
		}
		services = append(services, s)
	}

	overall := "healthy"
	if unhealthy > 0 {
		overall = "degraded"
	}
	if unhealthy > len(services)/2 {
		overall = "unhealthy"
	}

	resp := HealthResponse{
		Status:    overall,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    fmt.Sprintf("%.0fs", time.Since(h.started).Seconds()),
		Services:  services,
	}
	resp.Summary.Total = len(services)
	resp.Summary.Healthy = len(services) - unhealthy
	resp.Summary.Unhealthy = unhealthy

	status := http.StatusOK
	if overall == "unhealthy" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
