package routes

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"pixpack/credentials"
	"pixpack/failures"
	"pixpack/logger"
	"pixpack/success"
)

// Build-time variables (injected by ldflags)
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status         string            `json:"status"`
	Timestamp      time.Time         `json:"timestamp"`
	Version        string            `json:"version"`
	GoVersion      string            `json:"go_version"`
	Uptime         string            `json:"uptime"`
	StartTime      string            `json:"start_time"`
	PendingJobs    int               `json:"pending_jobs"`
	ActiveSessions int               `json:"active_sessions"`
	Stores         map[string]string `json:"stores"`
}

// Global start time for uptime calculation
var startTime = time.Now()

// formatUptime formats a duration into days, hours, minutes, seconds
func formatUptime(d time.Duration) string {
	days := int(d.Hours() / 24)
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
}

// HealthHandler reports liveness plus the state of the pebble stores.
// Any unhealthy store turns the response into a 503.
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	logger.Debugf("Health check request: method=%s, remoteAddr=%s", r.Method, r.RemoteAddr)

	if r.Method != http.MethodGet {
		logger.Warnf("Invalid method for health endpoint: %s", r.Method)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Version:   version,
		GoVersion: runtime.Version(),
		Uptime:    formatUptime(time.Since(startTime)),
		StartTime: startTime.Format("2006-01-02 15:04:05 MST"),
		Stores:    make(map[string]string),
	}
	if worker != nil {
		response.PendingJobs = len(worker.PendingJobs())
	}
	if sessions != nil {
		response.ActiveSessions = len(sessions.Active())
	}

	checks := map[string]func() error{
		"credentials": credentials.CheckHealth,
		"failures":    failures.CheckHealth,
		"success":     success.CheckHealth,
	}
	code := http.StatusOK
	for name, check := range checks {
		if err := check(); err != nil {
			logger.Warnf("Health check: %s store unhealthy: %v", name, err)
			response.Stores[name] = err.Error()
			response.Status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		response.Stores[name] = "ok"
	}

	logger.Debugf("Health check response: status=%s, version=%s", response.Status, response.Version)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		logger.Errorf("Failed to encode health response: %v", err)
	}
}
