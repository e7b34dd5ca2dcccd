package routes

import (
	"encoding/json"
	"fmt"
	"net/http"

	"pixpack/logger"
)

// JobStatusHandler returns the state and progress of a job by ID
func JobStatusHandler(w http.ResponseWriter, r *http.Request) {
	logger.Debugf("Job status request: method=%s, remoteAddr=%s", r.Method, r.RemoteAddr)

	if r.Method != http.MethodGet {
		logger.Warnf("Invalid method for status endpoint: %s", r.Method)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	jobID := r.URL.Query().Get("job")
	if jobID == "" {
		logger.Warn("Missing job parameter in status request")
		http.Error(w, "Missing job parameter", http.StatusBadRequest)
		return
	}

	status, exists := worker.GetJobStatus(jobID)
	if !exists {
		logger.Warnf("Job not found: %s", jobID)
		http.Error(w, fmt.Sprintf("Job %s not found", jobID), http.StatusNotFound)
		return
	}

	logger.Debugf("Job status: job=%s, state=%s, %d/%d", jobID, status.State, status.Processed, status.Total)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(status); err != nil {
		logger.Errorf("Failed to encode status response: %v", err)
	}
}
