package routes

import (
	"errors"
	"fmt"
	"net/http"

	"pixpack/job"
	"pixpack/logger"
)

// CancelJobHandler cancels a pending job by ID
func CancelJobHandler(w http.ResponseWriter, r *http.Request) {
	logger.Debugf("Cancel job request: method=%s, remoteAddr=%s", r.Method, r.RemoteAddr)

	if r.Method != http.MethodDelete {
		logger.Warnf("Invalid method for cancel endpoint: %s", r.Method)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	jobID := r.URL.Query().Get("job")
	if jobID == "" {
		logger.Warn("Missing job parameter in cancel request")
		http.Error(w, "Missing job parameter", http.StatusBadRequest)
		return
	}

	logger.Infof("Attempting to cancel job: %s", jobID)
	if err := worker.CancelJob(jobID); err != nil {
		logger.Errorf("Failed to cancel job %s: %v", jobID, err)
		if errors.Is(err, job.ErrJobNotFound) {
			http.Error(w, fmt.Sprintf("Job not found: %v", err), http.StatusNotFound)
		} else {
			http.Error(w, fmt.Sprintf("Cannot cancel job: %v", err), http.StatusConflict)
		}
		return
	}

	logger.Infof("Job cancelled successfully: %s", jobID)
	w.WriteHeader(http.StatusNoContent)
}
