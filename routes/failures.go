package routes

import (
	"encoding/json"
	"net/http"

	"pixpack/failures"
	"pixpack/logger"
)

// FailureQueryHandler handles queries for failed jobs
func FailureQueryHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	jobID := r.URL.Query().Get("job")
	if jobID == "" {
		http.Error(w, "job parameter required", http.StatusBadRequest)
		return
	}

	record, err := failures.GetFailure(jobID)
	if err != nil {
		logger.Errorf("Failed to query failure for job %s: %v", jobID, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	if record == nil {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"jobId":   jobID,
			"status":  "not_found",
			"message": "No failure recorded for this job",
		})
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"jobId":     record.JobID,
		"status":    "failed",
		"timestamp": record.Timestamp,
		"error":     record.Error,
		"processed": record.Processed,
		"total":     record.Total,
		"job_data":  record.JobData,
	})
}

// FailureListHandler handles listing all failures (admin endpoint)
func FailureListHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	failuresList, err := failures.ListFailures()
	if err != nil {
		logger.Errorf("Failed to list failures: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"failures": failuresList,
		"count":    len(failuresList),
	})
}
