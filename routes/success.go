package routes

import (
	"encoding/json"
	"net/http"

	"pixpack/logger"
	"pixpack/success"
)

// SuccessQueryHandler handles queries for completed jobs
func SuccessQueryHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	jobID := r.URL.Query().Get("job")
	if jobID == "" {
		http.Error(w, "job parameter required", http.StatusBadRequest)
		return
	}

	record, err := success.GetSuccess(jobID)
	if err != nil {
		logger.Errorf("Failed to query success for job %s: %v", jobID, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	if record == nil {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"jobId":   jobID,
			"status":  "not_found",
			"message": "No success record found for this job",
		})
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"jobId":         record.JobID,
		"status":        "success",
		"timestamp":     record.Timestamp,
		"location":      record.Location,
		"entry_count":   record.EntryCount,
		"archive_bytes": record.ArchiveBytes,
		"summary":       record.Summary,
		"job_data":      record.JobData,
	})
}

// SuccessListHandler handles listing all success records (admin endpoint)
func SuccessListHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	records, err := success.ListSuccessRecords()
	if err != nil {
		logger.Errorf("Failed to list success records: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success_records": records,
		"count":           len(records),
	})
}
