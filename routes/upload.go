package routes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"pixpack/config"
	"pixpack/credentials"
	"pixpack/logger"
	"pixpack/models"
	"pixpack/session"
	"pixpack/utils"

	"github.com/google/uuid"
)

// SubmitResponse is returned once a job is queued
type SubmitResponse struct {
	JobID  string `json:"jobId"`
	Output string `json:"output"` // object key the archive will be written under
}

// verifyJWT verifies the JWT from the request and returns the claims
func verifyJWT(r *http.Request) (*models.PixpackJWT, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return nil, fmt.Errorf("authorization header required")
	}

	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == authHeader {
		return nil, fmt.Errorf("invalid authorization header format")
	}

	secret := config.GetJWTSecret()
	if secret == "" {
		return nil, fmt.Errorf("server has no jwt secret configured")
	}

	return utils.VerifyJWT(token, utils.VerifyConfig{
		SecretKey: []byte(secret),
	})
}

// JobSubmitHandler accepts an archive upload and queues a job for it
func JobSubmitHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	claims, err := verifyJWT(r)
	if err != nil {
		http.Error(w, fmt.Sprintf("Invalid token: %v", err), http.StatusUnauthorized)
		return
	}

	rules := claims.Job.Rules.WithDefaults()
	if err := rules.Validate(); err != nil {
		http.Error(w, fmt.Sprintf("Invalid rules: %v", err), http.StatusBadRequest)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, config.GetMaxUploadBytes())
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "Archive too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "Failed to parse multipart form", http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, _, err := r.FormFile("archive")
	if err != nil {
		http.Error(w, "Failed to get archive from form", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "Failed to read archive", http.StatusInternalServerError)
		return
	}

	jobID := uuid.NewString()
	s, err := sessions.Open(context.Background(), jobID, claims.Job)
	if err != nil {
		logger.Warnf("Rejected job %s: %v", jobID, err)
		if errors.Is(err, session.ErrUnknownBackend) || errors.Is(err, credentials.ErrNotFound) {
			http.Error(w, fmt.Sprintf("Invalid destination: %v", err), http.StatusBadRequest)
		} else {
			http.Error(w, "Failed to open archive destination", http.StatusInternalServerError)
		}
		return
	}

	inv := models.JobInvocation{JobID: jobID, ArchiveData: data, Rules: claims.Job.Rules}
	if err := worker.Submit(inv, s); err != nil {
		logger.Errorf("Failed to submit job %s: %v", jobID, err)
		s.Emit(models.Message{Kind: models.KindJobFailed, JobID: jobID, Reason: err.Error()})
		http.Error(w, "Worker unavailable", http.StatusServiceUnavailable)
		return
	}
	logger.Infof("Queued job %s (%d bytes) for %s", jobID, len(data), s.Key())

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(SubmitResponse{JobID: jobID, Output: s.Key()})
}
