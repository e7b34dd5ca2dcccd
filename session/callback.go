package session

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"pixpack/logger"
	"pixpack/models"
	"pixpack/success"
)

// CallbackPayload is POSTed to a job's callback URL once it finishes.
type CallbackPayload struct {
	JobID     string          `json:"jobId"`
	Status    string          `json:"status"` // completed or failed
	Location  string          `json:"location,omitempty"`
	Reason    string          `json:"reason,omitempty"`
	Summary   success.Summary `json:"summary"`
	Timestamp int64           `json:"timestamp"`
}

// sendCallback sends the completion callback if configured
func (m *Manager) sendCallback(spec models.JobSpec, payload CallbackPayload) error {
	if spec.CallbackURL == "" {
		return nil // No callback configured
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal callback payload: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, spec.CallbackURL, bytes.NewBuffer(payloadBytes))
	if err != nil {
		return fmt.Errorf("failed to create callback request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Pixpack/1.0")
	for key, value := range spec.CallbackHeaders {
		req.Header.Set(key, value)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("callback request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("callback returned non-2xx status: %d", resp.StatusCode)
	}

	logger.Infof("Successfully sent callback to %s", spec.CallbackURL)
	return nil
}
