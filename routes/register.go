package routes

import (
	"encoding/json"
	"net/http"

	"pixpack/credentials"
	"pixpack/logger"
)

// RegisterCredentialsHandler stores destination credentials and returns the storage key
// tokens reference them by.
func RegisterCredentialsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if _, err := verifyJWT(r); err != nil {
		http.Error(w, "Invalid token", http.StatusUnauthorized)
		return
	}

	credsBody := make(map[string]string)
	if err := json.NewDecoder(r.Body).Decode(&credsBody); err != nil || len(credsBody) == 0 {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	key, err := credentials.Register(credsBody)
	if err != nil {
		logger.Errorf("Failed to store credentials: %v", err)
		http.Error(w, "Failed to store credentials", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"storage_key": key,
	})
}
