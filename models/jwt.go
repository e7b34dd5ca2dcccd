package models

type PixpackJWT struct {
	Issuer    string  `json:"iss"` // optional
	Subject   string  `json:"sub"`
	IssuedAt  int64   `json:"iat"`
	ExpiresAt int64   `json:"exp"`
	Job       JobSpec `json:"job"`
}

// JobSpec is what a token authorizes: the rules for one archive and where the result goes.
type JobSpec struct {
	Rules       Rules       `json:"rules"`
	Destination Destination `json:"destination"`

	CallbackURL     string            `json:"callbackUrl,omitempty"` // POSTed once the archive is written or the job fails
	CallbackHeaders map[string]string `json:"callbackHeaders,omitempty"`
}

// Destination selects the writer backend for the output archive.
type Destination struct {
	Type       string `json:"type"`                 // directServe (default), s3, gcs, sftp
	StorageKey string `json:"storageKey,omitempty"` // key into the credentials store
	Folder     string `json:"folder,omitempty"`     // tenant folder or key prefix
	Filename   string `json:"filename,omitempty"`   // defaults to <jobId>.zip
}
