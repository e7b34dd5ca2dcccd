package routes

import (
	"net/http"

	"pixpack/job"
	"pixpack/session"
	writerbackends "pixpack/writerBackends"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	worker   *job.Worker
	sessions *session.Manager
)

// Init wires the handlers to the job worker and delivery sessions. Call before Register.
func Init(w *job.Worker, m *session.Manager) {
	worker = w
	sessions = m
}

// Register adds every endpoint to mux. filesDir is served under /files/.
func Register(mux *http.ServeMux, filesDir string) {
	mux.HandleFunc("/jobs", JobSubmitHandler)
	mux.HandleFunc("/status", JobStatusHandler)
	mux.HandleFunc("/cancel", CancelJobHandler)
	mux.HandleFunc("/failures", FailureQueryHandler)
	mux.HandleFunc("/failures/list", FailureListHandler)
	mux.HandleFunc("/success", SuccessQueryHandler)
	mux.HandleFunc("/success/list", SuccessListHandler)
	mux.HandleFunc("/credentials", RegisterCredentialsHandler)
	mux.HandleFunc("/health", HealthHandler)
	mux.HandleFunc("/version", VersionHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle(writerbackends.FilesRoute, http.StripPrefix(writerbackends.FilesRoute, http.FileServer(http.Dir(filesDir))))
}
