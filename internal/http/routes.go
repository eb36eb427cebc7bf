package httpx

import (
	"net/http"

	"github.com/gdg-qu/certmailer/internal/service"
)

// RouterServices holds the services needed by the HTTP router.
type RouterServices struct {
	Jobs *service.JobService
}

// NewRouter creates and configures the HTTP router. Middleware is applied by
// the caller.
func NewRouter(services RouterServices) http.Handler {
	mux := http.NewServeMux()

	jobHandlers := &JobHandlers{Svc: services.Jobs}

	mux.HandleFunc("POST /jobs", jobHandlers.SubmitJob)
	mux.HandleFunc("GET /jobs", jobHandlers.ListJobs)
	mux.HandleFunc("GET /jobs/{id}", jobHandlers.GetJob)
	mux.HandleFunc("GET /jobs/{id}/tasks/{taskID}", jobHandlers.GetTask)
	mux.Handle("GET /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("HEAD /healthz", http.HandlerFunc(healthHandler))

	return mux
}
