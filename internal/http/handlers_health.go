package httpx

import "net/http"

// healthHandler reports process liveness. The job store is opened and the
// conversion backend probed before the server starts listening, so a
// responding process has everything it needs.
func healthHandler(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
