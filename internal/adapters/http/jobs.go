package httpadapter

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// streamJobEvents relays job status events until the job reaches a terminal
// status or the client goes away.
func (rt *Router) streamJobEvents(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	events, err := rt.svc.Jobs.Events(r.Context(), jobID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	stream, err := newSSEWriter(w)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming unsupported"})
		return
	}

	heartbeat := time.NewTicker(sseHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			if err := stream.ping(); err != nil {
				return
			}
		case event, ok := <-events:
			if !ok {
				_ = stream.done()
				return
			}
			if err := stream.data(event); err != nil {
				return
			}
			if event.Status.Terminal() {
				_ = stream.done()
				return
			}
		}
	}
}

func (rt *Router) cancelJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	if err := rt.svc.Jobs.Cancel(r.Context(), jobID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID, "status": "cancel_requested"})
}
