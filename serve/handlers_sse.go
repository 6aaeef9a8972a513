package serve

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// handleSSE streams run events as Server-Sent Events. With ?run=<id> the
// broker delivers only that run's events. Heartbeat comments report how many
// events this client has missed.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "streaming unsupported"})
		return
	}

	sub := s.broker.Subscribe(r.URL.Query().Get("run"))
	if sub == nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: "too many subscribers"})
		return
	}
	defer func() {
		s.broker.Unsubscribe(sub)
		if n := sub.Dropped(); n > 0 {
			s.logger.Warn("sse subscriber dropped events", "run_id", sub.RunID(), "dropped", n)
		}
	}()

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")

	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	ticker := time.NewTicker(s.cfg.Heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			fmt.Fprintf(w, ": heartbeat dropped=%d\n\n", sub.Dropped())
		case e, ok := <-sub.C:
			if !ok {
				return
			}
			data, err := json.Marshal(e)
			if err != nil {
				s.logger.Warn("sse encode failed", "run_id", e.RunID, "error", err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Type, data)
		}
		flusher.Flush()
	}
}
