package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"clipforge/internal/logging"
)

// HandlerOptions tunes the SSE endpoint.
type HandlerOptions struct {
	Buffer    int
	Heartbeat time.Duration
}

// Handler streams hub events as Server-Sent Events. Clients may pass
// ?client_id=; otherwise a random id is assigned and announced in a
// "connected" event.
func Handler(hub *Hub, opts HandlerOptions, logger *slog.Logger) http.HandlerFunc {
	if logger == nil {
		logger = logging.NewNop()
	}
	if opts.Heartbeat <= 0 {
		opts.Heartbeat = 15 * time.Second
	}
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}
		clientID := strings.TrimSpace(r.URL.Query().Get("client_id"))
		if clientID == "" {
			clientID = uuid.NewString()
		}
		sub, err := hub.Subscribe(clientID, opts.Buffer)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer hub.unsubscribeIf(sub)

		header := w.Header()
		header.Set("Content-Type", "text/event-stream")
		header.Set("Cache-Control", "no-cache")
		header.Set("Connection", "keep-alive")
		header.Set("X-Accel-Buffering", "no")
		w.WriteHeader(http.StatusOK)

		if err := writeFrame(w, "connected", map[string]string{"client_id": clientID}); err != nil {
			return
		}
		flusher.Flush()

		ticker := time.NewTicker(opts.Heartbeat)
		defer ticker.Stop()
		for {
			select {
			case <-r.Context().Done():
				return
			case evt, ok := <-sub.Events():
				if !ok {
					return
				}
				if err := writeFrame(w, string(evt.Type), evt); err != nil {
					logger.Debug("event stream write failed", logging.String("client_id", clientID), logging.Error(err))
					return
				}
				flusher.Flush()
			case <-ticker.C:
				if _, err := fmt.Fprint(w, ": heartbeat\n\n"); err != nil {
					return
				}
				flusher.Flush()
			}
		}
	}
}

func writeFrame(w http.ResponseWriter, name string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
	return err
}
