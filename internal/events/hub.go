package events

import (
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"clipforge/internal/logging"
)

// Type names the kind of event delivered to clients.
type Type string

const (
	TypeProgress         Type = "progress_update"
	TypeJobCompleted     Type = "job_completed"
	TypeJobError         Type = "job_error"
	TypeCleanupCompleted Type = "cleanup_completed"
)

// FileResult reports one processed file inside a completion event.
type FileResult struct {
	FileID     string `json:"file_id"`
	OutputPath string `json:"output_path"`
	Status     string `json:"status"`
}

// Event is the payload pushed to subscribers.
type Event struct {
	Sequence    uint64       `json:"seq"`
	Type        Type         `json:"type"`
	JobID       string       `json:"job_id,omitempty"`
	Progress    *float64     `json:"progress,omitempty"`
	Status      string       `json:"status,omitempty"`
	Error       string       `json:"error,omitempty"`
	BundleReady *bool        `json:"bundle_ready,omitempty"`
	Results     []FileResult `json:"results,omitempty"`
	Detail      any          `json:"detail,omitempty"`
	Timestamp   time.Time    `json:"timestamp"`
}

// ErrClientIDRequired is returned when subscribing without an identifier.
var ErrClientIDRequired = errors.New("client id required")

const defaultBuffer = 64

// Subscription is one connected client.
type Subscription struct {
	ID     string
	events chan Event
	once   sync.Once
	done   chan struct{}
}

// Events delivers events in broadcast order. The channel is closed when the
// subscription ends.
func (s *Subscription) Events() <-chan Event { return s.events }

// Done is closed once the subscription has been dropped.
func (s *Subscription) Done() <-chan struct{} { return s.done }

func (s *Subscription) close() {
	s.once.Do(func() {
		close(s.done)
		close(s.events)
	})
}

// Hub tracks subscribers keyed by client id.
type Hub struct {
	mu      sync.Mutex
	clients map[string]*Subscription
	nextSeq uint64
	logger  *slog.Logger
}

// NewHub constructs an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Hub{
		clients: make(map[string]*Subscription),
		logger:  logging.NewComponentLogger(logger, "events"),
	}
}

// Subscribe registers clientID. An existing subscription with the same id is
// replaced and closed.
func (h *Hub) Subscribe(clientID string, buffer int) (*Subscription, error) {
	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		return nil, ErrClientIDRequired
	}
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	sub := &Subscription{
		ID:     clientID,
		events: make(chan Event, buffer),
		done:   make(chan struct{}),
	}
	h.mu.Lock()
	previous := h.clients[clientID]
	h.clients[clientID] = sub
	count := len(h.clients)
	h.mu.Unlock()

	if previous != nil {
		previous.close()
		h.logger.Info("client reconnected, previous stream closed", logging.String("client_id", clientID))
	}
	h.logger.Debug("client subscribed", logging.String("client_id", clientID), logging.Int("clients", count))
	return sub, nil
}

// Unsubscribe removes clientID. Unknown ids are ignored.
func (h *Hub) Unsubscribe(clientID string) {
	h.mu.Lock()
	sub := h.clients[clientID]
	delete(h.clients, clientID)
	h.mu.Unlock()
	if sub != nil {
		sub.close()
	}
}

// unsubscribeIf removes sub only if it is still the registered subscription
// for its id.
func (h *Hub) unsubscribeIf(sub *Subscription) {
	h.mu.Lock()
	if h.clients[sub.ID] == sub {
		delete(h.clients, sub.ID)
	}
	h.mu.Unlock()
	sub.close()
}

// Broadcast delivers evt to every subscriber without blocking. Subscribers
// that cannot accept the event are dropped.
func (h *Hub) Broadcast(evt Event) {
	if h == nil {
		return
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}

	h.mu.Lock()
	h.nextSeq++
	evt.Sequence = h.nextSeq
	var dropped []*Subscription
	for id, sub := range h.clients {
		if !trySend(sub, evt) {
			delete(h.clients, id)
			dropped = append(dropped, sub)
		}
	}
	h.mu.Unlock()

	for _, sub := range dropped {
		sub.close()
		h.logger.Warn("dropped unresponsive event client",
			logging.String("client_id", sub.ID),
			logging.String(logging.FieldEventType, "event_client_dropped"),
			logging.String(logging.FieldErrorHint, "client must reconnect to resume updates"),
			logging.String(logging.FieldImpact, "client misses events until it reconnects"),
		)
	}
}

// trySend performs a non-blocking send. Callers hold h.mu, and subscriptions
// are only closed after removal from the map, so the channel is open here.
func trySend(sub *Subscription, evt Event) bool {
	select {
	case <-sub.done:
		return false
	default:
	}
	select {
	case sub.events <- evt:
		return true
	default:
		return false
	}
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	if h == nil {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Clients returns connected client ids in sorted order.
func (h *Hub) Clients() []string {
	if h == nil {
		return nil
	}
	h.mu.Lock()
	ids := make([]string, 0, len(h.clients))
	for id := range h.clients {
		ids = append(ids, id)
	}
	h.mu.Unlock()
	sort.Strings(ids)
	return ids
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	subs := h.clients
	h.clients = make(map[string]*Subscription)
	h.mu.Unlock()
	for _, sub := range subs {
		sub.close()
	}
}

// Float returns a pointer to v for optional event fields.
func Float(v float64) *float64 { return &v }

// Bool returns a pointer to v for optional event fields.
func Bool(v bool) *bool { return &v }
