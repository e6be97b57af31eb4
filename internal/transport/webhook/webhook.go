// Package webhook implements the gateway's inbound update receiver:
// POST / and POST /webhook accept update payloads pushed by the bot
// platform, guarded by an optional shared-secret header, and queued for
// downstream consumers. Grounded on the teacher's internal/server router
// construction and its crypto/subtle secret comparison in internal/auth.
package webhook

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/eugener/gatekeeper/internal/transport"
)

const secretHeader = "X-Telegram-Bot-Api-Secret-Token"

// maxQueueLen is the in-memory update queue's capacity; oldest entries
// are dropped on overflow.
const maxQueueLen = 1000

// Queue is a capped in-memory FIFO of raw update payloads.
type Queue struct {
	mu      sync.Mutex
	items   []json.RawMessage
	maxSize int
}

// NewQueue creates a Queue capped at maxQueueLen entries.
func NewQueue() *Queue {
	return &Queue{maxSize: maxQueueLen}
}

// Push appends update, dropping the oldest entry if the queue is full.
func (q *Queue) Push(update json.RawMessage) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) >= q.maxSize {
		q.items = q.items[1:]
	}
	q.items = append(q.items, update)
}

// Pending reports the current queue depth.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Drain removes and returns every queued update, oldest first.
func (q *Queue) Drain() []json.RawMessage {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	return items
}

// Handler serves the webhook listener's three routes.
type Handler struct {
	secret string
	queue  *Queue
}

// New builds a chi-routed http.Handler. secret, if non-empty, is compared
// against the incoming X-Telegram-Bot-Api-Secret-Token header using a
// constant-time comparison.
func New(secret string, queue *Queue) http.Handler {
	h := &Handler{secret: secret, queue: queue}

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{AllowedMethods: []string{http.MethodPost, http.MethodGet}}))
	r.Use(transport.Recovery)
	r.Use(transport.RequestID)
	r.Use(transport.Logging)

	r.Post("/", h.handleUpdate)
	r.Post("/webhook", h.handleUpdate)
	r.Get("/health", h.handleHealth)

	return r
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	if h.secret != "" {
		got := r.Header.Get(secretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) != 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
	}

	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	h.queue.Push(raw)
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"ok":      true,
		"pending": h.queue.Pending(),
	})
}
