package ws

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/lengolf/ledger-api/internal/database"
)

// Event represents a WebSocket message to be broadcast
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Hub maintains the set of active clients and broadcasts pipeline events
// (batch completion, cutoff changes) to them. Dashboards subscribe here
// instead of polling the batch history.
type Hub struct {
	clients map[*Client]bool

	register   chan *Client
	unregister chan *Client

	broadcast chan Event

	mu sync.RWMutex
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan Event, 256),
	}
}

// Run starts the hub's main loop
// This should be called as a goroutine: go hub.Run()
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()

		case event := <-h.broadcast:
			message, err := json.Marshal(event)
			if err != nil {
				continue
			}

			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Client's send buffer is full, close and unregister
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast sends an event to all connected clients.
func (h *Hub) Broadcast(event Event) {
	h.broadcast <- event
}

// batchEventPayload is the JSON body of sync.* events.
type batchEventPayload struct {
	BatchID         string `json:"batch_id"`
	Status          string `json:"status"`
	LegacyProcessed int32  `json:"legacy_processed"`
	LegacyInserted  int32  `json:"legacy_inserted"`
	LegacySkipped   int32  `json:"legacy_skipped"`
	PosProcessed    int32  `json:"pos_processed"`
	PosInserted     int32  `json:"pos_inserted"`
	PosSkipped      int32  `json:"pos_skipped"`
	Error           string `json:"error,omitempty"`
}

// NotifyBatch implements the ledger builder's Notifier: it broadcasts a
// batch lifecycle event to all connected dashboards.
func (h *Hub) NotifyBatch(event string, batch database.SyncBatch) {
	payload := batchEventPayload{
		BatchID:         batch.ID.String(),
		Status:          batch.Status,
		LegacyProcessed: batch.LegacyProcessed,
		LegacyInserted:  batch.LegacyInserted,
		LegacySkipped:   batch.LegacySkipped,
		PosProcessed:    batch.PosProcessed,
		PosInserted:     batch.PosInserted,
		PosSkipped:      batch.PosSkipped,
	}
	if batch.ErrorDetail.Valid {
		payload.Error = batch.ErrorDetail.String
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		log.Printf("ws: marshal batch event: %v", err)
		return
	}
	h.Broadcast(Event{Type: event, Payload: raw})
}

// NotifyCutoffChanged broadcasts a cutoff.changed event.
func (h *Hub) NotifyCutoffChanged(cutoffDate, reason string) {
	raw, err := json.Marshal(map[string]string{
		"cutoff_date": cutoffDate,
		"reason":      reason,
	})
	if err != nil {
		log.Printf("ws: marshal cutoff event: %v", err)
		return
	}
	h.Broadcast(Event{Type: "cutoff.changed", Payload: raw})
}
