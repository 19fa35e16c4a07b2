package websocket

import (
	"time"

	"github.com/gorilla/websocket"
)

// EventType represents the type of WebSocket event
type EventType string

const (
	// EventTypeRedaction is published after a successful redaction
	EventTypeRedaction EventType = "redaction"
	// EventTypeLeakDetected is published when the auditor reports a leak
	EventTypeLeakDetected EventType = "leak_detected"
	// EventTypeRestoration is published for every restore attempt
	EventTypeRestoration EventType = "restoration"
	// EventTypeConnection represents connection events
	EventTypeConnection EventType = "connection"
	// EventTypePong answers a client ping
	EventTypePong EventType = "pong"
)

// Event represents a WebSocket event sent to clients
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
	RequestID string    `json:"request_id,omitempty"`
}

// RedactionEvent summarizes a redaction without any PII
type RedactionEvent struct {
	EntitiesFound int            `json:"entities_found"`
	EntityTypes   map[string]int `json:"entity_types"`
	PolicyContext string         `json:"policy_context,omitempty"`
	AuditQueued   bool           `json:"audit_queued"`
	ProcessingMS  float64        `json:"processing_ms"`
}

// LeakEvent reports an auditor finding and the resulting purge
type LeakEvent struct {
	Reason      string `json:"reason"`
	TokensTotal int    `json:"tokens_total"`
	KeysPurged  int    `json:"keys_purged"`
}

// RestorationEvent reports a restore attempt
type RestorationEvent struct {
	ServiceName    string `json:"service_name,omitempty"`
	TokensRestored int    `json:"tokens_restored"`
	TokensMissing  int    `json:"tokens_missing"`
	Outcome        string `json:"outcome"`
}

// ConnectionEvent represents WebSocket connection events
type ConnectionEvent struct {
	Action   string `json:"action"` // "connected", "disconnected"
	ClientID string `json:"client_id"`
	ClientIP string `json:"client_ip"`
}

// ClientMessage represents messages sent from clients to server
type ClientMessage struct {
	Type   string      `json:"type"`
	Events []EventType `json:"events,omitempty"`
}

// Client represents a WebSocket client connection
type Client struct {
	ID          string
	conn        *websocket.Conn
	Send        chan Event
	Events      map[EventType]bool // nil means every event
	ConnectedAt time.Time
	IP          string
}
