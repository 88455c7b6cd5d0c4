package websocket

import (
	"encoding/json"
	"time"
)

// MessageType identifies the type of WebSocket message.
type MessageType string

const (
	// Server -> Client event types
	TypeZoneStarted           MessageType = "zone.started"
	TypeZoneStopped           MessageType = "zone.stopped"
	TypeZoneCreated           MessageType = "zone.created"
	TypeZoneDeleted           MessageType = "zone.deleted"
	TypeZoneScheduleUpdated   MessageType = "zone.schedule_updated"
	TypeGlobalScheduleChanged MessageType = "schedule.global_changed"
	TypeNotification          MessageType = "notification"

	// Client -> Server command types
	TypePing MessageType = "ping"

	// Server -> Client response types
	TypePong  MessageType = "pong"
	TypeError MessageType = "error"
)

// Message is the WebSocket message envelope.
type Message struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   any         `json:"payload"`
}

// NewMessage creates a message stamped with the current time.
func NewMessage(msgType MessageType, payload any) Message {
	return Message{
		Type:      msgType,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// JSON serializes the message.
func (m Message) JSON() ([]byte, error) {
	return json.Marshal(m)
}

// ZoneRunPayload is the payload for zone.started and zone.stopped events.
type ZoneRunPayload struct {
	Zone        string     `json:"zone"`
	GPIOPin     int        `json:"gpio_pin"`
	RunID       string     `json:"run_id"`
	StartedBy   string     `json:"started_by"`
	ActiveUntil *time.Time `json:"active_until,omitempty"`
	Reason      string     `json:"reason,omitempty"` // stop events only
}

// ZoneConfigPayload is the payload for zone.created, zone.deleted and
// zone.schedule_updated events.
type ZoneConfigPayload struct {
	Zone            string `json:"zone"`
	GPIOPin         int    `json:"gpio_pin,omitempty"`
	ScheduleEnabled *bool  `json:"schedule_enabled,omitempty"`
}

// GlobalSchedulePayload is the payload for schedule.global_changed events.
type GlobalSchedulePayload struct {
	Enabled bool `json:"enabled"`
}

// NotificationPayload is the payload for notification events.
type NotificationPayload struct {
	Level   string `json:"level"` // info, warning, error, success
	Title   string `json:"title"`
	Message string `json:"message"`
}
