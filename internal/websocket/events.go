package websocket

import (
	"log"

	"github.com/sprinkler-controller/backend/internal/storage/models"
)

// EventBroadcaster turns zone lifecycle events into WebSocket messages.
// It satisfies the engine's run-listener interface.
type EventBroadcaster struct {
	hub *Hub
}

// NewEventBroadcaster creates a broadcaster over the hub.
func NewEventBroadcaster(hub *Hub) *EventBroadcaster {
	return &EventBroadcaster{hub: hub}
}

// ZoneStarted sends a zone.started event.
func (b *EventBroadcaster) ZoneStarted(z models.Zone) {
	b.broadcast(NewMessage(TypeZoneStarted, ZoneRunPayload{
		Zone:        z.Name,
		GPIOPin:     z.GPIOPin,
		RunID:       z.RunID,
		StartedBy:   string(z.StartedBy),
		ActiveUntil: z.ActiveUntil,
	}))
}

// ZoneStopped sends a zone.stopped event.
func (b *EventBroadcaster) ZoneStopped(z models.Zone, reason string) {
	b.broadcast(NewMessage(TypeZoneStopped, ZoneRunPayload{
		Zone:      z.Name,
		GPIOPin:   z.GPIOPin,
		RunID:     z.RunID,
		StartedBy: string(z.StartedBy),
		Reason:    reason,
	}))
}

// ZoneCreated sends a zone.created event.
func (b *EventBroadcaster) ZoneCreated(z models.Zone) {
	b.broadcast(NewMessage(TypeZoneCreated, ZoneConfigPayload{
		Zone:    z.Name,
		GPIOPin: z.GPIOPin,
	}))
}

// ZoneDeleted sends a zone.deleted event.
func (b *EventBroadcaster) ZoneDeleted(name string) {
	b.broadcast(NewMessage(TypeZoneDeleted, ZoneConfigPayload{Zone: name}))
}

// ZoneScheduleUpdated sends a zone.schedule_updated event.
func (b *EventBroadcaster) ZoneScheduleUpdated(z models.Zone) {
	enabled := z.Schedule.Enabled
	b.broadcast(NewMessage(TypeZoneScheduleUpdated, ZoneConfigPayload{
		Zone:            z.Name,
		GPIOPin:         z.GPIOPin,
		ScheduleEnabled: &enabled,
	}))
}

// GlobalScheduleChanged sends a schedule.global_changed event.
func (b *EventBroadcaster) GlobalScheduleChanged(enabled bool) {
	b.broadcast(NewMessage(TypeGlobalScheduleChanged, GlobalSchedulePayload{Enabled: enabled}))
}

// Notify sends a notification to all connected clients.
func (b *EventBroadcaster) Notify(level, title, message string) {
	b.broadcast(NewMessage(TypeNotification, NotificationPayload{
		Level:   level,
		Title:   title,
		Message: message,
	}))
}

func (b *EventBroadcaster) broadcast(msg Message) {
	data, err := msg.JSON()
	if err != nil {
		log.Printf("Error encoding WebSocket message: %v", err)
		return
	}
	b.hub.Broadcast(data)
}
