// Package mqtt publishes zone state to an MQTT broker so home-automation
// systems can follow what the controller is doing. Publishing is
// best-effort: a broker outage never affects watering.
package mqtt

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/sprinkler-controller/backend/internal/config"
	"github.com/sprinkler-controller/backend/internal/storage/models"
)

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
)

// Publisher sends retained zone state messages. It satisfies the engine's
// run-listener interface.
type Publisher struct {
	client pahomqtt.Client
	prefix string
}

// zoneStateMessage is the retained payload on <prefix>/zone/<name>/state.
type zoneStateMessage struct {
	Zone        string     `json:"zone"`
	GPIOPin     int        `json:"gpio_pin"`
	Active      bool       `json:"active"`
	RunID       string     `json:"run_id,omitempty"`
	StartedBy   string     `json:"started_by,omitempty"`
	ActiveUntil *time.Time `json:"active_until,omitempty"`
	Reason      string     `json:"reason,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Connect establishes the broker connection and announces the controller
// online. A will message marks the controller offline if the connection
// drops uncleanly.
func Connect(cfg config.MQTTConfig) (*Publisher, error) {
	statusTopic := cfg.TopicPrefix + "/system/status"

	opts := pahomqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetWill(statusTopic, `{"online":false}`, 1, true)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	client := pahomqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("mqtt connect: timeout after %v", connectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect: %w", err)
	}

	p := &Publisher{client: client, prefix: cfg.TopicPrefix}
	p.publish(statusTopic, []byte(`{"online":true}`), true)
	log.Printf("MQTT publisher connected to %s", cfg.Broker)
	return p, nil
}

// ZoneStarted publishes the zone's running state.
func (p *Publisher) ZoneStarted(z models.Zone) {
	p.publishZoneState(z, "")
}

// ZoneStopped publishes the zone's idle state.
func (p *Publisher) ZoneStopped(z models.Zone, reason string) {
	z.Active = false
	z.ActiveUntil = nil
	p.publishZoneState(z, reason)
}

func (p *Publisher) publishZoneState(z models.Zone, reason string) {
	msg := zoneStateMessage{
		Zone:        z.Name,
		GPIOPin:     z.GPIOPin,
		Active:      z.Active,
		RunID:       z.RunID,
		StartedBy:   string(z.StartedBy),
		ActiveUntil: z.ActiveUntil,
		Reason:      reason,
		UpdatedAt:   time.Now().UTC(),
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Failed to encode MQTT state for zone '%s': %v", z.Name, err)
		return
	}

	p.publish(p.prefix+"/zone/"+z.Name+"/state", payload, true)
}

// publish sends one message at QoS 1 and returns without waiting for the
// broker. The run-listener path must not block, so delivery outcome is
// logged from a goroutine. Failures are never returned; state topics are
// retained so a reconnected broker catches up on the next transition.
func (p *Publisher) publish(topic string, payload []byte, retained bool) {
	token := p.client.Publish(topic, 1, retained, payload)
	go logDelivery(topic, token)
}

func logDelivery(topic string, token pahomqtt.Token) {
	if !token.WaitTimeout(publishTimeout) {
		log.Printf("MQTT publish to %s timed out", topic)
		return
	}
	if err := token.Error(); err != nil {
		log.Printf("MQTT publish to %s failed: %v", topic, err)
	}
}

// Close announces the controller offline and disconnects. The offline
// message is waited for so it lands before the clean disconnect.
func (p *Publisher) Close() {
	token := p.client.Publish(p.prefix+"/system/status", 1, true, []byte(`{"online":false}`))
	token.WaitTimeout(publishTimeout)
	p.client.Disconnect(250)
}
