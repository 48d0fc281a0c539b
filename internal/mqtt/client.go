// Package mqtt bridges lights to an MQTT broker: commands arrive on
// per-light topics, the state sent to each light is published back, and Home
// Assistant can discover every light.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"hue-toys/internal/config"
	"hue-toys/internal/core"
	"hue-toys/internal/scheduler"
	"hue-toys/internal/server"
)

// Status lists what discovery announces.
type Status interface {
	Lights(ctx context.Context) ([]server.LightInfo, error)
	Patterns() ([]string, error)
}

type Client struct {
	client   mqtt.Client
	cfg      config.MQTTConfig
	commands core.CommandChannel
	eventBus *core.EventBus
	status   Status
	prefix   string

	stopOnce sync.Once
	stop     chan struct{}
}

// NewClient creates a client with automatic reconnects. It returns nil when
// MQTT is disabled.
func NewClient(cfg config.MQTTConfig, commands core.CommandChannel, eb *core.EventBus, status Status) *Client {
	if !cfg.Enabled {
		return nil
	}

	prefix := strings.TrimSuffix(cfg.TopicPrefix, "/")

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	// Several agents may share a broker and a config file.
	opts.SetClientID(cfg.ClientID + "-" + uuid.NewString()[:8])
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)

	opts.SetKeepAlive(10 * time.Second)
	opts.SetPingTimeout(5 * time.Second)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(1 * time.Minute)
	// Keep trying at startup, the broker may come up after the agent.
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetOrderMatters(false)

	opts.SetWill(prefix+"/availability", "offline", 1, true)

	c := &Client{
		cfg:      cfg,
		commands: commands,
		eventBus: eb,
		status:   status,
		prefix:   prefix,
		stop:     make(chan struct{}),
	}

	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		log.Printf("[MQTT] Connection lost: %v. Retrying in background...", err)
	})
	opts.SetReconnectingHandler(func(client mqtt.Client, options *mqtt.ClientOptions) {
		log.Println("[MQTT] Attempting to reconnect...")
	})

	c.client = mqtt.NewClient(opts)
	return c
}

// Connect starts the connection loop and the state publisher.
func (c *Client) Connect() error {
	if c == nil {
		return nil
	}
	log.Printf("[MQTT] Starting connection loop to %s...", c.cfg.Broker)

	if c.eventBus != nil {
		go c.listenEvents()
	}

	token := c.client.Connect()
	if token.Wait() && token.Error() != nil {
		log.Printf("[MQTT] Initial connection error: %v", token.Error())
		return token.Error()
	}
	return nil
}

// Disconnect publishes the offline status and closes the connection.
func (c *Client) Disconnect() {
	if c == nil {
		return
	}
	c.stopOnce.Do(func() { close(c.stop) })

	if !c.client.IsConnected() {
		return
	}
	log.Println("[MQTT] Disconnecting...")

	token := c.client.Publish(c.prefix+"/availability", 0, true, "offline")
	if token.WaitTimeout(2 * time.Second) {
		if token.Error() != nil {
			log.Printf("[MQTT] Warning: failed to publish offline status: %v", token.Error())
		}
	} else {
		log.Println("[MQTT] Warning: timed out publishing offline status")
	}

	c.client.Disconnect(250)
	log.Println("[MQTT] Disconnected.")
}

// Publish sends payload to <prefix>/<subtopic>. Maps and slices are encoded
// as JSON.
func (c *Client) Publish(subtopic string, payload interface{}, retained bool) {
	if c == nil || !c.client.IsConnected() {
		return
	}

	topic := fmt.Sprintf("%s/%s", c.prefix, subtopic)
	var msg []byte
	switch v := payload.(type) {
	case string:
		msg = []byte(v)
	case []byte:
		msg = v
	default:
		data, err := json.Marshal(v)
		if err != nil {
			log.Printf("[MQTT] Cannot encode payload for %s: %v", topic, err)
			return
		}
		msg = data
	}

	token := c.client.Publish(topic, 0, retained, msg)
	go func() {
		if token.WaitTimeout(5 * time.Second) {
			if token.Error() != nil {
				log.Printf("[MQTT] Publish error to %s: %v", topic, token.Error())
			}
		} else {
			log.Printf("[MQTT] Timeout publishing to %s", topic)
		}
	}()
}

func (c *Client) onConnect(client mqtt.Client) {
	log.Println("[MQTT] Connected to broker.")

	topics := map[string]mqtt.MessageHandler{
		"light/+/set":    c.handleLight,
		"light/+/update": c.handleLight,
		"pattern/run":    c.handlePatternRun,
		"pattern/stop":   c.handlePatternStop,
		"command":        c.handleCommand,
	}

	for sub, handler := range topics {
		topic := fmt.Sprintf("%s/%s", c.prefix, sub)
		if token := client.Subscribe(topic, 1, handler); token.Wait() && token.Error() != nil {
			log.Printf("[MQTT] Error subscribing to %s: %v", topic, token.Error())
		} else {
			log.Printf("[MQTT] Subscribed to %s", topic)
		}
	}

	go func() {
		c.Publish("availability", "online", true)
		if c.cfg.HADiscoveryEnabled {
			c.PublishHADiscovery()
		}
	}()
}

func (c *Client) listenEvents() {
	types := []core.EventType{core.LightChangedEvent, core.PatternChangedEvent}
	sub := c.eventBus.Subscribe(types...)
	defer c.eventBus.Unsubscribe(sub, types...)

	for {
		select {
		case <-c.stop:
			return
		case event := <-sub:
			switch payload := event.Payload.(type) {
			case core.LightChanged:
				c.Publish(fmt.Sprintf("light/%d/state", payload.Light), StatePayload(payload.Params), true)
			case core.PatternChanged:
				c.Publish("pattern/state", payload.Running, true)
			}
		}
	}
}

// PublishHADiscovery announces every light to Home Assistant.
func (c *Client) PublishHADiscovery() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	lights, err := c.status.Lights(ctx)
	if err != nil {
		log.Printf("[MQTT] Warning: Could not list lights for HA discovery: %v", err)
	}
	patterns, err := c.status.Patterns()
	if err != nil {
		log.Printf("[MQTT] Warning: Could not get patterns for HA discovery: %v", err)
		patterns = []string{}
	}

	nodeID := safeID(c.cfg.ClientID)
	for _, light := range lights {
		topic := fmt.Sprintf("%s/light/%s/light_%d/config", c.cfg.HADiscoveryPrefix, nodeID, light.ID)
		payload, err := json.Marshal(discoveryConfig(c.prefix, nodeID, light, patterns))
		if err != nil {
			continue
		}
		c.client.Publish(topic, 0, true, payload)
		log.Printf("[MQTT] HA Discovery sent to %s", topic)
	}
}

func discoveryConfig(prefix, nodeID string, light server.LightInfo, patterns []string) map[string]interface{} {
	base := fmt.Sprintf("%s/light/%d", prefix, light.ID)
	name := light.Name
	if name == "" {
		name = fmt.Sprintf("Light %d", light.ID)
	}
	return map[string]interface{}{
		"name":      name,
		"unique_id": fmt.Sprintf("%s_light_%d", nodeID, light.ID),
		"object_id": fmt.Sprintf("%s_%d", nodeID, light.ID),
		"schema":    "json",

		"command_topic": base + "/set",
		"state_topic":   base + "/state",

		"brightness":            true,
		"brightness_scale":      254,
		"supported_color_modes": []string{"color_temp", "hs", "xy"},
		"min_mireds":            core.Limits[core.KeyCT].Min,
		"max_mireds":            core.Limits[core.KeyCT].Max,
		"effect":                true,
		"effect_list":           patterns,

		"availability_topic":    prefix + "/availability",
		"payload_available":     "online",
		"payload_not_available": "offline",

		"device": map[string]interface{}{
			"identifiers":  []string{nodeID},
			"name":         "hue-toys",
			"manufacturer": "hue-toys",
			"model":        "Hue bridge agent",
		},
	}
}

func safeID(id string) string {
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' || r == '-' {
			return r
		}
		if r == ' ' {
			return '_'
		}
		return -1
	}, id)
}

// --- Handlers ---

func (c *Client) handleLight(client mqtt.Client, msg mqtt.Message) {
	light, action, ok := parseLightTopic(c.prefix, msg.Topic())
	if !ok || (action != "set" && action != "update") {
		return
	}
	req, err := ParsePayload(msg.Payload())
	if err != nil {
		log.WithField("topic", msg.Topic()).Warnf("[MQTT] %v", err)
		return
	}

	if req.Effect != "" {
		c.commands <- core.Command{Type: core.CmdRunPattern, Name: req.Effect}
	}
	if len(req.Params) == 0 {
		return
	}
	cmdType := core.CmdSetLight
	if action == "update" {
		cmdType = core.CmdUpdateLight
	}
	c.commands <- core.Command{Type: cmdType, Lights: []int{light}, Params: req.Params}
}

func (c *Client) handlePatternRun(client mqtt.Client, msg mqtt.Message) {
	c.commands <- core.Command{Type: core.CmdRunPattern, Name: strings.TrimSpace(string(msg.Payload()))}
}

func (c *Client) handlePatternStop(client mqtt.Client, msg mqtt.Message) {
	c.commands <- core.Command{Type: core.CmdStopPattern}
}

// handleCommand accepts the scheduler's command lines, e.g. "restore 1,2".
func (c *Client) handleCommand(client mqtt.Client, msg mqtt.Message) {
	cmd, err := scheduler.ParseCommand(string(msg.Payload()))
	if err != nil {
		log.Printf("[MQTT] %v", err)
		return
	}
	c.commands <- cmd
}
