package mqttctrl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Agrid-Dev/heatzyswitch/internal/ports"
)

type Config struct {
	// Identity
	DeviceID string

	// MQTT connection
	BrokerURL string
	ClientID  string

	// Topics
	BaseTopic string

	// Behavior
	QoS            byte
	CommandTimeout time.Duration

	Username string
	Password string
}

type Controller struct {
	svc ports.SwitchService
	cfg Config
	log *zap.SugaredLogger

	mu     sync.RWMutex
	client mqtt.Client
	ctx    context.Context
}

func New(svc ports.SwitchService, cfg Config, log *zap.SugaredLogger) (*Controller, error) {
	// ---- defaults ----

	if cfg.BrokerURL == "" {
		cfg.BrokerURL = "tcp://localhost:1883"
	}

	if cfg.DeviceID == "" {
		return nil, errors.New("mqtt: DeviceID is required")
	}
	if cfg.BaseTopic == "" {
		cfg.BaseTopic = "heatzy/" + cfg.DeviceID
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "heatzyswitch-" + cfg.DeviceID
	}
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = 15 * time.Second
	}
	if cfg.QoS > 1 {
		return nil, errors.New("mqtt: QoS must be 0 or 1")
	}
	return &Controller{
		svc: svc,
		cfg: cfg,
		log: log,
		ctx: context.Background(),
	}, nil
}

func (c *Controller) Run(ctx context.Context) error {
	opts := mqtt.NewClientOptions().
		AddBroker(c.cfg.BrokerURL).
		SetClientID(c.cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(2 * time.Second)

	if c.cfg.Username != "" {
		opts.SetUsername(c.cfg.Username)
		opts.SetPassword(c.cfg.Password)
	}

	// Subscribe and announce when connected/reconnected.
	opts.OnConnect = func(cl mqtt.Client) {
		topic := c.topic("set/on")
		token := cl.Subscribe(topic, c.cfg.QoS, c.onMessage)
		token.Wait()
		if err := token.Error(); err != nil {
			c.log.Errorw("mqtt subscribe failed", "topic", topic, "err", err)
		}
		c.publishInfo(cl)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		c.log.Warnw("mqtt connection lost", "err", err)
	}

	cl := mqtt.NewClient(opts)
	c.mu.Lock()
	c.client = cl
	c.ctx = ctx
	c.mu.Unlock()

	// With connect retry on, the token only completes once a broker answers.
	tok := cl.Connect()
	select {
	case <-tok.Done():
		if err := tok.Error(); err != nil {
			return fmt.Errorf("mqtt connect: %w", err)
		}
	case <-ctx.Done():
		cl.Disconnect(250)
		return ctx.Err()
	}
	c.log.Infow("mqtt controller connected", "broker", c.cfg.BrokerURL, "base_topic", c.cfg.BaseTopic)

	<-ctx.Done()
	cl.Disconnect(250)
	return ctx.Err()
}

// NotifyState publishes a state-change event. Events raised while
// disconnected are dropped.
func (c *Controller) NotifyState(on bool) {
	c.mu.RLock()
	cl := c.client
	c.mu.RUnlock()
	if cl == nil || !cl.IsConnected() {
		c.log.Debugw("mqtt state event dropped, not connected", "value", on)
		return
	}

	b, _ := json.Marshal(stateEventDTO{
		EventID: uuid.NewString(),
		Value:   on,
		At:      time.Now().UTC(),
	})
	cl.Publish(c.topic("state"), c.cfg.QoS, false, b)
}

func (c *Controller) publishInfo(cl mqtt.Client) {
	b, _ := json.Marshal(c.svc.Info())
	cl.Publish(c.topic("info"), c.cfg.QoS, true, b)
}

type stateEventDTO struct {
	EventID string    `json:"event_id"`
	Value   bool      `json:"value"`
	At      time.Time `json:"at"`
}

// Command payload format: {"value": ...}
type valueReq[T any] struct {
	Value *T `json:"value"`
}

func (c *Controller) onMessage(_ mqtt.Client, msg mqtt.Message) {
	if msg.Topic() != c.topic("set/on") {
		return
	}

	v, err := decodeValueStrict[bool](msg.Payload())
	if err != nil {
		c.log.Warnw("mqtt invalid command", "topic", msg.Topic(), "err", err)
		return
	}

	c.mu.RLock()
	parent := c.ctx
	c.mu.RUnlock()
	ctx, cancel := context.WithTimeout(parent, c.cfg.CommandTimeout)
	defer cancel()

	if _, err := c.svc.Write(ctx, v); err != nil {
		c.log.Errorw("mqtt set on failed", "value", v, "err", err)
	}
}

func (c *Controller) topic(suffix string) string {
	return strings.TrimRight(c.cfg.BaseTopic, "/") + "/" + suffix
}

func decodeValueStrict[T any](b []byte) (T, error) {
	var zero T
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	var req valueReq[T]
	if err := dec.Decode(&req); err != nil {
		return zero, err
	}
	if req.Value == nil {
		return zero, errors.New("missing field 'value'")
	}
	return *req.Value, nil
}
