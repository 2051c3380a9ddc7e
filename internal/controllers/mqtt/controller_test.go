package mqttctrl

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Agrid-Dev/heatzyswitch/internal/ports"
	"github.com/Agrid-Dev/heatzyswitch/internal/testutil"
)

var _ ports.StateNotifier = (*Controller)(nil)

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 0 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 0 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

type fakeToken struct {
	err  error
	done chan struct{}
}

func (t fakeToken) Done() <-chan struct{} {
	if t.done == nil {
		t.done = make(chan struct{})
		close(t.done)
	}
	return t.done
}

func (t fakeToken) Wait() bool                       { return true }
func (t fakeToken) WaitTimeout(_ time.Duration) bool { return true }
func (t fakeToken) Error() error                     { return t.err }

type publishCall struct {
	topic   string
	qos     byte
	retain  bool
	payload []byte
}

type fakeClient struct {
	connected  bool
	publishes  []publishCall
	subscribed []string
}

func (c *fakeClient) IsConnected() bool      { return c.connected }
func (c *fakeClient) IsConnectionOpen() bool { return c.connected }
func (c *fakeClient) Connect() mqtt.Token    { return fakeToken{} }
func (c *fakeClient) Disconnect(_ uint)      {}
func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	var b []byte
	switch v := payload.(type) {
	case []byte:
		b = append([]byte(nil), v...)
	case string:
		b = []byte(v)
	default:
		tmp, _ := json.Marshal(v)
		b = tmp
	}
	c.publishes = append(c.publishes, publishCall{
		topic: topic, qos: qos, retain: retained, payload: b,
	})
	return fakeToken{}
}
func (c *fakeClient) Subscribe(topic string, _ byte, _ mqtt.MessageHandler) mqtt.Token {
	c.subscribed = append(c.subscribed, topic)
	return fakeToken{}
}
func (c *fakeClient) SubscribeMultiple(_ map[string]byte, _ mqtt.MessageHandler) mqtt.Token {
	return fakeToken{}
}
func (c *fakeClient) Unsubscribe(_ ...string) mqtt.Token       { return fakeToken{} }
func (c *fakeClient) AddRoute(_ string, _ mqtt.MessageHandler) {}
func (c *fakeClient) OptionsReader() mqtt.ClientOptionsReader  { return mqtt.ClientOptionsReader{} }

// ---- tests ----

func newTestController(t *testing.T, cfg Config) (*Controller, *testutil.FakeSwitchService) {
	t.Helper()
	svc := testutil.NewFakeSwitchService()
	if cfg.DeviceID == "" {
		cfg.DeviceID = "did42"
	}
	c, err := New(svc, cfg, zap.NewNop().Sugar())
	if err != nil {
		t.Fatal(err)
	}
	return c, svc
}

func TestNewDefaults(t *testing.T) {
	c, _ := newTestController(t, Config{})

	if c.cfg.BrokerURL != "tcp://localhost:1883" {
		t.Fatalf("expected default BrokerURL, got %q", c.cfg.BrokerURL)
	}
	if c.cfg.BaseTopic != "heatzy/did42" {
		t.Fatalf("expected default BaseTopic, got %q", c.cfg.BaseTopic)
	}
	if c.cfg.ClientID != "heatzyswitch-did42" {
		t.Fatalf("expected default ClientID, got %q", c.cfg.ClientID)
	}
	if c.cfg.CommandTimeout != 15*time.Second {
		t.Fatalf("expected default CommandTimeout, got %v", c.cfg.CommandTimeout)
	}
}

func TestNewValidation(t *testing.T) {
	svc := testutil.NewFakeSwitchService()
	log := zap.NewNop().Sugar()

	if _, err := New(svc, Config{}, log); err == nil {
		t.Fatal("expected error when DeviceID missing")
	}
	if _, err := New(svc, Config{DeviceID: "x", QoS: 2}, log); err == nil {
		t.Fatal("expected error when QoS > 1")
	}
}

func TestTopicJoin(t *testing.T) {
	c, _ := newTestController(t, Config{BaseTopic: "heatzy/did42/"})
	if got := c.topic("state"); got != "heatzy/did42/state" {
		t.Fatalf("expected topic without double slashes, got %q", got)
	}
}

func TestDecodeValueStrict(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		v, err := decodeValueStrict[bool]([]byte(`{"value": true}`))
		if err != nil {
			t.Fatal(err)
		}
		if !v {
			t.Fatal("expected true")
		}
	})

	t.Run("missing value", func(t *testing.T) {
		if _, err := decodeValueStrict[bool]([]byte(`{}`)); err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("unknown field rejected", func(t *testing.T) {
		if _, err := decodeValueStrict[bool]([]byte(`{"value":true,"extra":1}`)); err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("wrong type", func(t *testing.T) {
		if _, err := decodeValueStrict[bool]([]byte(`{"value":"on"}`)); err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("invalid json", func(t *testing.T) {
		if _, err := decodeValueStrict[bool]([]byte(`{"value":`)); err == nil {
			t.Fatal("expected error")
		}
	})
}

func TestOnMessage_IgnoresOtherTopics(t *testing.T) {
	c, svc := newTestController(t, Config{})

	c.onMessage(nil, fakeMessage{
		topic:   "otherprefix/set/on",
		payload: []byte(`{"value":true}`),
	})
	c.onMessage(nil, fakeMessage{
		topic:   "heatzy/did42/set/mode",
		payload: []byte(`{"value":true}`),
	})

	if called, _ := svc.Written(); called {
		t.Fatal("expected Write not called")
	}
}

func TestOnMessage_SetOn(t *testing.T) {
	c, svc := newTestController(t, Config{})

	c.onMessage(nil, fakeMessage{
		topic:   "heatzy/did42/set/on",
		payload: []byte(`{"value":false}`),
	})

	if called, arg := svc.Written(); !called || arg != false {
		t.Fatalf("expected Write(false), got called=%v arg=%v", called, arg)
	}
}

func TestOnMessage_InvalidPayload_DoesNotCallService(t *testing.T) {
	c, svc := newTestController(t, Config{})

	c.onMessage(nil, fakeMessage{
		topic:   "heatzy/did42/set/on",
		payload: []byte(`{"value":"yes"}`),
	})

	if called, _ := svc.Written(); called {
		t.Fatal("expected Write not called")
	}
}

func TestOnMessage_ServiceError_IsIgnored(t *testing.T) {
	c, svc := newTestController(t, Config{})
	svc.WriteErr = errors.New("boom")

	c.onMessage(nil, fakeMessage{
		topic:   "heatzy/did42/set/on",
		payload: []byte(`{"value":true}`),
	})

	if called, _ := svc.Written(); !called {
		t.Fatal("expected Write called")
	}
}

func TestNotifyState_PublishesEvent(t *testing.T) {
	c, _ := newTestController(t, Config{QoS: 1})
	fc := &fakeClient{connected: true}
	c.client = fc

	c.NotifyState(true)

	if len(fc.publishes) != 1 {
		t.Fatalf("expected 1 publish, got %d", len(fc.publishes))
	}
	p := fc.publishes[0]
	if p.topic != "heatzy/did42/state" {
		t.Fatalf("expected state topic, got %q", p.topic)
	}
	if p.qos != 1 || p.retain {
		t.Fatalf("expected qos=1 retain=false, got qos=%d retain=%v", p.qos, p.retain)
	}

	var got stateEventDTO
	if err := json.Unmarshal(p.payload, &got); err != nil {
		t.Fatalf("invalid published json: %v payload=%s", err, string(p.payload))
	}
	if !got.Value {
		t.Fatal("expected value=true")
	}
	if _, err := uuid.Parse(got.EventID); err != nil {
		t.Fatalf("expected uuid event_id, got %q", got.EventID)
	}
	if got.At.IsZero() {
		t.Fatal("expected timestamp")
	}
}

func TestNotifyState_DroppedWhenDisconnected(t *testing.T) {
	c, _ := newTestController(t, Config{})

	c.NotifyState(true)

	fc := &fakeClient{}
	c.client = fc
	c.NotifyState(false)

	if len(fc.publishes) != 0 {
		t.Fatalf("expected no publish while disconnected, got %d", len(fc.publishes))
	}
}

func TestPublishInfo_Retained(t *testing.T) {
	c, _ := newTestController(t, Config{})
	fc := &fakeClient{connected: true}

	c.publishInfo(fc)

	if len(fc.publishes) != 1 {
		t.Fatalf("expected 1 publish, got %d", len(fc.publishes))
	}
	p := fc.publishes[0]
	if p.topic != "heatzy/did42/info" || !p.retain {
		t.Fatalf("expected retained info publish, got topic=%q retain=%v", p.topic, p.retain)
	}
	var got map[string]any
	if err := json.Unmarshal(p.payload, &got); err != nil {
		t.Fatal(err)
	}
	if got["device_id"] != "did42" || got["model"] != "Heatzy Pilote V2" {
		t.Fatalf("unexpected info payload %v", got)
	}
}

func TestRun_ReturnsOnCancelWhileBrokerUnreachable(t *testing.T) {
	c, _ := newTestController(t, Config{BrokerURL: "tcp://127.0.0.1:1"})

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	time.Sleep(500 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel while broker unreachable")
	}
}
