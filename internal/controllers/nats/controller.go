package natsctrl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	nats "github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/Agrid-Dev/heatzyswitch/internal/ports"
)

type Config struct {
	DeviceID string
	URL      string

	// Subject prefix; state goes to <Subject>.state, commands arrive on <Subject>.set.
	Subject string

	CommandTimeout time.Duration
}

// publisher is the subset of *nats.Conn used after subscription.
type publisher interface {
	Publish(subj string, data []byte) error
}

type Controller struct {
	svc ports.SwitchService
	cfg Config
	log *zap.SugaredLogger

	mu  sync.RWMutex
	pub publisher
	ctx context.Context
}

func New(svc ports.SwitchService, cfg Config, log *zap.SugaredLogger) (*Controller, error) {
	if cfg.DeviceID == "" {
		return nil, errors.New("nats: DeviceID is required")
	}
	if cfg.URL == "" {
		cfg.URL = nats.DefaultURL
	}
	if cfg.Subject == "" {
		cfg.Subject = "heatzy." + cfg.DeviceID
	}
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = 15 * time.Second
	}
	return &Controller{svc: svc, cfg: cfg, log: log, ctx: context.Background()}, nil
}

func (c *Controller) Run(ctx context.Context) error {
	nc, err := nats.Connect(c.cfg.URL,
		nats.Name("heatzyswitch-"+c.cfg.DeviceID),
		nats.MaxReconnects(-1),
		nats.RetryOnFailedConnect(true),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			c.log.Warnw("nats disconnected", "err", err)
		}),
	)
	if err != nil {
		return fmt.Errorf("nats connect: %w", err)
	}
	defer nc.Close()

	c.mu.Lock()
	c.pub = nc
	c.ctx = ctx
	c.mu.Unlock()

	sub, err := nc.Subscribe(c.subject("set"), c.handleSet)
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}
	c.log.Infow("nats controller connected", "url", c.cfg.URL, "subject", c.cfg.Subject)

	<-ctx.Done()
	_ = sub.Unsubscribe()
	return ctx.Err()
}

// NotifyState publishes a state-change event on <Subject>.state.
func (c *Controller) NotifyState(on bool) {
	c.mu.RLock()
	pub := c.pub
	c.mu.RUnlock()
	if pub == nil {
		return
	}

	b, _ := json.Marshal(stateEventDTO{
		EventID: uuid.NewString(),
		Value:   on,
		At:      time.Now().UTC(),
	})
	if err := pub.Publish(c.subject("state"), b); err != nil {
		c.log.Warnw("nats publish state failed", "err", err)
	}
}

type stateEventDTO struct {
	EventID string    `json:"event_id"`
	Value   bool      `json:"value"`
	At      time.Time `json:"at"`
}

type replyDTO struct {
	Value *bool  `json:"value,omitempty"`
	Error string `json:"error,omitempty"`
}

func (c *Controller) handleSet(msg *nats.Msg) {
	var req struct {
		Value *bool `json:"value"`
	}
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		c.reply(msg, replyDTO{Error: "invalid json"})
		return
	}
	if req.Value == nil {
		c.reply(msg, replyDTO{Error: "missing field 'value'"})
		return
	}

	c.mu.RLock()
	parent := c.ctx
	c.mu.RUnlock()
	ctx, cancel := context.WithTimeout(parent, c.cfg.CommandTimeout)
	defer cancel()

	on, err := c.svc.Write(ctx, *req.Value)
	if err != nil {
		c.log.Errorw("nats set failed", "value", *req.Value, "err", err)
		c.reply(msg, replyDTO{Error: err.Error()})
		return
	}
	c.reply(msg, replyDTO{Value: &on})
}

func (c *Controller) reply(msg *nats.Msg, r replyDTO) {
	if msg.Reply == "" {
		return
	}
	c.mu.RLock()
	pub := c.pub
	c.mu.RUnlock()
	if pub == nil {
		return
	}
	b, _ := json.Marshal(r)
	if err := pub.Publish(msg.Reply, b); err != nil {
		c.log.Warnw("nats reply failed", "err", err)
	}
}

func (c *Controller) subject(suffix string) string {
	return strings.TrimRight(c.cfg.Subject, ".") + "." + suffix
}
