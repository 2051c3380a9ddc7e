package heatzy

import (
	"context"

	"go.uber.org/zap"

	"github.com/Agrid-Dev/heatzyswitch/internal/device"
)

// Switch is the host-facing adapter. It implements ports.SwitchService.
type Switch struct {
	fetcher ModeFetcher
	pusher  ModePusher
	rec     *Reconciler
	cfg     SwitchConfig
	info    device.Info
	log     *zap.SugaredLogger
}

type remote interface {
	ModeFetcher
	ModePusher
}

func NewSwitch(r remote, rec *Reconciler, cfg SwitchConfig, log *zap.SugaredLogger) *Switch {
	return &Switch{
		fetcher: r,
		pusher:  r,
		rec:     rec,
		cfg:     cfg,
		info:    device.New(cfg.DeviceID, cfg.Name, cfg.Serial),
		log:     log,
	}
}

// Read always asks the remote device; it does not fall back to the cached
// value and does not update it.
func (s *Switch) Read(ctx context.Context) (bool, error) {
	mode, err := s.fetcher.FetchMode(ctx)
	if err != nil {
		s.log.Warnw("state unavailable", "device_id", s.cfg.DeviceID, "err", err)
		return false, err
	}
	on := IsOn(mode, s.cfg)
	s.log.Debugw("host asked for state", "device_id", s.cfg.DeviceID, "on", on)
	return on, nil
}

// Write pushes the requested value and echoes it back on success. The device
// is not re-read; the next reconciliation tick reports the real state.
func (s *Switch) Write(ctx context.Context, on bool) (bool, error) {
	if err := s.pusher.PushMode(ctx, on); err != nil {
		s.log.Warnw("cannot change state", "device_id", s.cfg.DeviceID, "err", err)
		return false, err
	}
	s.log.Debugw("host changed state", "device_id", s.cfg.DeviceID, "on", on)
	return on, nil
}

func (s *Switch) Cached() (bool, bool) { return s.rec.Observed() }

func (s *Switch) Refresh(ctx context.Context) { s.rec.Tick(ctx) }

func (s *Switch) Info() device.Info { return s.info }
