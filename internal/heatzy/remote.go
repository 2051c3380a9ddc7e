package heatzy

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Agrid-Dev/heatzyswitch/internal/gizwits"
	"github.com/Agrid-Dev/heatzyswitch/internal/metrics"
)

// DeviceAPI is the subset of *gizwits.Client used for device calls.
type DeviceAPI interface {
	LatestMode(ctx context.Context, token, did string) (string, error)
	SetMode(ctx context.Context, token, did string, wire int) error
}

// TokenSource hands out a token valid at the time of the call.
type TokenSource interface {
	EnsureValidToken(ctx context.Context) (string, error)
	Invalidate()
}

// ModeFetcher reads the device mode.
type ModeFetcher interface {
	FetchMode(ctx context.Context) (Mode, error)
}

// ModePusher writes the mode matching a switch value.
type ModePusher interface {
	PushMode(ctx context.Context, on bool) error
}

type RemoteDeviceClient struct {
	api    DeviceAPI
	tokens TokenSource
	spec   *ModeSpec
	cfg    SwitchConfig
	log    *zap.SugaredLogger
}

func NewRemoteDeviceClient(api DeviceAPI, tokens TokenSource, spec *ModeSpec, cfg SwitchConfig, log *zap.SugaredLogger) *RemoteDeviceClient {
	return &RemoteDeviceClient{api: api, tokens: tokens, spec: spec, cfg: cfg, log: log}
}

// FetchMode returns the device's current mode. Every failure, including an
// unrecognized mode value, wraps ErrRead.
func (r *RemoteDeviceClient) FetchMode(ctx context.Context) (mode Mode, err error) {
	defer func() { metrics.RemoteRequests.WithLabelValues(metrics.OpRead, metrics.Result(err)).Inc() }()

	token, err := r.tokens.EnsureValidToken(ctx)
	if err != nil {
		return ModeUnknown, fmt.Errorf("%w: %w", ErrRead, err)
	}

	raw, err := r.api.LatestMode(ctx, token, r.cfg.DeviceID)
	if err != nil {
		r.logFailure("error when getting state", err)
		return ModeUnknown, fmt.Errorf("%w: %w", ErrRead, err)
	}

	mode, err = r.spec.Decode(raw)
	if err != nil {
		r.log.Errorw("device reported an unknown mode", "device_id", r.cfg.DeviceID, "mode", raw)
		return ModeUnknown, fmt.Errorf("%w: %w", ErrRead, err)
	}
	return mode, nil
}

// PushMode writes the configured on- or off-mode. Success only means the
// cloud accepted the request; the device is not re-read.
func (r *RemoteDeviceClient) PushMode(ctx context.Context, on bool) (err error) {
	defer func() { metrics.RemoteRequests.WithLabelValues(metrics.OpWrite, metrics.Result(err)).Inc() }()

	mode := r.cfg.ModeFor(on)
	wire, err := r.spec.Encode(mode)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}

	token, err := r.tokens.EnsureValidToken(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}

	if err := r.api.SetMode(ctx, token, r.cfg.DeviceID, wire); err != nil {
		r.logFailure("error when setting state", err)
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	r.log.Debugw("mode pushed", "device_id", r.cfg.DeviceID, "mode", mode.String(), "wire", wire)
	return nil
}

func (r *RemoteDeviceClient) logFailure(msg string, err error) {
	var se *gizwits.StatusError
	if errors.As(err, &se) {
		r.log.Errorw(msg, "device_id", r.cfg.DeviceID, "status", se.Status, "code", se.Code, "message", se.Message)
	} else {
		r.log.Errorw(msg, "device_id", r.cfg.DeviceID, "err", err)
	}
	if gizwits.IsAuthFailure(err) {
		r.tokens.Invalidate()
	}
}
