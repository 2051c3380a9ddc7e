package heatzy

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Agrid-Dev/heatzyswitch/internal/metrics"
	"github.com/Agrid-Dev/heatzyswitch/internal/ports"
)

type observedState struct {
	on    bool
	known bool
}

// Reconciler periodically reads the device and keeps the last known switch
// value, notifying listeners when it changes.
type Reconciler struct {
	remote ModeFetcher
	cfg    SwitchConfig
	log    *zap.SugaredLogger

	mu        sync.RWMutex
	state     observedState
	notifiers []ports.StateNotifier
}

func NewReconciler(remote ModeFetcher, cfg SwitchConfig, log *zap.SugaredLogger) *Reconciler {
	return &Reconciler{remote: remote, cfg: cfg, log: log}
}

func (r *Reconciler) AddNotifier(n ports.StateNotifier) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifiers = append(r.notifiers, n)
}

func (r *Reconciler) Observed() (on bool, known bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state.on, r.state.known
}

// Run ticks once immediately, then every cfg.Interval until ctx is done.
func (r *Reconciler) Run(ctx context.Context) error {
	r.Tick(ctx)

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.Tick(ctx)
		}
	}
}

// Tick performs one fetch-and-compare cycle. A failed fetch leaves the
// observed state as it was.
func (r *Reconciler) Tick(ctx context.Context) {
	mode, err := r.remote.FetchMode(ctx)
	if err != nil {
		// already logged by the remote client; keep the last known value
		return
	}
	on := IsOn(mode, r.cfg)

	r.mu.Lock()
	prev := r.state
	r.state = observedState{on: on, known: true}
	notifiers := append([]ports.StateNotifier(nil), r.notifiers...)
	r.mu.Unlock()

	metrics.SetSwitchOn(on)

	if !prev.known {
		r.log.Debugw("initial switch state", "device_id", r.cfg.DeviceID, "on", on, "mode", mode.String())
		return
	}
	if prev.on == on {
		return
	}

	r.log.Debugw("switch state has changed", "device_id", r.cfg.DeviceID, "from", prev.on, "to", on)
	metrics.StateChanges.Inc()
	for _, n := range notifiers {
		n.NotifyState(on)
	}
}
