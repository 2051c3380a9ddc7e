package ports

import (
	"context"

	"github.com/Agrid-Dev/heatzyswitch/internal/device"
)

// SwitchService is the host-facing port used by controllers (HTTP/MQTT/Modbus/NATS).
type SwitchService interface {
	// Read fetches the current state from the remote device.
	Read(ctx context.Context) (bool, error)
	// Write requests a new state and echoes it on success. The remote is not re-read.
	Write(ctx context.Context, on bool) (bool, error)
	// Cached returns the last reconciled state; known is false until the first successful read.
	Cached() (on bool, known bool)
	// Refresh runs one reconciliation pass immediately.
	Refresh(ctx context.Context)
	Info() device.Info
}

// StateNotifier receives unsolicited state changes found by reconciliation.
type StateNotifier interface {
	NotifyState(on bool)
}
