package heatzy

import "time"

const (
	DefaultInterval  = 60 * time.Second
	DefaultSwitchOn  = ModeComfort
	DefaultSwitchOff = ModeEco
)

// Settings are the host-level values as configured, before validation.
type Settings struct {
	DeviceID string
	Name     string
	Username string
	Password string
	Serial   string

	IntervalSeconds int
	Trace           bool

	SwitchOn  string
	SwitchOff string
}

// SwitchConfig is the resolved per-device configuration of the adapter.
type SwitchConfig struct {
	DeviceID string
	Name     string
	Username string
	Password string
	Serial   string

	Interval time.Duration
	Trace    bool

	SwitchOn  Mode
	SwitchOff Mode
}

// Resolve applies defaults. Unrecognized on/off identifiers silently fall
// back to comfort/eco and a non-positive interval to one minute.
func (s Settings) Resolve(spec *ModeSpec) SwitchConfig {
	interval := time.Duration(s.IntervalSeconds) * time.Second
	if interval <= 0 {
		interval = DefaultInterval
	}
	return SwitchConfig{
		DeviceID:  s.DeviceID,
		Name:      s.Name,
		Username:  s.Username,
		Password:  s.Password,
		Serial:    s.Serial,
		Interval:  interval,
		Trace:     s.Trace,
		SwitchOn:  spec.ParseOr(s.SwitchOn, DefaultSwitchOn),
		SwitchOff: spec.ParseOr(s.SwitchOff, DefaultSwitchOff),
	}
}

// ModeFor resolves a switch value to the configured mode.
func (c SwitchConfig) ModeFor(on bool) Mode {
	if on {
		return c.SwitchOn
	}
	return c.SwitchOff
}
