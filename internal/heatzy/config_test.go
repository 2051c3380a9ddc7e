package heatzy

import (
	"testing"
	"time"
)

func TestResolveDefaults(t *testing.T) {
	cfg := Settings{DeviceID: "did42"}.Resolve(NewModeSpec())

	if cfg.Interval != 60*time.Second {
		t.Fatalf("expected 60s interval, got %v", cfg.Interval)
	}
	if cfg.SwitchOn != ModeComfort || cfg.SwitchOff != ModeEco {
		t.Fatalf("expected cft/eco, got %v/%v", cfg.SwitchOn, cfg.SwitchOff)
	}
	if cfg.Trace {
		t.Fatal("trace defaults to false")
	}
}

func TestResolveBogusSwitchOnDefaultsToComfort(t *testing.T) {
	cfg := Settings{SwitchOn: "bogus", SwitchOff: "off", IntervalSeconds: 30}.Resolve(NewModeSpec())

	if cfg.SwitchOn != ModeComfort {
		t.Fatalf("expected switchOn corrected to cft, got %v", cfg.SwitchOn)
	}
	if cfg.SwitchOff != ModeOff {
		t.Fatalf("expected switchOff off, got %v", cfg.SwitchOff)
	}
	if cfg.Interval != 30*time.Second {
		t.Fatalf("expected 30s, got %v", cfg.Interval)
	}
}

func TestModeFor(t *testing.T) {
	cfg := SwitchConfig{SwitchOn: ModeComfort, SwitchOff: ModeFrostProtect}
	if cfg.ModeFor(true) != ModeComfort || cfg.ModeFor(false) != ModeFrostProtect {
		t.Fatal("ModeFor does not follow configuration")
	}
}
