package heatzy

import "fmt"

// Mode is an integer enum of the pilot-wire modes.
type Mode int

const (
	ModeUnknown Mode = iota
	ModeComfort
	ModeEco
	ModeFrostProtect
	ModeOff
)

var allModes = [...]Mode{ModeComfort, ModeEco, ModeFrostProtect, ModeOff}

func (m Mode) Valid() bool {
	return m == ModeComfort || m == ModeEco || m == ModeFrostProtect || m == ModeOff
}

// String returns the canonical identifier.
func (m Mode) String() string {
	switch m {
	case ModeComfort:
		return "cft"
	case ModeEco:
		return "eco"
	case ModeFrostProtect:
		return "fro"
	case ModeOff:
		return "off"
	default:
		return "unknown"
	}
}

type modeEntry struct {
	mode  Mode
	id    string
	wire  int
	label string
}

// ModeSpec holds the three encodings of every mode. Build it once with
// NewModeSpec and share the pointer; it is never mutated afterwards.
type ModeSpec struct {
	entries []modeEntry
	byText  map[string]Mode
	byWire  map[int]Mode
}

func NewModeSpec() *ModeSpec {
	entries := []modeEntry{
		{mode: ModeComfort, id: "cft", wire: 0, label: "舒适"},
		{mode: ModeEco, id: "eco", wire: 1, label: "经济"},
		{mode: ModeFrostProtect, id: "fro", wire: 2, label: "解冻"},
		{mode: ModeOff, id: "off", wire: 3, label: "停止"},
	}

	s := &ModeSpec{
		entries: entries,
		byText:  make(map[string]Mode, 2*len(entries)),
		byWire:  make(map[int]Mode, len(entries)),
	}
	for _, e := range entries {
		if e.id != e.mode.String() {
			panic(fmt.Sprintf("heatzy: mode table id %q does not match %v", e.id, e.mode))
		}
		for _, key := range []string{e.id, e.label} {
			if _, dup := s.byText[key]; dup {
				panic(fmt.Sprintf("heatzy: duplicate mode text %q", key))
			}
			s.byText[key] = e.mode
		}
		if _, dup := s.byWire[e.wire]; dup {
			panic(fmt.Sprintf("heatzy: duplicate wire value %d", e.wire))
		}
		s.byWire[e.wire] = e.mode
	}
	return s
}

func (s *ModeSpec) entry(m Mode) (modeEntry, bool) {
	for _, e := range s.entries {
		if e.mode == m {
			return e, true
		}
	}
	return modeEntry{}, false
}

// Decode accepts a canonical identifier or a secondary label, as found in
// read responses.
func (s *ModeSpec) Decode(v string) (Mode, error) {
	if m, ok := s.byText[v]; ok {
		return m, nil
	}
	return ModeUnknown, fmt.Errorf("%w: %q", ErrUnknownMode, v)
}

// Encode returns the numeric value used when writing a mode.
func (s *ModeSpec) Encode(m Mode) (int, error) {
	e, ok := s.entry(m)
	if !ok {
		return 0, fmt.Errorf("%w: %v", ErrUnknownMode, m)
	}
	return e.wire, nil
}

// FromWire is the inverse of Encode.
func (s *ModeSpec) FromWire(n int) (Mode, error) {
	if m, ok := s.byWire[n]; ok {
		return m, nil
	}
	return ModeUnknown, fmt.Errorf("%w: wire value %d", ErrUnknownMode, n)
}

// Label returns the secondary label, or "" for an unknown mode.
func (s *ModeSpec) Label(m Mode) string {
	e, _ := s.entry(m)
	return e.label
}

// Parse accepts canonical identifiers only, as used in configuration.
func (s *ModeSpec) Parse(id string) (Mode, error) {
	for _, e := range s.entries {
		if e.id == id {
			return e.mode, nil
		}
	}
	return ModeUnknown, fmt.Errorf("%w: %q", ErrUnknownMode, id)
}

// ParseOr is Parse with a silent fallback.
func (s *ModeSpec) ParseOr(id string, def Mode) Mode {
	m, err := s.Parse(id)
	if err != nil {
		return def
	}
	return m
}

// IsOn reports whether m is the configured on-mode. Every other mode,
// including the configured off-mode, reads as off.
func IsOn(m Mode, cfg SwitchConfig) bool {
	return m.Valid() && m == cfg.SwitchOn
}
