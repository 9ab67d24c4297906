// Package position converts the noisy predicted signal into discrete trade
// decisions through a strictly sequential three-state machine. Position at t
// is a function of the ordered history up to and including t; nothing here
// looks ahead.
package position

import (
	"fmt"
	"math"
)

// State is the machine's discrete trading state.
type State int

const (
	Flat        State = 0
	LongSpread  State = +1
	ShortSpread State = -1
)

func (s State) String() string {
	switch s {
	case LongSpread:
		return "long_spread"
	case ShortSpread:
		return "short_spread"
	default:
		return "flat"
	}
}

// Config holds the entry/exit/time-stop rules.
type Config struct {
	EntryZ   float64 // enter when |predicted z| exceeds this; entry > exit and entry > 0
	ExitZ    float64 // exit when realized z crosses back within this band
	TimeStop int     // maximum bars held; 0 disables
}

// Machine carries the sequential state across timestamps. Step produces the
// position for one timestamp, so any single transition can be exercised in
// isolation.
type Machine struct {
	cfg      Config
	state    State
	barsHeld int
}

func NewMachine(cfg Config) (*Machine, error) {
	if !(cfg.EntryZ > 0) || math.IsInf(cfg.EntryZ, 0) {
		return nil, fmt.Errorf("entry threshold must be finite and > 0, got %g", cfg.EntryZ)
	}
	if cfg.ExitZ >= cfg.EntryZ || math.IsNaN(cfg.ExitZ) || math.IsInf(cfg.ExitZ, 0) {
		return nil, fmt.Errorf("exit threshold must be finite and < entry (%g), got %g", cfg.EntryZ, cfg.ExitZ)
	}
	if cfg.TimeStop < 0 {
		return nil, fmt.Errorf("time stop must be >= 0, got %d", cfg.TimeStop)
	}
	return &Machine{cfg: cfg}, nil
}

// State returns the current machine state.
func (m *Machine) State() State { return m.state }

// Step advances one timestamp. entryAllowed carries the combined
// cointegration/meta gates: when false, no new position opens, but an open
// position still exits on its own rules; exits are never suppressed.
//
// A long spread opens on a strongly negative predicted z and closes once the
// realized z has recovered to within the exit band (z >= -exit); short is the
// mirror image. The time-stop closes the position after TimeStop bars held,
// whichever comes first.
func (m *Machine) Step(predZ, z float64, entryAllowed bool) int {
	if m.state == Flat {
		m.barsHeld = 0
		if entryAllowed && !math.IsNaN(predZ) {
			if predZ < -m.cfg.EntryZ {
				m.state = LongSpread
			} else if predZ > +m.cfg.EntryZ {
				m.state = ShortSpread
			}
		}
		return int(m.state)
	}

	m.barsHeld++
	exitByZ := false
	if !math.IsNaN(z) {
		exitByZ = (m.state == LongSpread && z >= -m.cfg.ExitZ) ||
			(m.state == ShortSpread && z <= +m.cfg.ExitZ)
	}
	exitByTime := m.cfg.TimeStop > 0 && m.barsHeld >= m.cfg.TimeStop
	if exitByZ || exitByTime {
		m.state = Flat
		m.barsHeld = 0
	}
	return int(m.state)
}

// Run walks the full index in order and returns one position per timestamp.
// gate may be nil (entries always allowed).
func Run(cfg Config, predZ, z []float64, gate []bool) ([]int, error) {
	if len(predZ) != len(z) {
		return nil, fmt.Errorf("position run: predicted/realized z length mismatch: %d vs %d", len(predZ), len(z))
	}
	if gate != nil && len(gate) != len(z) {
		return nil, fmt.Errorf("position run: gate length mismatch: %d vs %d", len(gate), len(z))
	}
	m, err := NewMachine(cfg)
	if err != nil {
		return nil, err
	}
	out := make([]int, len(z))
	for t := range z {
		allowed := gate == nil || gate[t]
		out[t] = m.Step(predZ[t], z[t], allowed)
	}
	return out, nil
}
