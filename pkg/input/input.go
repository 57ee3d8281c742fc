// Package input provides digital input reading for cycle sequencers.
package input

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
)

var ErrNoReader = errors.New("input: no read callback set")

// State represents the current state of a digital input.
type State int

const (
	StateInactive State = iota
	StateActive
	StateUnknown
)

func (s State) String() string {
	switch s {
	case StateInactive:
		return "inactive"
	case StateActive:
		return "active"
	default:
		return "unknown"
	}
}

// DigitalInput is the read surface a cycle sequencer polls. A probing
// cycle checks it before queueing motion and the input's edge handler
// arms the runtime's contact capture.
type DigitalInput interface {
	Read() (State, error)
	IsActive() bool
}

// Pin is a debounced digital input backed by a read callback.
type Pin struct {
	mu sync.RWMutex

	name     string
	inverted bool

	state        State
	lastEdge     time.Time
	debounceTime time.Duration

	read   func() (bool, error)
	onEdge func(active bool)
}

// PinConfig holds configuration for a digital input pin.
type PinConfig struct {
	Name         string
	Inverted     bool
	DebounceTime time.Duration
}

// DefaultPinConfig returns a default pin configuration.
func DefaultPinConfig() PinConfig {
	return PinConfig{
		Name:         "probe",
		DebounceTime: 1 * time.Millisecond,
	}
}

// NewPin creates a new digital input pin.
func NewPin(cfg PinConfig) *Pin {
	return &Pin{
		name:         cfg.Name,
		inverted:     cfg.Inverted,
		state:        StateUnknown,
		debounceTime: cfg.DebounceTime,
	}
}

// SetReadCallback sets the callback for sampling the raw pin level.
func (p *Pin) SetReadCallback(fn func() (bool, error)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.read = fn
}

// SetEdgeCallback sets the callback invoked on a debounced edge.
func (p *Pin) SetEdgeCallback(fn func(active bool)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onEdge = fn
}

// HandleEdge is called from the sampling path when the raw level
// changes. Edges inside the debounce window are ignored.
func (p *Pin) HandleEdge(active bool) {
	p.mu.Lock()
	now := time.Now()
	if now.Sub(p.lastEdge) < p.debounceTime {
		p.mu.Unlock()
		return
	}
	p.lastEdge = now
	if p.inverted {
		active = !active
	}
	if active {
		p.state = StateActive
	} else {
		p.state = StateInactive
	}
	callback := p.onEdge
	p.mu.Unlock()

	if callback != nil {
		callback(active)
	}
}

// Read samples the input through the read callback and updates the
// cached state.
func (p *Pin) Read() (State, error) {
	p.mu.RLock()
	read := p.read
	inverted := p.inverted
	p.mu.RUnlock()

	if read == nil {
		return StateUnknown, ErrNoReader
	}
	active, err := read()
	if err != nil {
		return StateUnknown, err
	}
	if inverted {
		active = !active
	}

	p.mu.Lock()
	if active {
		p.state = StateActive
	} else {
		p.state = StateInactive
	}
	state := p.state
	p.mu.Unlock()
	return state, nil
}

// IsActive returns true if the last observed state was active.
func (p *Pin) IsActive() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state == StateActive
}

// Name returns the input name.
func (p *Pin) Name() string {
	return p.name
}

// FileLevel returns a read callback sampling a sysfs-style GPIO value
// file holding "0" or "1". Pass it to SetReadCallback to back a Pin
// with a kernel-exported pin.
func FileLevel(path string) func() (bool, error) {
	return func() (bool, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			return false, err
		}
		switch strings.TrimSpace(string(data)) {
		case "0":
			return false, nil
		case "1":
			return true, nil
		}
		return false, fmt.Errorf("input: unexpected level in %s", path)
	}
}

// Simulated is a DigitalInput for tests and dry runs. Its level is set
// directly instead of sampled from hardware.
type Simulated struct {
	mu     sync.RWMutex
	active bool
}

// NewSimulated creates a simulated input, initially inactive.
func NewSimulated() *Simulated {
	return &Simulated{}
}

// SetActive sets the simulated level.
func (s *Simulated) SetActive(active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = active
}

func (s *Simulated) Read() (State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.active {
		return StateActive, nil
	}
	return StateInactive, nil
}

func (s *Simulated) IsActive() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}
