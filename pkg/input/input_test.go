package input

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestReadWithoutCallback(t *testing.T) {
	p := NewPin(DefaultPinConfig())
	if _, err := p.Read(); !errors.Is(err, ErrNoReader) {
		t.Errorf("Read err = %v, want ErrNoReader", err)
	}
}

func TestReadUpdatesState(t *testing.T) {
	p := NewPin(DefaultPinConfig())
	level := false
	p.SetReadCallback(func() (bool, error) { return level, nil })

	state, err := p.Read()
	if err != nil || state != StateInactive {
		t.Fatalf("Read = %v, %v", state, err)
	}
	if p.IsActive() {
		t.Error("IsActive after inactive read")
	}

	level = true
	state, _ = p.Read()
	if state != StateActive || !p.IsActive() {
		t.Errorf("Read = %v, IsActive = %v", state, p.IsActive())
	}
}

func TestInvertedRead(t *testing.T) {
	cfg := DefaultPinConfig()
	cfg.Inverted = true
	p := NewPin(cfg)
	p.SetReadCallback(func() (bool, error) { return false, nil })

	state, _ := p.Read()
	if state != StateActive {
		t.Errorf("inverted read = %v, want active", state)
	}
}

func TestEdgeDebounce(t *testing.T) {
	cfg := DefaultPinConfig()
	cfg.DebounceTime = time.Hour
	p := NewPin(cfg)

	edges := 0
	p.SetEdgeCallback(func(active bool) { edges++ })

	p.HandleEdge(true)
	p.HandleEdge(false) // inside debounce window
	p.HandleEdge(true)  // inside debounce window

	if edges != 1 {
		t.Errorf("edges = %d, want 1", edges)
	}
	if !p.IsActive() {
		t.Error("state should hold first edge")
	}
}

func TestSimulated(t *testing.T) {
	s := NewSimulated()
	if s.IsActive() {
		t.Error("new simulated input active")
	}
	s.SetActive(true)
	state, err := s.Read()
	if err != nil || state != StateActive {
		t.Errorf("Read = %v, %v", state, err)
	}
}

func TestFileLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "value")
	p := NewPin(DefaultPinConfig())
	p.SetReadCallback(FileLevel(path))

	if _, err := p.Read(); err == nil {
		t.Error("expected error for missing value file")
	}

	if err := os.WriteFile(path, []byte("0\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if state, err := p.Read(); err != nil || state != StateInactive {
		t.Errorf("Read = %v, %v", state, err)
	}

	if err := os.WriteFile(path, []byte("1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if state, err := p.Read(); err != nil || state != StateActive {
		t.Errorf("Read = %v, %v", state, err)
	}

	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Read(); err == nil {
		t.Error("expected error for a garbled level")
	}
}
