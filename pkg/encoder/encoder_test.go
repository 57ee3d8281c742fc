package encoder

import (
	"io"
	"strings"
	"testing"
	"time"
)

func TestSimulatedSnapshot(t *testing.T) {
	s := NewSimulated(4)
	out := make([]float64, 4)
	s.Snapshot(out)
	for i, v := range out {
		if v != 0 {
			t.Errorf("initial out[%d] = %g", i, v)
		}
	}

	s.SetSteps([]float64{10, 20, 30, 40})
	s.SetStep(1, 25)
	s.Snapshot(out)
	want := []float64{10, 25, 30, 40}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("out[%d] = %g, want %g", i, out[i], want[i])
		}
	}
}

type stubPort struct {
	io.Reader
}

func (stubPort) Close() error { return nil }

func waitFrames(t *testing.T, s *SerialSource, n uint64) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for s.Frames() < n && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if s.Frames() < n {
		t.Fatalf("frames = %d, want >= %d", s.Frames(), n)
	}
}

func TestSerialFrameParsing(t *testing.T) {
	r := strings.NewReader("E 100 200 300 400\nE 101 201 301 401\n")
	s := newSerialSource(stubPort{r}, 4)
	s.wg.Add(1)
	go s.readLoop()
	defer s.Close()

	waitFrames(t, s, 2)
	out := make([]float64, 4)
	s.Snapshot(out)
	want := []float64{101, 201, 301, 401}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("out[%d] = %g, want %g", i, out[i], want[i])
		}
	}
}

func TestSerialDropsJunk(t *testing.T) {
	lines := []string{
		"garbage",
		"E 1 2",       // wrong count
		"E a b c d",   // unparseable
		"T 25.0",      // not an encoder frame
		"E 5 6 7 8",   // good
	}
	r := strings.NewReader(strings.Join(lines, "\n") + "\n")
	s := newSerialSource(stubPort{r}, 4)
	s.wg.Add(1)
	go s.readLoop()
	defer s.Close()

	waitFrames(t, s, 1)
	out := make([]float64, 4)
	s.Snapshot(out)
	want := []float64{5, 6, 7, 8}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("out[%d] = %g, want %g", i, out[i], want[i])
		}
	}
	if s.Frames() != 1 {
		t.Errorf("frames = %d, want 1", s.Frames())
	}
}
