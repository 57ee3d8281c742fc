package encoder

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tarm/serial"

	"github.com/lllars/g2/pkg/errors"
	"github.com/lllars/g2/pkg/log"
	"github.com/lllars/g2/pkg/pool"
)

// SerialConfig holds configuration for a serial-linked encoder board.
type SerialConfig struct {
	Device      string
	Baud        int
	ReadTimeout time.Duration
	NumMotors   int
}

// DefaultSerialConfig returns a default serial configuration.
func DefaultSerialConfig() SerialConfig {
	return SerialConfig{
		Baud:        250000,
		ReadTimeout: 100 * time.Millisecond,
		NumMotors:   4,
	}
}

// SerialSource reads encoder frames from a serial link. The board
// streams one line per sample:
//
//	E <count0> <count1> ... <countN-1>
//
// Lines that do not parse are dropped and counted, never propagated.
type SerialSource struct {
	mu     sync.RWMutex
	steps  []float64
	frames uint64
	junk   uint64

	port   io.ReadCloser
	logger *log.Logger
	done   chan struct{}
	wg     sync.WaitGroup
}

// OpenSerial opens the serial port and starts the read loop.
func OpenSerial(cfg SerialConfig) (*SerialSource, error) {
	if cfg.NumMotors <= 0 {
		return nil, errors.ConfigError("encoder", "num_motors", "must be positive")
	}
	port, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baud,
		ReadTimeout: cfg.ReadTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("encoder: open %s: %w", cfg.Device, err)
	}
	s := newSerialSource(port, cfg.NumMotors)
	s.wg.Add(1)
	go s.readLoop()
	return s, nil
}

func newSerialSource(port io.ReadCloser, numMotors int) *SerialSource {
	return &SerialSource{
		steps:  make([]float64, numMotors),
		port:   port,
		logger: log.GetLogger("encoder"),
		done:   make(chan struct{}),
	}
}

// Snapshot copies the most recent frame into out.
func (s *SerialSource) Snapshot(out []float64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	copy(out, s.steps)
}

// Frames returns the number of complete frames received.
func (s *SerialSource) Frames() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frames
}

// Close stops the read loop and closes the port.
func (s *SerialSource) Close() error {
	close(s.done)
	err := s.port.Close()
	s.wg.Wait()
	return err
}

func (s *SerialSource) readLoop() {
	defer s.wg.Done()
	scanner := bufio.NewScanner(s.port)
	for scanner.Scan() {
		select {
		case <-s.done:
			return
		default:
		}
		s.handleLine(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		select {
		case <-s.done:
		default:
			s.logger.WithError(err).Warn("encoder read loop exited")
		}
	}
}

func (s *SerialSource) handleLine(line string) {
	fields := strings.Fields(line)
	if len(fields) < 2 || fields[0] != "E" {
		s.countJunk()
		return
	}
	counts := pool.GetVector()
	defer pool.PutVector(counts)
	n := 0
	for _, f := range fields[1:] {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil || n >= len(counts) {
			s.countJunk()
			return
		}
		counts[n] = v
		n++
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if n != len(s.steps) {
		s.junk++
		return
	}
	copy(s.steps, counts[:n])
	s.frames++
}

func (s *SerialSource) countJunk() {
	s.mu.Lock()
	s.junk++
	junk := s.junk
	s.mu.Unlock()
	if junk%1000 == 1 {
		s.logger.WithField("dropped", junk).Debug("unparseable encoder frames")
	}
}
