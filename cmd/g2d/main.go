// g2d is the motion-core daemon. It loads a machine configuration,
// runs the planner and segment executor on a reactor dispatch loop,
// and exposes a Prometheus metrics endpoint plus a websocket status
// stream.
//
// Usage:
//
//	g2d -config machine.cfg [options]
//
// Options:
//
//	-config string   Machine configuration file (default: built-in)
//	-metrics string  Metrics listen address (default ":9100")
//	-report string   Status report listen address (default ":8800")
//	-encoder string  Serial device of the encoder board (optional)
//	-probe string    GPIO value file backing the probe input (optional;
//	                 probing cycles fail without one)
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/lllars/g2/pkg/config"
	"github.com/lllars/g2/pkg/cycle"
	"github.com/lllars/g2/pkg/encoder"
	"github.com/lllars/g2/pkg/input"
	"github.com/lllars/g2/pkg/kinematics"
	"github.com/lllars/g2/pkg/log"
	"github.com/lllars/g2/pkg/metrics"
	"github.com/lllars/g2/pkg/motion"
	"github.com/lllars/g2/pkg/reactor"
	"github.com/lllars/g2/pkg/report"
)

func main() {
	configFile := flag.String("config", "", "Machine configuration file")
	metricsAddr := flag.String("metrics", ":9100", "Metrics listen address")
	reportAddr := flag.String("report", ":8800", "Status report listen address")
	encoderDev := flag.String("encoder", "", "Serial device of the encoder board")
	probeFile := flag.String("probe", "", "GPIO value file of the probe input")
	flag.Parse()

	logger := log.GetLogger("g2d")
	log.ConfigureFromEnv(logger)

	mc := config.DefaultMachineConfig()
	if *configFile != "" {
		var err error
		mc, err = config.LoadMachine(*configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
	}

	// Feedback source: a serial encoder board when configured, else a
	// simulated source that mirrors nothing (zero counts).
	var enc encoder.Source
	if *encoderDev != "" {
		cfg := encoder.DefaultSerialConfig()
		cfg.Device = *encoderDev
		src, err := encoder.OpenSerial(cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening encoder: %v\n", err)
			os.Exit(1)
		}
		defer src.Close()
		enc = src
	} else {
		enc = encoder.NewSimulated(config.NumMotors)
	}

	transform := kinematics.New(mc.Motors[:])
	mm := metrics.NewMotionMetrics()
	engine := motion.NewEngine(mc, transform, enc, mm)

	// Without a sampling source the pin reads ErrNoReader and the
	// probe cycle refuses to start.
	probePin := input.NewPin(input.DefaultPinConfig())
	if *probeFile != "" {
		probePin.SetReadCallback(input.FileLevel(*probeFile))
	} else {
		logger.Warn("no -probe input configured; probing is unavailable")
	}
	probe := cycle.NewProbe(engine, probePin)

	// Both execution contexts run on the one reactor goroutine: the
	// high-rate exec tick and the lower-priority planning pass.
	r := reactor.New()
	execPeriod := mc.Runtime.NominalSegmentTime * 60 // minutes -> seconds
	r.RegisterTimer(func(eventtime float64) float64 {
		engine.ExecTick()
		return eventtime + execPeriod
	}, reactor.NOW)
	r.RegisterTimer(func(eventtime float64) float64 {
		engine.PlanMoves()
		probe.Poll()
		return eventtime + 0.005
	}, reactor.NOW)

	status := newStatusCache(engine)
	r.RegisterTimer(func(eventtime float64) float64 {
		status.refresh()
		return eventtime + 0.1
	}, reactor.NOW)

	metricsServer := metrics.NewServer(mm.Registry, *metricsAddr)
	if err := metricsServer.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Error starting metrics server: %v\n", err)
		os.Exit(1)
	}

	reportServer := report.New(report.Config{
		Addr:     *reportAddr,
		Interval: 250 * time.Millisecond,
		Provider: status,
	})
	if err := reportServer.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Error starting report server: %v\n", err)
		os.Exit(1)
	}

	r.Run()
	logger.WithField("metrics", *metricsAddr).
		WithField("report", *reportAddr).
		Info("g2d running")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, unix.SIGINT, unix.SIGTERM)
	sig := <-sigCh
	logger.WithField("signal", sig.String()).Info("shutting down")

	r.End()
	r.Wait()
	reportServer.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	metricsServer.Stop(ctx)
}

// statusCache decouples the HTTP-side status readers from the reactor
// goroutine that owns the engine: a reactor timer refreshes the copy,
// readers only ever touch the copy.
type statusCache struct {
	mu     sync.RWMutex
	engine *motion.Engine

	position [config.NumAxes]float64
	work     [config.NumAxes]float64
	velocity float64
	ferr     [config.NumMotors]float64
	idle     bool
	avail    int
}

func newStatusCache(e *motion.Engine) *statusCache {
	return &statusCache{engine: e}
}

// refresh runs on the reactor goroutine.
func (s *statusCache) refresh() {
	pos := s.engine.Position()
	work := s.engine.WorkPosition()
	vel := s.engine.Velocity()
	ferr := s.engine.FollowingError()
	idle := s.engine.RuntimeIsIdle()
	avail := s.engine.AvailableBuffers()

	s.mu.Lock()
	s.position = pos
	s.work = work
	s.velocity = vel
	s.ferr = ferr
	s.idle = idle
	s.avail = avail
	s.mu.Unlock()
}

// Fill implements report.StatusProvider.
func (s *statusCache) Fill(status map[string]any) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := 0; i < config.NumAxes; i++ {
		status["pos_"+config.AxisName(i)] = s.position[i]
		status["work_"+config.AxisName(i)] = s.work[i]
	}
	status["velocity"] = s.velocity
	status["idle"] = s.idle
	status["buffers_available"] = s.avail
	for m := 0; m < config.NumMotors; m++ {
		status[fmt.Sprintf("following_error_%d", m)] = s.ferr[m]
	}
}
