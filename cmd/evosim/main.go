package main

import (
	"context"
	"flag"
	"math/rand"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/farouk15160/evocharger/internal/bridge"
	"github.com/farouk15160/evocharger/internal/canframe"
	"github.com/farouk15160/evocharger/internal/charger"
	"github.com/farouk15160/evocharger/internal/config"
	"github.com/farouk15160/evocharger/internal/simulator"
	"github.com/rs/zerolog/log"
)

func main() {
	iface := flag.String("c", "vcan0", "CAN interface name (e.g., vcan0)")
	seed := flag.Int64("seed", 0, "Random seed for measurement noise, 0 uses the clock")
	software := flag.String("sw", "", "Software version reported by the charger")
	serial := flag.String("sn", "", "Serial number reported by the charger")
	active := flag.String("active", "", "Comma separated hex codes of active hard faults (e.g., AB,A1)")
	debug := flag.Bool("v", false, "Enable verbose/debug output")
	flag.Parse()

	level := "info"
	if *debug {
		level = "debug"
	}
	config.SetupLogging(config.Log{Level: level, Console: true}, os.Stderr)

	cfg := simulator.DefaultConfig()
	if *software != "" {
		cfg.Software = *software
	}
	if *serial != "" {
		cfg.Serial = *serial
	}
	codes, err := parseCodes(*active)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid -active")
	}
	for _, c := range codes {
		cfg.ActiveFaults = append(cfg.ActiveFaults, charger.Fault{Code: c, FailureLevel: charger.FailureHard, Occurrence: 1})
	}

	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}
	sim := simulator.New(cfg, rand.New(rand.NewSource(*seed)))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bus, err := bridge.NewCANBus(*iface)
	if err != nil {
		log.Fatal().Err(err).Str("interface", *iface).Msg("Simulator: cannot open CAN interface")
	}
	bus.Subscribe(charger.IDCtl, charger.IDReq)

	in := make(chan canframe.Frame, 64)
	bus.OnFrame(func(f canframe.Frame) {
		select {
		case in <- f:
		default:
			log.Warn().Str("frame", f.String()).Msg("Simulator: input queue full, frame dropped")
		}
	})

	go func() {
		if err := bus.Run(ctx); err != nil {
			log.Error().Err(err).Msg("Simulator: bus stopped")
			stop()
		}
	}()

	log.Info().Str("interface", *iface).Int64("seed", *seed).Msg("Simulator: running")
	if err := sim.Run(ctx, bus, in); err != nil && err != context.Canceled {
		log.Error().Err(err).Msg("Simulator: stopped")
	}
}

func parseCodes(s string) ([]uint8, error) {
	var codes []uint8
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimPrefix(strings.TrimSpace(part), "0x")
		if part == "" {
			continue
		}
		v, err := strconv.ParseUint(part, 16, 8)
		if err != nil {
			return nil, err
		}
		codes = append(codes, uint8(v))
	}
	return codes, nil
}
