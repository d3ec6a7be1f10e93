package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/farouk15160/evocharger/internal/bridge"
	"github.com/farouk15160/evocharger/internal/config"
	"github.com/farouk15160/evocharger/internal/database"
	"github.com/farouk15160/evocharger/internal/database/clickhouse"
	"github.com/farouk15160/evocharger/internal/database/influxdb"
	"github.com/farouk15160/evocharger/internal/mqtt"
	"github.com/rs/zerolog/log"
)

const batchSize = 500

func main() {
	flags := config.RegisterFlags(flag.CommandLine)
	flag.Parse()

	cfg, err := config.Load(flags.ConfigFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	flags.Apply(&cfg)
	config.SetupLogging(cfg.Log, os.Stderr)
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bus, err := bridge.NewCANBus(cfg.CAN.Interface)
	if err != nil {
		log.Fatal().Err(err).Str("interface", cfg.CAN.Interface).Msg("CAN Handler: Fatal error activating CAN-Bus interface")
	}
	bus.Subscribe(bridge.SubscribedIDs()...)

	dispatcher := mqtt.NewDispatcher()
	client := mqtt.NewClient(cfg.MQTT, dispatcher)
	client.SetDebug(cfg.Log.Level == "debug")

	b := bridge.New(cfg, bus, client, openSinks(cfg)...)
	for topic, h := range b.Handlers() {
		dispatcher.HandleFunc(topic, h)
	}
	dispatcher.Handle(b.Topic(bridge.TopicStatusRequest), mqtt.StatusHandler(client, b.Topic(bridge.TopicStatus), b.Stats))
	// clean_session=false brings back subscriptions of earlier runs, e.g.
	// under another topic prefix; drop them when they deliver
	dispatcher.Fallback(mqtt.HandlerFunc(func(topic string, _ []byte) {
		log.Info().Str("topic", topic).Msg("MQTT: Message on stale subscription, unsubscribing")
		go func() {
			if err := client.Unsubscribe(topic); err != nil {
				log.Warn().Err(err).Str("topic", topic).Msg("MQTT: Unsubscribe failed")
			}
		}()
	}))
	bus.OnFrame(b.HandleFrame)

	client.Connect()
	if err := mqtt.PublishStartInfo(client, b.Topic(bridge.TopicStart), cfg); err != nil {
		log.Warn().Err(err).Msg("Start info not published")
	}

	go func() {
		if err := bus.Run(ctx); err != nil {
			log.Error().Err(err).Msg("CAN Handler: Bus stopped")
			stop()
		}
	}()

	if err := b.Run(ctx); err != nil {
		log.Error().Err(err).Msg("Bridge stopped with error")
	}
	client.Disconnect()
	log.Info().Msg("Shutting down gracefully")
}

// openSinks connects the enabled databases. A sink that cannot connect is
// skipped; the bridge runs without it.
func openSinks(cfg config.Config) []database.Writer {
	var sinks []database.Writer
	if cfg.Influx.Enabled {
		w, err := influxdb.New(cfg.Influx, batchSize)
		if err != nil {
			log.Error().Err(err).Msg("InfluxDB sink disabled")
		} else {
			sinks = append(sinks, w)
		}
	}
	if cfg.ClickHouse.Enabled {
		w, err := clickhouse.New(cfg.ClickHouse, batchSize)
		if err != nil {
			log.Error().Err(err).Msg("ClickHouse sink disabled")
		} else {
			sinks = append(sinks, w)
		}
	}
	return sinks
}
