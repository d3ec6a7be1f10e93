package mqtt

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/farouk15160/evocharger/internal/config"
	"github.com/rs/zerolog/log"
)

// StatsFunc reports counters of the component that owns the client.
type StatsFunc func() map[string]uint64

// Status is published retained on <prefix>/bridge/status.
type Status struct {
	App         string            `json:"app"`
	Host        string            `json:"host"`
	IPAddress   string            `json:"ip_address"`
	RAMUsage    string            `json:"ram_usage"`
	Goroutines  int               `json:"goroutines"`
	Temperature string            `json:"temperature"`
	Uptime      string            `json:"uptime"`
	Process     string            `json:"process_uptime"`
	Counters    map[string]uint64 `json:"counters,omitempty"`
	Timestamp   int64             `json:"timestamp"`
}

var processStart = time.Now()

// CollectStatus gathers host and process information.
func CollectStatus(stats StatsFunc) Status {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	host, _ := os.Hostname()
	s := Status{
		App:         config.AppName,
		Host:        host,
		IPAddress:   getIPAddress(),
		RAMUsage:    fmt.Sprintf("%d MB", m.Alloc/(1024*1024)),
		Goroutines:  runtime.NumGoroutine(),
		Temperature: "N/A",
		Uptime:      formatUptime(getUptime()),
		Process:     formatUptime(uint64(time.Since(processStart).Seconds())),
		Timestamp:   time.Now().Unix(),
	}
	if t, ok := getTemperature(); ok {
		s.Temperature = fmt.Sprintf("%.1f°C", t)
	}
	if stats != nil {
		s.Counters = stats()
	}
	return s
}

// StatusHandler answers any message on the request topic with a retained
// status report on statusTopic.
func StatusHandler(p RetainedPublisher, statusTopic string, stats StatsFunc) HandlerFunc {
	return func(topic string, _ []byte) {
		log.Debug().Str("topic", topic).Msg("Status: request received, gathering status")
		payload, err := json.Marshal(CollectStatus(stats))
		if err != nil {
			log.Error().Err(err).Msg("Status: error marshalling status")
			return
		}
		if err := p.PublishRetained(statusTopic, payload); err != nil {
			log.Error().Err(err).Str("topic", statusTopic).Msg("Status: publish failed")
		}
	}
}

// PublishStartInfo publishes a retained message announcing the bridge.
func PublishStartInfo(p RetainedPublisher, topic string, cfg config.Config) error {
	payload, err := json.MarshalIndent(map[string]any{
		"message":    config.AppName + " is up and running",
		"ip_address": getIPAddress(),
		"interface":  cfg.CAN.Interface,
		"direction":  cfg.Bridge.Direction,
		"timestamp":  time.Now().Unix(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("error marshaling start info: %w", err)
	}
	return p.PublishRetained(topic, payload)
}
