package config

import (
	"bytes"
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	. "github.com/smartystreets/goconvey/convey"
)

const testYaml = `
can:
  interface: vcan0
mqtt:
  broker: tcp://broker:1883
  topic_prefix: garage/evo
  qos: 1
bridge:
  direction: 1
  control_period: 250ms
clickhouse:
  enabled: true
  addr:
    - "ch1:9000"
    - "ch2:9000"
`

const testJSON = `{
  "can": {"interface": "can1"},
  "mqtt": {"broker": "tcp://user:pw@10.0.0.5:1883", "client_id": "bench"},
  "bridge": {"control_period": "50ms", "startup_requests": false},
  "influx": {"enabled": true, "host": "http://influx:8181", "database": "evo"}
}`

func TestParse(t *testing.T) {
	Convey("YAML files", t, func() {
		cfg := Default()
		So(Parse([]byte(testYaml), ".yml", &cfg), ShouldBeNil)
		So(cfg.CAN.Interface, ShouldEqual, "vcan0")
		So(cfg.MQTT.TopicPrefix, ShouldEqual, "garage/evo")
		So(cfg.MQTT.QoS, ShouldEqual, 1)
		So(cfg.MQTT.ClientID, ShouldEqual, "evo-bridge")
		So(cfg.Bridge.Direction, ShouldEqual, CanToMqtt)
		So(time.Duration(cfg.Bridge.ControlPeriod), ShouldEqual, 250*time.Millisecond)
		So(cfg.ClickHouse.Addr, ShouldResemble, []string{"ch1:9000", "ch2:9000"})
		So(cfg.Validate(), ShouldBeNil)
	})

	Convey("JSON files", t, func() {
		cfg := Default()
		So(Parse([]byte(testJSON), ".json", &cfg), ShouldBeNil)
		So(cfg.CAN.Interface, ShouldEqual, "can1")
		So(cfg.MQTT.ClientID, ShouldEqual, "bench")
		So(time.Duration(cfg.Bridge.ControlPeriod), ShouldEqual, 50*time.Millisecond)
		So(cfg.Bridge.StartupRequests, ShouldBeFalse)
		So(cfg.Influx.Measurement, ShouldEqual, "evo_charger")
		So(cfg.Validate(), ShouldBeNil)
	})

	Convey("Malformed durations fail", t, func() {
		cfg := Default()
		So(Parse([]byte(`{"bridge": {"control_period": "fast"}}`), ".json", &cfg), ShouldNotBeNil)
	})
}

func TestLoad(t *testing.T) {
	Convey("Given a config file and environment overrides", t, func() {
		dir := t.TempDir()
		path := filepath.Join(dir, "bridge.yaml")
		So(os.WriteFile(path, []byte(testYaml), 0o600), ShouldBeNil)
		t.Setenv("EVO_CAN_IFACE", "can7")
		t.Setenv("EVO_CONTROL_PERIOD", "200ms")
		t.Setenv("EVO_CLICKHOUSE_ADDR", "a:1,b:2")

		cfg, err := Load(path)
		So(err, ShouldBeNil)
		So(cfg.CAN.Interface, ShouldEqual, "can7")
		So(cfg.MQTT.Broker, ShouldEqual, "tcp://broker:1883")
		So(time.Duration(cfg.Bridge.ControlPeriod), ShouldEqual, 200*time.Millisecond)
		So(cfg.ClickHouse.Addr, ShouldResemble, []string{"a:1", "b:2"})

		Convey("flags given on the command line win", func() {
			fs := flag.NewFlagSet("test", flag.ContinueOnError)
			flags := RegisterFlags(fs)
			So(fs.Parse([]string{"-d", "2", "-v", "-p", "lab"}), ShouldBeNil)
			flags.Apply(&cfg)
			So(cfg.Bridge.Direction, ShouldEqual, MqttToCan)
			So(cfg.Log.Level, ShouldEqual, "debug")
			So(cfg.MQTT.TopicPrefix, ShouldEqual, "lab")
			So(cfg.CAN.Interface, ShouldEqual, "can7")
		})
	})

	Convey("A missing file is an error", t, func() {
		_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
		So(err, ShouldNotBeNil)
	})
}

func TestValidate(t *testing.T) {
	Convey("Defaults are valid", t, func() {
		So(Default().Validate(), ShouldBeNil)
	})

	Convey("Every broken value is reported", t, func() {
		cfg := Default()
		cfg.MQTT.TopicPrefix = "/"
		cfg.Bridge.Direction = 5
		cfg.Bridge.ControlPeriod = 0
		cfg.Influx.Enabled = true
		err := cfg.Validate()
		So(err, ShouldNotBeNil)
		So(err.Error(), ShouldContainSubstring, "topic_prefix")
		So(err.Error(), ShouldContainSubstring, "direction")
		So(err.Error(), ShouldContainSubstring, "control_period")
		So(err.Error(), ShouldContainSubstring, "influx")
	})
}

func TestSetupLogging(t *testing.T) {
	Convey("The level comes from the configuration", t, func() {
		defer zerolog.SetGlobalLevel(zerolog.InfoLevel)
		var buf bytes.Buffer
		SetupLogging(Log{Level: "warn"}, &buf)
		log.Info().Msg("hidden")
		log.Warn().Msg("shown")
		So(buf.String(), ShouldNotContainSubstring, "hidden")
		So(buf.String(), ShouldContainSubstring, "shown")

		SetupLogging(Log{Level: "bogus"}, &buf)
		So(zerolog.GlobalLevel(), ShouldEqual, zerolog.InfoLevel)
	})
}
