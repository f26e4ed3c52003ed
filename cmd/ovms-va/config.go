package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kstaniek/go-ovms-va/internal/mqtt"
	"github.com/kstaniek/go-ovms-va/internal/params"
)

const envPrefix = "OVMS_VA_"

type appConfig struct {
	backend         string
	canIf           string
	serialDev       string
	baud            int
	serialReadTO    time.Duration
	cnlAddr         string
	handshakeTO     time.Duration
	rxQueue         int
	logFormat       string
	logLevel        string
	metricsAddr     string
	logMetricsEvery time.Duration
	mdnsEnable      bool
	mdnsName        string
	dbPath          string
	minSOC          int
	units           string
	mqttBroker      string
	mqttClientID    string
	mqttTopic       string
	mqttNotifyTopic string
	mqttCmdTopic    string
	publishEvery    time.Duration

	// explicit holds the flags given on the command line, fromEnv those
	// taken from the environment.
	explicit map[string]struct{}
	fromEnv  map[string]struct{}
}

// isSet reports whether the operator chose a value for the flag, either on
// the command line or through the environment.
func (c *appConfig) isSet(name string) bool {
	if _, ok := c.explicit[name]; ok {
		return true
	}
	_, ok := c.fromEnv[name]
	return ok
}

func parseFlags() (*appConfig, bool) {
	cfg := &appConfig{}
	fs := flag.CommandLine
	fs.StringVar(&cfg.backend, "backend", "socketcan", "CAN backend: socketcan|serial|cannelloni")
	fs.StringVar(&cfg.canIf, "can-if", "can0", "SocketCAN interface (when --backend=socketcan)")
	fs.StringVar(&cfg.serialDev, "serial", "/dev/ttyUSB0", "Serial device path")
	fs.IntVar(&cfg.baud, "baud", 115200, "Serial baud rate")
	fs.DurationVar(&cfg.serialReadTO, "serial-read-timeout", 50*time.Millisecond, "Serial read timeout")
	fs.StringVar(&cfg.cnlAddr, "cnl-addr", "", "cannelloni TCP peer host:port (when --backend=cannelloni)")
	fs.DurationVar(&cfg.handshakeTO, "handshake-timeout", 3*time.Second, "cannelloni handshake timeout")
	fs.IntVar(&cfg.rxQueue, "rx-queue", 256, "Frames buffered between RX backend and capture")
	fs.StringVar(&cfg.logFormat, "log-format", "text", "Log format: text|json")
	fs.StringVar(&cfg.logLevel, "log-level", "info", "Log level: debug|info|warn|error")
	fs.StringVar(&cfg.metricsAddr, "metrics-addr", "", "Metrics/status HTTP listen address (e.g., :9100); empty disables")
	fs.DurationVar(&cfg.logMetricsEvery, "log-metrics-interval", 0, "If >0, periodically log metrics counters")
	fs.BoolVar(&cfg.mdnsEnable, "mdns-enable", false, "Advertise the status endpoint via mDNS")
	fs.StringVar(&cfg.mdnsName, "mdns-name", "", "mDNS instance name (default ovms-va-<hostname>)")
	fs.StringVar(&cfg.dbPath, "db", "ovms-va.db", "Parameter store path (bbolt)")
	fs.IntVar(&cfg.minSOC, "min-soc", 0, "Low-charge notification threshold in percent (0 disables); persisted")
	fs.StringVar(&cfg.units, "units", "M", "Distance units: M|K; persisted")
	fs.StringVar(&cfg.mqttBroker, "mqtt-broker", "", "MQTT broker URL (e.g., tcp://localhost:1883); empty disables")
	fs.StringVar(&cfg.mqttClientID, "mqtt-client-id", mqtt.DefaultClientID, "MQTT client id")
	fs.StringVar(&cfg.mqttTopic, "mqtt-topic", mqtt.DefaultTopic, "MQTT topic for state snapshots")
	fs.StringVar(&cfg.mqttNotifyTopic, "mqtt-notify-topic", "", "MQTT topic for notifications (default <mqtt-topic>/notify)")
	fs.StringVar(&cfg.mqttCmdTopic, "mqtt-command-topic", "", "MQTT topic for vehicle commands; empty disables")
	fs.DurationVar(&cfg.publishEvery, "publish-interval", mqtt.DefaultUpdateInterval, "MQTT state publish interval")
	showVersion := fs.Bool("version", false, "Print version and exit")
	flag.Parse()

	cfg.explicit = map[string]struct{}{}
	flag.Visit(func(f *flag.Flag) { cfg.explicit[f.Name] = struct{}{} })

	if err := applyEnvOverrides(cfg, cfg.explicit); err != nil {
		fmt.Printf("environment override error: %v\n", err)
		return nil, *showVersion
	}
	if err := cfg.validate(); err != nil {
		fmt.Printf("configuration error: %v\n", err)
		return nil, *showVersion
	}
	return cfg, *showVersion
}

// validate checks values and ranges. It does not open devices or listeners.
func (c *appConfig) validate() error {
	if c == nil {
		return errors.New("nil config")
	}
	switch c.logFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log-format: %s", c.logFormat)
	}
	switch c.logLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log-level: %s", c.logLevel)
	}
	switch c.backend {
	case "socketcan", "serial":
	case "cannelloni":
		if c.cnlAddr == "" {
			return errors.New("cnl-addr required for cannelloni backend")
		}
	default:
		return fmt.Errorf("invalid backend: %s", c.backend)
	}
	if err := params.Validate(params.KeyUnits, c.units); err != nil {
		return fmt.Errorf("invalid units: %w", err)
	}
	if err := params.Validate(params.KeyMinSOC, strconv.Itoa(c.minSOC)); err != nil {
		return fmt.Errorf("invalid min-soc: %w", err)
	}
	if c.baud <= 0 {
		return fmt.Errorf("baud must be > 0 (got %d)", c.baud)
	}
	if c.serialReadTO <= 0 {
		return fmt.Errorf("serial-read-timeout must be > 0")
	}
	if c.handshakeTO <= 0 {
		return fmt.Errorf("handshake-timeout must be > 0")
	}
	if c.rxQueue <= 0 {
		return fmt.Errorf("rx-queue must be > 0 (got %d)", c.rxQueue)
	}
	if c.dbPath == "" {
		return errors.New("db path must not be empty")
	}
	if c.mqttBroker != "" && c.publishEvery <= 0 {
		return fmt.Errorf("publish-interval must be > 0")
	}
	return nil
}

// applyEnvOverrides maps OVMS_VA_* environment variables to config fields
// unless the corresponding flag was set explicitly. Empty values are
// ignored. The first malformed value is returned; later ones are skipped.
func applyEnvOverrides(c *appConfig, set map[string]struct{}) error {
	var firstErr error
	fail := func(key string, err error) {
		if firstErr == nil {
			firstErr = fmt.Errorf("invalid %s: %w", key, err)
		}
	}
	lookup := func(flagName, env string) (string, bool) {
		if _, ok := set[flagName]; ok {
			return "", false
		}
		v, ok := os.LookupEnv(envPrefix + env)
		v = strings.TrimSpace(v)
		if !ok || v == "" {
			return "", false
		}
		if c.fromEnv == nil {
			c.fromEnv = map[string]struct{}{}
		}
		c.fromEnv[flagName] = struct{}{}
		return v, true
	}
	str := func(flagName, env string, dst *string) {
		if v, ok := lookup(flagName, env); ok {
			*dst = v
		}
	}
	num := func(flagName, env string, floor int, dst *int) {
		if v, ok := lookup(flagName, env); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				fail(envPrefix+env, err)
				return
			}
			if n < floor {
				fail(envPrefix+env, fmt.Errorf("%d below %d", n, floor))
				return
			}
			*dst = n
		}
	}
	dur := func(flagName, env string, dst *time.Duration) {
		if v, ok := lookup(flagName, env); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				fail(envPrefix+env, err)
				return
			}
			if d < 0 {
				fail(envPrefix+env, fmt.Errorf("negative duration %s", d))
				return
			}
			*dst = d
		}
	}
	boolean := func(flagName, env string, dst *bool) {
		if v, ok := lookup(flagName, env); ok {
			switch strings.ToLower(v) {
			case "1", "true", "yes", "on":
				*dst = true
			case "0", "false", "no", "off":
				*dst = false
			default:
				fail(envPrefix+env, fmt.Errorf("not a boolean: %q", v))
			}
		}
	}

	str("backend", "BACKEND", &c.backend)
	str("can-if", "IF", &c.canIf)
	str("serial", "SERIAL", &c.serialDev)
	num("baud", "BAUD", 1, &c.baud)
	dur("serial-read-timeout", "SERIAL_READ_TIMEOUT", &c.serialReadTO)
	str("cnl-addr", "CNL_ADDR", &c.cnlAddr)
	dur("handshake-timeout", "HANDSHAKE_TIMEOUT", &c.handshakeTO)
	num("rx-queue", "RX_QUEUE", 1, &c.rxQueue)
	str("log-format", "LOG_FORMAT", &c.logFormat)
	str("log-level", "LOG_LEVEL", &c.logLevel)
	str("metrics-addr", "METRICS", &c.metricsAddr)
	dur("log-metrics-interval", "LOG_METRICS_INTERVAL", &c.logMetricsEvery)
	boolean("mdns-enable", "MDNS_ENABLE", &c.mdnsEnable)
	str("mdns-name", "MDNS_NAME", &c.mdnsName)
	str("db", "DB", &c.dbPath)
	num("min-soc", "MIN_SOC", 0, &c.minSOC)
	str("units", "UNITS", &c.units)
	str("mqtt-broker", "MQTT_BROKER", &c.mqttBroker)
	str("mqtt-client-id", "MQTT_CLIENT_ID", &c.mqttClientID)
	str("mqtt-topic", "MQTT_TOPIC", &c.mqttTopic)
	str("mqtt-notify-topic", "MQTT_NOTIFY_TOPIC", &c.mqttNotifyTopic)
	str("mqtt-command-topic", "MQTT_COMMAND_TOPIC", &c.mqttCmdTopic)
	dur("publish-interval", "PUBLISH_INTERVAL", &c.publishEvery)
	return firstErr
}
