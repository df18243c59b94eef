package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the FleetGlass server.
type Config struct {
	Port       int
	Version    string
	CORSOrigin string
	Telemetry  TelemetryConfig
	Fabric     FabricConfig
	Watchdog   WatchdogConfig
	Message    MessageConfig
}

type TelemetryConfig struct {
	Enabled      bool
	OTLPEndpoint string
	ServiceName  string
}

type FabricConfig struct {
	// QueueSize bounds each observer's outbound event queue.
	QueueSize int
}

type WatchdogConfig struct {
	Enabled  bool
	Interval time.Duration
}

type MessageConfig struct {
	// ProcessingDelay is the simulated message-processing latency.
	ProcessingDelay time.Duration
}

// Load reads configuration from a .env file (if present) and environment
// variables, with sensible defaults.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:       envInt("FLEETGLASS_PORT", 8080),
		Version:    envStr("FLEETGLASS_VERSION", "0.1.0"),
		CORSOrigin: envStr("CORS_ORIGIN", "*"),
		Telemetry: TelemetryConfig{
			Enabled:      envBool("OTEL_ENABLED", false),
			OTLPEndpoint: envStr("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			ServiceName:  envStr("OTEL_SERVICE_NAME", "fleetglass"),
		},
		Fabric: FabricConfig{
			QueueSize: envInt("FLEETGLASS_QUEUE_SIZE", 64),
		},
		Watchdog: WatchdogConfig{
			Enabled:  envBool("FLEETGLASS_WATCHDOG_ENABLED", true),
			Interval: envDur("FLEETGLASS_WATCHDOG_INTERVAL", 15*time.Second),
		},
		Message: MessageConfig{
			ProcessingDelay: envDur("FLEETGLASS_PROCESSING_DELAY", 2*time.Second),
		},
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDur(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
