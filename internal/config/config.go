package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds configuration for the exchange server
type Config struct {
	// Service name
	ServiceName string

	// HTTP server port (orders, book, tick, websocket)
	HTTPPort int

	// Health server port
	HealthPort int

	// Log level: debug, info, warn, error
	LogLevel string

	// Data directory for the sqlite trade store and the pebble journal
	DataDir string

	// Instruments traded on this exchange (comma-separated symbols)
	Instruments []string

	// Synthetic market maker settings, applied per instrument
	MakerEnabled    bool
	MakerSeed       int64
	MakerMid        int64
	MakerHalfSpread int64
	MakerQuantity   int64
	MakerWalk       int64

	// Request journal for deterministic replay on restart
	JournalEnabled bool

	// Kafka trade/tick event publishing
	KafkaEnabled bool
	KafkaBrokers string
}

// LoadConfig loads configuration from environment variables with defaults
func LoadConfig(serviceName string) *Config {
	return &Config{
		ServiceName:     serviceName,
		HTTPPort:        getEnvAsInt("PORT_HTTP", 8080),
		HealthPort:      getEnvAsInt("PORT_HEALTH", 8081),
		LogLevel:        getEnvAsString("LOG_LEVEL", "info"),
		DataDir:         getEnvAsString("DATA_DIR", "./data"),
		Instruments:     splitCSV(getEnvAsString("INSTRUMENTS", "ABC,BCD")),
		MakerEnabled:    getEnvAsBool("MAKER_ENABLED", true),
		MakerSeed:       getEnvAsInt64("MAKER_SEED", 42),
		MakerMid:        getEnvAsInt64("MAKER_MID", 10000),
		MakerHalfSpread: getEnvAsInt64("MAKER_HALF_SPREAD", 5),
		MakerQuantity:   getEnvAsInt64("MAKER_QUANTITY", 100),
		MakerWalk:       getEnvAsInt64("MAKER_WALK", 20),
		JournalEnabled:  getEnvAsBool("JOURNAL_ENABLED", true),
		KafkaEnabled:    getEnvAsBool("KAFKA_ENABLED", false),
		KafkaBrokers:    getEnvAsString("KAFKA_BROKERS", "127.0.0.1:9092"),
	}
}

// HTTPAddr returns the HTTP server address
func (c *Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// HealthAddr returns the health server address
func (c *Config) HealthAddr() string {
	return fmt.Sprintf(":%d", c.HealthPort)
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnvAsString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
