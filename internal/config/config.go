package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Audit log levels for DbMessageLog.
const (
	MessageLogOff         = 0
	MessageLogSignificant = 1
	MessageLogAll         = 2
)

// Config defines the central system configuration.
type Config struct {
	HTTP struct {
		Port   string `yaml:"port" env:"OCPP_HTTP_PORT"`
		APIKey string `yaml:"apiKey" env:"OCPP_API_KEY"`
	} `yaml:"http"`
	Database struct {
		DSN string `yaml:"dsn" env:"OCPP_POSTGRES_DSN"`
	} `yaml:"database"`
	Redis struct {
		Addr     string `yaml:"addr" env:"OCPP_REDIS_ADDR"`
		Password string `yaml:"password" env:"OCPP_REDIS_PASSWORD"`
	} `yaml:"redis"`
	Protocol struct {
		DenyConcurrentTx  bool `yaml:"denyConcurrentTx" env:"OCPP_DENY_CONCURRENT_TX"`
		DbMessageLog      int  `yaml:"dbMessageLog" env:"OCPP_DB_MESSAGE_LOG"`
		HeartbeatInterval int  `yaml:"heartbeatInterval" env:"OCPP_HEARTBEAT_INTERVAL"`
	} `yaml:"protocol"`
	WebSocket struct {
		PingIntervalSeconds int `yaml:"pingIntervalSeconds" env:"OCPP_PING_INTERVAL"`
		WriteTimeoutSeconds int `yaml:"writeTimeoutSeconds" env:"OCPP_WRITE_TIMEOUT"`
		CallTimeoutSeconds  int `yaml:"callTimeoutSeconds" env:"OCPP_CALL_TIMEOUT"`
	} `yaml:"websocket"`
}

// Load reads config from file and environment and validates required fields.
func Load() (*Config, error) {
	cfg := &Config{}
	cfg.HTTP.Port = "8180"
	cfg.Protocol.DbMessageLog = MessageLogOff
	cfg.Protocol.HeartbeatInterval = 300
	cfg.WebSocket.PingIntervalSeconds = 30
	cfg.WebSocket.WriteTimeoutSeconds = 15
	cfg.WebSocket.CallTimeoutSeconds = 30

	if err := load(cfg); err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.Database.DSN) == "" {
		return nil, errors.New("config: database DSN is required")
	}
	if cfg.Protocol.DbMessageLog < MessageLogOff || cfg.Protocol.DbMessageLog > MessageLogAll {
		return nil, fmt.Errorf("config: dbMessageLog must be 0, 1 or 2, got %d", cfg.Protocol.DbMessageLog)
	}

	return cfg, nil
}

// HTTPAddress returns :port style address.
func (c *Config) HTTPAddress() string {
	port := strings.TrimSpace(c.HTTP.Port)
	if port == "" {
		port = "8180"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return fmt.Sprintf(":%s", port)
}

// PingInterval returns websocket ping interval.
func (c *Config) PingInterval() time.Duration {
	if c.WebSocket.PingIntervalSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.WebSocket.PingIntervalSeconds) * time.Second
}

// WriteTimeout returns websocket write timeout.
func (c *Config) WriteTimeout() time.Duration {
	if c.WebSocket.WriteTimeoutSeconds <= 0 {
		return 15 * time.Second
	}
	return time.Duration(c.WebSocket.WriteTimeoutSeconds) * time.Second
}

// CallTimeout returns how long a server-initiated call waits for its answer.
func (c *Config) CallTimeout() time.Duration {
	if c.WebSocket.CallTimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.WebSocket.CallTimeoutSeconds) * time.Second
}
