package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	AppEnv   string
	LogLevel slog.Level
	HTTPAddr string

	Driver          string
	DSN             string
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	LogSQL          bool

	// DeviceAPIKey may be empty; ingestion then answers 500 until it is set.
	DeviceAPIKey        string
	DeviceAuthHeaderKey string
	SessionJWTSecret    string
	SessionTokenTTL     time.Duration
	CORSOrigins         []string

	MQTTEnabled  bool
	MQTTBroker   string
	MQTTPort     int
	MQTTClientID string
	MQTTTopic    string
}

// lookupFunc returns the raw value of key and whether it was set.
type lookupFunc func(key string) (string, bool)

// Load reads the optional YAML file named by CONFIG_FILE, then the environment.
// The file is a flat map of the same keys as the environment; environment
// values win.
func Load() (Config, error) {
	file := map[string]string{}
	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		var err error
		file, err = readFile(path)
		if err != nil {
			return Config{}, err
		}
	}
	return load(func(key string) (string, bool) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return v, true
		}
		v, ok := file[key]
		return strings.TrimSpace(v), ok && strings.TrimSpace(v) != ""
	})
}

func readFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %q: %w", path, err)
	}
	out := map[string]string{}
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parsing config file %q: %w", path, err)
	}
	return out, nil
}

func load(lookup lookupFunc) (Config, error) {
	get := func(key, def string) string {
		if v, ok := lookup(key); ok {
			return v
		}
		return def
	}

	appEnv := get("APP_ENV", "dev")
	switch appEnv {
	case "dev", "prod":
	default:
		return Config{}, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", appEnv)
	}

	level, err := parseLogLevel(get("LOG_LEVEL", "info"))
	if err != nil {
		return Config{}, err
	}

	driver := get("DB_DRIVER", "sqlite3")
	switch driver {
	case "sqlite3", "postgres":
	default:
		return Config{}, fmt.Errorf("invalid DB_DRIVER %q (allowed: sqlite3, postgres)", driver)
	}
	dsn := get("DB_DSN", "")
	if driver == "postgres" && dsn == "" {
		return Config{}, fmt.Errorf("DB_DSN is required when DB_DRIVER is postgres")
	}

	maxOpenConns, err := parseInt("DB_MAX_OPEN_CONNS", get("DB_MAX_OPEN_CONNS", "1"))
	if err != nil {
		return Config{}, err
	}
	maxIdleConns, err := parseInt("DB_MAX_IDLE_CONNS", get("DB_MAX_IDLE_CONNS", "1"))
	if err != nil {
		return Config{}, err
	}
	connMaxLifetime, err := parseDuration("DB_CONN_MAX_LIFETIME", get("DB_CONN_MAX_LIFETIME", "0s"))
	if err != nil {
		return Config{}, err
	}
	logSQL, err := parseBool("DB_LOG_SQL", get("DB_LOG_SQL", "false"))
	if err != nil {
		return Config{}, err
	}

	sessionTTL, err := parseDuration("SESSION_TOKEN_TTL", get("SESSION_TOKEN_TTL", "24h"))
	if err != nil {
		return Config{}, err
	}
	if sessionTTL <= 0 {
		return Config{}, fmt.Errorf("invalid SESSION_TOKEN_TTL %q: must be positive", get("SESSION_TOKEN_TTL", ""))
	}

	mqttEnabled, err := parseBool("MQTT_ENABLED", get("MQTT_ENABLED", "false"))
	if err != nil {
		return Config{}, err
	}
	mqttBroker := get("MQTT_BROKER", "")
	if mqttEnabled && mqttBroker == "" {
		return Config{}, fmt.Errorf("MQTT_BROKER is required when MQTT_ENABLED is true")
	}
	mqttPort, err := parseInt("MQTT_PORT", get("MQTT_PORT", "1883"))
	if err != nil {
		return Config{}, err
	}
	if mqttPort < 1 || mqttPort > 65535 {
		return Config{}, fmt.Errorf("invalid MQTT_PORT %d (allowed: 1-65535)", mqttPort)
	}

	return Config{
		AppEnv:              appEnv,
		LogLevel:            level,
		HTTPAddr:            get("HTTP_ADDR", ":8080"),
		Driver:              driver,
		DSN:                 dsn,
		Path:                get("SQLITE_PATH", "data/tempmon.db"),
		MaxOpenConns:        maxOpenConns,
		MaxIdleConns:        maxIdleConns,
		ConnMaxLifetime:     connMaxLifetime,
		LogSQL:              logSQL,
		DeviceAPIKey:        get("DEVICE_API_KEY", ""),
		DeviceAuthHeaderKey: get("DEVICE_AUTH_HEADER_KEY", "X-DEVICE-API-KEY"),
		SessionJWTSecret:    get("SESSION_JWT_SECRET", ""),
		SessionTokenTTL:     sessionTTL,
		CORSOrigins:         splitList(get("CORS_ORIGIN", "")),
		MQTTEnabled:         mqttEnabled,
		MQTTBroker:          mqttBroker,
		MQTTPort:            mqttPort,
		MQTTClientID:        get("MQTT_CLIENT_ID", "tempmon-server"),
		MQTTTopic:           get("MQTT_TOPIC", "tempmon/readings/+"),
	}, nil
}

func parseInt(key, s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return n, nil
}

func parseBool(key, s string) (bool, error) {
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return b, nil
}

func parseDuration(key, s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}
