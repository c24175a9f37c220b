package config

import (
	"os"
	"strings"
	"time"
)

// Config captures everything the server wires at startup. Values come from
// the environment so main stays lean.
type Config struct {
	Addr          string
	JWTSigningKey string

	// DatabaseURL selects the PostgreSQL store when set; the in-memory store
	// is used otherwise.
	DatabaseURL string

	Redis RedisConfig

	// KafkaBrokers enables the accepted-event feed when non-empty.
	KafkaBrokers []string
	KafkaTopic   string

	// DisablePrivacy turns off the family privacy transform for every role.
	// This is the reference behavior's single global toggle; intended for
	// non-production verification only.
	DisablePrivacy bool

	// HandshakeTimeout bounds token verification and the first message on a
	// new connection.
	HandshakeTimeout time.Duration
}

type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	addr := os.Getenv("TRACK_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	jwtSigningKey := os.Getenv("TRACK_JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Development default - must be overridden in production.
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	var brokers []string
	if raw := os.Getenv("TRACK_KAFKA_BROKERS"); raw != "" {
		for _, b := range strings.Split(raw, ",") {
			if b = strings.TrimSpace(b); b != "" {
				brokers = append(brokers, b)
			}
		}
	}
	topic := os.Getenv("TRACK_KAFKA_TOPIC")
	if topic == "" {
		topic = "transport-events"
	}

	handshake := 10 * time.Second
	if raw := os.Getenv("TRACK_HANDSHAKE_TIMEOUT"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			handshake = d
		}
	}

	return Config{
		Addr:          addr,
		JWTSigningKey: jwtSigningKey,
		DatabaseURL:   os.Getenv("TRACK_DATABASE_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("TRACK_REDIS_URL"),
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		KafkaBrokers:     brokers,
		KafkaTopic:       topic,
		DisablePrivacy:   os.Getenv("TRACK_DISABLE_PRIVACY") == "true",
		HandshakeTimeout: handshake,
	}
}
