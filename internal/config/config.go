package config

import (
	"os"
)

// RealtimeDriver selects which live transports are wired at startup.
// "none" is valid: durable state must stay correct without any transport.
type RealtimeDriver string

const (
	RealtimeWS    RealtimeDriver = "ws"
	RealtimeRedis RealtimeDriver = "redis"
	RealtimeBoth  RealtimeDriver = "both"
	RealtimeNone  RealtimeDriver = "none"
)

type Config struct {
	ServerPort string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	JWTSecret  string

	Realtime RealtimeDriver

	// Broker transport (external pub/sub).
	RedisURL        string
	BrokerAppKey    string
	BrokerAppSecret string

	// Notification dispatch.
	NotifyDriver string // "asynq" | "none"
	NotifyQueue  string
}

func Load() *Config {
	return &Config{
		ServerPort: getEnv("SERVER_PORT", "8080"),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "messaging"),
		DBPassword: getEnv("DB_PASSWORD", "messaging_dev_password"),
		DBName:     getEnv("DB_NAME", "messaging"),
		JWTSecret:  getEnv("JWT_SECRET", "dev-secret-change-me"),

		Realtime: RealtimeDriver(getEnv("REALTIME_DRIVER", "ws")),

		RedisURL:        getEnv("REDIS_URL", "redis://localhost:6379"),
		BrokerAppKey:    getEnv("BROKER_APP_KEY", "app-key"),
		BrokerAppSecret: getEnv("BROKER_APP_SECRET", "app-secret"),

		NotifyDriver: getEnv("NOTIFY_DRIVER", "none"),
		NotifyQueue:  getEnv("NOTIFY_QUEUE", "notifications"),
	}
}

func getEnv(key, fallback string) string {
	val, exists := os.LookupEnv(key)

	if exists {
		return val
	}

	return fallback
}
