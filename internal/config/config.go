package config // package config loads application configuration from environment variables

import (
	"log"     // log reports configuration errors and halts execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
	"time"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  Nested structs group the settings of one
// subsystem so they can be handed to it without the rest.
type Config struct {
	Env       string // application environment (e.g. "dev", "prod")
	Port      string // HTTP port to listen on
	JWTSecret string // secret used to verify JWTs
	LogLevel  string // DEBUG, INFO, WARN or ERROR
	AMQPURL   string // RabbitMQ URL; empty disables booking events

	DB        DBConfig
	Redis     RedisConfig
	Booking   BookingConfig
	Cache     CacheConfig
	RateLimit RateLimitConfig
}

// DBConfig holds the MySQL connection settings.
type DBConfig struct {
	User     string
	Pass     string
	Host     string
	Port     string
	Name     string
	Retries  int           // connection attempts at startup
	RetryGap time.Duration // pause between attempts
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
	return Config{
		Env:       must("APP_ENV"),
		Port:      must("APP_PORT"),
		JWTSecret: must("JWT_SECRET"),
		LogLevel:  envStr("LOG_LEVEL", "INFO"),
		AMQPURL:   os.Getenv("RABBITMQ_URL"),
		DB:        loadDB(),
		Redis:     LoadRedisConfig(),
		Booking:   LoadBookingConfig(),
		Cache:     LoadCacheConfig(),
		RateLimit: LoadRateLimitConfig(),
	}
}

// LoadBackend reads only what is needed to reach the stores.  Tools that
// do not serve HTTP use it so they need no port or JWT secret.
func LoadBackend() Config {
	return Config{
		Env:      envStr("APP_ENV", "dev"),
		LogLevel: envStr("LOG_LEVEL", "WARN"),
		AMQPURL:  os.Getenv("RABBITMQ_URL"),
		DB:       loadDB(),
		Redis:    LoadRedisConfig(),
		Booking:  LoadBookingConfig(),
		Cache:    LoadCacheConfig(),
	}
}

func loadDB() DBConfig {
	return DBConfig{
		User:     must("DB_USER"),
		Pass:     os.Getenv("DB_PASS"), // empty allowed
		Host:     must("DB_HOST"),
		Port:     must("DB_PORT"),
		Name:     must("DB_NAME"),
		Retries:  envInt("DB_CONNECT_RETRIES", 10),
		RetryGap: envDur("DB_CONNECT_RETRY_GAP", 2*time.Second),
	}
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	switch v {
	case "1", "true", "TRUE", "True", "yes", "YES", "on", "ON":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "off", "OFF":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return d
}

func envFloat(k string, d float64) float64 {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	return d
}
