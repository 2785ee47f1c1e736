package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// DefaultGSISEndpoint is the public RgWsPublic SOAP port.
const DefaultGSISEndpoint = "https://www1.gsis.gr/webtax2/wsgsis/RgWsPublic/RgWsPublicPort"

// Server captures HTTP server level configuration.
type Server struct {
	Addr          string
	Env           string
	LogLevel      string
	RegulatedMode bool
	GSIS          GSIS
}

// GSIS configures the registry web service client.
type GSIS struct {
	Endpoint string
	Username string
	Password string
	Timeout  time.Duration

	// Breaker opens after BreakerFailures consecutive transport failures and
	// closes after BreakerSuccesses consecutive successful trial calls.
	BreakerFailures  int
	BreakerSuccesses int
	BreakerCooldown  time.Duration
}

// HasCredentials reports whether registry lookups can be authenticated.
func (g GSIS) HasCredentials() bool {
	return g.Username != "" && g.Password != ""
}

// Load reads an optional .env file and builds the configuration from the
// environment. A missing .env file is not an error.
func Load(envFiles ...string) (Server, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Server{}, fmt.Errorf("load %s: %w", f, err)
		}
	}
	return FromEnv()
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() (Server, error) {
	timeout, err := durationEnv("GSIS_TIMEOUT", 10*time.Second)
	if err != nil {
		return Server{}, err
	}
	cooldown, err := durationEnv("GSIS_BREAKER_COOLDOWN", 30*time.Second)
	if err != nil {
		return Server{}, err
	}
	failures, err := intEnv("GSIS_BREAKER_FAILURES", 5)
	if err != nil {
		return Server{}, err
	}
	successes, err := intEnv("GSIS_BREAKER_SUCCESSES", 2)
	if err != nil {
		return Server{}, err
	}

	return Server{
		Addr:          stringEnv("TAXID_ADDR", ":8080"),
		Env:           stringEnv("TAXID_ENV", "dev"),
		LogLevel:      stringEnv("TAXID_LOG_LEVEL", "info"),
		RegulatedMode: os.Getenv("REGULATED_MODE") == "true",
		GSIS: GSIS{
			Endpoint:         stringEnv("GSIS_ENDPOINT", DefaultGSISEndpoint),
			Username:         os.Getenv("GSIS_USERNAME"),
			Password:         os.Getenv("GSIS_PASSWORD"),
			Timeout:          timeout,
			BreakerFailures:  failures,
			BreakerSuccesses: successes,
			BreakerCooldown:  cooldown,
		},
	}, nil
}

func stringEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s: must be positive, got %s", key, v)
	}
	return d, nil
}

func intEnv(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%s: must be positive, got %d", key, n)
	}
	return n, nil
}
