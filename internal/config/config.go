package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	HTTPAddr    string
	PostgresDSN string
	LogLevel    string

	AdminAPIKey string
	KeryxEnv    string

	WitnessDir       string
	WitnessProviders string
	WitnessLogURL    string
	WitnessTimeoutMS int

	WitnessPrivateKeyBase64  string
	WitnessPrivateKeySeedHex string

	PolicyBundlePath string
	PolicyBundleID   string

	CeremonyThreshold int
	CeremonyAttestors int

	VerifyCacheTTLSeconds int

	RateLimitRequests      int
	RateLimitWindowSeconds int
	RateLimitFailClosed    bool
	RateLimitMaxKeys       int

	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

func FromEnv() Config {
	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	return Config{
		HTTPAddr:                 addr,
		PostgresDSN:              os.Getenv("POSTGRES_DSN"),
		LogLevel:                 envDefault("LOG_LEVEL", "info"),
		AdminAPIKey:              os.Getenv("ADMIN_API_KEY"),
		KeryxEnv:                 os.Getenv("KERYX_ENV"),
		WitnessDir:               envDefault("WITNESS_DIR", "witness"),
		WitnessProviders:         os.Getenv("WITNESS_PROVIDERS"),
		WitnessLogURL:            os.Getenv("WITNESS_LOG_URL"),
		WitnessTimeoutMS:         envIntDefault("WITNESS_TIMEOUT_MS", 2000),
		WitnessPrivateKeyBase64:  os.Getenv("WITNESS_PRIVATE_KEY_BASE64"),
		WitnessPrivateKeySeedHex: os.Getenv("WITNESS_PRIVATE_KEY_SEED_HEX"),
		PolicyBundlePath:         os.Getenv("POLICY_BUNDLE_PATH"),
		PolicyBundleID:           os.Getenv("POLICY_BUNDLE_ID"),
		CeremonyThreshold:        envIntDefault("CEREMONY_THRESHOLD", 3),
		CeremonyAttestors:        envIntDefault("CEREMONY_ATTESTORS", 5),
		VerifyCacheTTLSeconds:    envIntDefault("VERIFY_CACHE_TTL_SECONDS", 300),
		RateLimitRequests:        envIntDefault("RATE_LIMIT_REQUESTS", 0),
		RateLimitWindowSeconds:   envIntDefault("RATE_LIMIT_WINDOW_SECONDS", 60),
		RateLimitFailClosed:      envBoolDefault("RATE_LIMIT_FAIL_CLOSED", false),
		RateLimitMaxKeys:         envIntDefault("RATE_LIMIT_MAX_KEYS", 10000),
		RedisAddr:                os.Getenv("REDIS_ADDR"),
		RedisPassword:            os.Getenv("REDIS_PASSWORD"),
		RedisDB:                  envIntDefault("REDIS_DB", 0),
	}
}

func envDefault(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func envIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.Atoi(v)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func envBoolDefault(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	switch v {
	case "1", "true", "TRUE", "True", "yes", "YES", "Yes":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "No":
		return false
	default:
		return def
	}
}

func (c Config) WitnessTimeout() time.Duration {
	if c.WitnessTimeoutMS <= 0 {
		return 2 * time.Second
	}
	return time.Duration(c.WitnessTimeoutMS) * time.Millisecond
}

func (c Config) VerifyCacheTTL() time.Duration {
	if c.VerifyCacheTTLSeconds <= 0 {
		return 0
	}
	return time.Duration(c.VerifyCacheTTLSeconds) * time.Second
}
