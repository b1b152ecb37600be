package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/matchpulse/scoring-core/internal/platform/logging"
)

const (
	EnvDev   = "dev"
	EnvStage = "stage"
	EnvProd  = "prod"
)

// Config stores runtime configuration for the service.
type Config struct {
	AppEnv         string
	ServiceName    string
	ServiceVersion string
	HTTPAddr       string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration

	DBURL           string
	DBPollInterval  time.Duration
	UseMemoryStores bool

	CORSAllowedOrigins []string
	InternalToken      string

	StatFeedEnabled      bool
	StatFeedBaseURL      string
	StatFeedToken        string
	StatFeedTimeout      time.Duration
	StatFeedPollInterval time.Duration

	PulseFeedEnabled bool
	PulseFeedBaseURL string
	PulseFeedAPIKey  string
	PulseFeedTimeout time.Duration

	IngestRatePerSecond int
	IngestRateBurst     int
	IngestWorkers       int
	DedupWindow         time.Duration
	ScheduleTTL         time.Duration
	SnapshotCacheTTL    time.Duration

	ProviderHealthInterval time.Duration

	RetryMaxAttempts    int
	RetryInitialBackoff time.Duration
	RetryMaxBackoff     time.Duration

	CircuitEnabled            bool
	CircuitFailureCount       int
	CircuitOpenTimeout        time.Duration
	CircuitHalfOpenSuccessRun int

	UptraceEnabled bool
	UptraceDSN     string

	PyroscopeEnabled       bool
	PyroscopeServerAddress string
	PyroscopeAppName       string
	PyroscopeAuthToken     string

	PprofEnabled bool
	PprofAddr    string

	LogLevel logging.Level
}

func Load() (Config, error) {
	cfg := Config{}

	appEnv, err := parseAppEnv(getEnv("APP_ENV", EnvDev))
	if err != nil {
		return Config{}, err
	}
	cfg.AppEnv = appEnv
	cfg.ServiceName = getEnv("APP_SERVICE_NAME", "scoring-core")
	cfg.ServiceVersion = getEnv("APP_SERVICE_VERSION", "dev")
	cfg.HTTPAddr = getEnv("APP_HTTP_ADDR", ":8080")

	readTimeout, err := time.ParseDuration(getEnv("APP_READ_TIMEOUT", "10s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse APP_READ_TIMEOUT: %w", err)
	}
	cfg.ReadTimeout = readTimeout

	writeTimeout, err := time.ParseDuration(getEnv("APP_WRITE_TIMEOUT", "15s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse APP_WRITE_TIMEOUT: %w", err)
	}
	cfg.WriteTimeout = writeTimeout

	cfg.DBURL = strings.TrimSpace(getEnv("DB_URL", ""))
	cfg.UseMemoryStores = cfg.DBURL == ""

	dbPollInterval, err := time.ParseDuration(getEnv("DB_POLL_INTERVAL", "250ms"))
	if err != nil {
		return Config{}, fmt.Errorf("parse DB_POLL_INTERVAL: %w", err)
	}
	if dbPollInterval <= 0 {
		return Config{}, fmt.Errorf("DB_POLL_INTERVAL must be > 0")
	}
	cfg.DBPollInterval = dbPollInterval

	cfg.CORSAllowedOrigins = parseCSV(getEnv("APP_CORS_ALLOWED_ORIGINS", "*"))
	cfg.InternalToken = strings.TrimSpace(getEnv("APP_INTERNAL_TOKEN", ""))

	statFeedEnabled, err := strconv.ParseBool(getEnv("STATFEED_ENABLED", "true"))
	if err != nil {
		return Config{}, fmt.Errorf("parse STATFEED_ENABLED: %w", err)
	}
	cfg.StatFeedEnabled = statFeedEnabled
	cfg.StatFeedBaseURL = strings.TrimRight(getEnv("STATFEED_BASE_URL", "https://api.statfeed.example.com"), "/")
	cfg.StatFeedToken = strings.TrimSpace(getEnv("STATFEED_TOKEN", ""))

	statFeedTimeout, err := time.ParseDuration(getEnv("STATFEED_TIMEOUT", "5s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse STATFEED_TIMEOUT: %w", err)
	}
	cfg.StatFeedTimeout = statFeedTimeout

	statFeedPollInterval, err := time.ParseDuration(getEnv("STATFEED_POLL_INTERVAL", "2s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse STATFEED_POLL_INTERVAL: %w", err)
	}
	cfg.StatFeedPollInterval = statFeedPollInterval

	pulseFeedEnabled, err := strconv.ParseBool(getEnv("PULSEFEED_ENABLED", "true"))
	if err != nil {
		return Config{}, fmt.Errorf("parse PULSEFEED_ENABLED: %w", err)
	}
	cfg.PulseFeedEnabled = pulseFeedEnabled
	cfg.PulseFeedBaseURL = strings.TrimRight(getEnv("PULSEFEED_BASE_URL", "https://feed.pulsefeed.example.com"), "/")
	cfg.PulseFeedAPIKey = strings.TrimSpace(getEnv("PULSEFEED_API_KEY", ""))

	pulseFeedTimeout, err := time.ParseDuration(getEnv("PULSEFEED_TIMEOUT", "5s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse PULSEFEED_TIMEOUT: %w", err)
	}
	cfg.PulseFeedTimeout = pulseFeedTimeout

	ingestRate, err := getEnvAsInt("INGEST_RATE_PER_SECOND", 200)
	if err != nil {
		return Config{}, fmt.Errorf("parse INGEST_RATE_PER_SECOND: %w", err)
	}
	if ingestRate < 1 {
		return Config{}, fmt.Errorf("INGEST_RATE_PER_SECOND must be >= 1")
	}
	cfg.IngestRatePerSecond = ingestRate

	ingestBurst, err := getEnvAsInt("INGEST_RATE_BURST", ingestRate)
	if err != nil {
		return Config{}, fmt.Errorf("parse INGEST_RATE_BURST: %w", err)
	}
	cfg.IngestRateBurst = ingestBurst

	ingestWorkers, err := getEnvAsInt("INGEST_WORKERS", 32)
	if err != nil {
		return Config{}, fmt.Errorf("parse INGEST_WORKERS: %w", err)
	}
	if ingestWorkers < 1 {
		return Config{}, fmt.Errorf("INGEST_WORKERS must be >= 1")
	}
	cfg.IngestWorkers = ingestWorkers

	dedupWindow, err := time.ParseDuration(getEnv("INGEST_DEDUP_WINDOW", "10m"))
	if err != nil {
		return Config{}, fmt.Errorf("parse INGEST_DEDUP_WINDOW: %w", err)
	}
	if dedupWindow <= 0 {
		return Config{}, fmt.Errorf("INGEST_DEDUP_WINDOW must be > 0")
	}
	cfg.DedupWindow = dedupWindow

	scheduleTTL, err := time.ParseDuration(getEnv("SCHEDULE_CACHE_TTL", "30s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse SCHEDULE_CACHE_TTL: %w", err)
	}
	if scheduleTTL <= 0 {
		return Config{}, fmt.Errorf("SCHEDULE_CACHE_TTL must be > 0")
	}
	cfg.ScheduleTTL = scheduleTTL

	snapshotTTL, err := time.ParseDuration(getEnv("SNAPSHOT_CACHE_TTL", "1m"))
	if err != nil {
		return Config{}, fmt.Errorf("parse SNAPSHOT_CACHE_TTL: %w", err)
	}
	if snapshotTTL <= 0 {
		return Config{}, fmt.Errorf("SNAPSHOT_CACHE_TTL must be > 0")
	}
	cfg.SnapshotCacheTTL = snapshotTTL

	healthInterval, err := time.ParseDuration(getEnv("PROVIDER_HEALTH_INTERVAL", "30s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse PROVIDER_HEALTH_INTERVAL: %w", err)
	}
	if healthInterval <= 0 {
		return Config{}, fmt.Errorf("PROVIDER_HEALTH_INTERVAL must be > 0")
	}
	cfg.ProviderHealthInterval = healthInterval

	retryMaxAttempts, err := getEnvAsInt("RETRY_MAX_ATTEMPTS", 3)
	if err != nil {
		return Config{}, fmt.Errorf("parse RETRY_MAX_ATTEMPTS: %w", err)
	}
	if retryMaxAttempts < 1 {
		return Config{}, fmt.Errorf("RETRY_MAX_ATTEMPTS must be >= 1")
	}
	cfg.RetryMaxAttempts = retryMaxAttempts

	retryInitialBackoff, err := time.ParseDuration(getEnv("RETRY_INITIAL_BACKOFF", "250ms"))
	if err != nil {
		return Config{}, fmt.Errorf("parse RETRY_INITIAL_BACKOFF: %w", err)
	}
	cfg.RetryInitialBackoff = retryInitialBackoff

	retryMaxBackoff, err := time.ParseDuration(getEnv("RETRY_MAX_BACKOFF", "5s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse RETRY_MAX_BACKOFF: %w", err)
	}
	cfg.RetryMaxBackoff = retryMaxBackoff

	circuitEnabled, err := strconv.ParseBool(getEnv("CIRCUIT_ENABLED", "true"))
	if err != nil {
		return Config{}, fmt.Errorf("parse CIRCUIT_ENABLED: %w", err)
	}
	cfg.CircuitEnabled = circuitEnabled

	circuitFailureCount, err := getEnvAsInt("CIRCUIT_FAILURE_COUNT", 5)
	if err != nil {
		return Config{}, fmt.Errorf("parse CIRCUIT_FAILURE_COUNT: %w", err)
	}
	if circuitFailureCount < 1 {
		return Config{}, fmt.Errorf("CIRCUIT_FAILURE_COUNT must be >= 1")
	}
	cfg.CircuitFailureCount = circuitFailureCount

	circuitOpenTimeout, err := time.ParseDuration(getEnv("CIRCUIT_OPEN_TIMEOUT", "15s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse CIRCUIT_OPEN_TIMEOUT: %w", err)
	}
	if circuitOpenTimeout <= 0 {
		return Config{}, fmt.Errorf("CIRCUIT_OPEN_TIMEOUT must be > 0")
	}
	cfg.CircuitOpenTimeout = circuitOpenTimeout

	circuitHalfOpenSuccessRun, err := getEnvAsInt("CIRCUIT_HALF_OPEN_SUCCESS_RUN", 2)
	if err != nil {
		return Config{}, fmt.Errorf("parse CIRCUIT_HALF_OPEN_SUCCESS_RUN: %w", err)
	}
	if circuitHalfOpenSuccessRun < 1 {
		return Config{}, fmt.Errorf("CIRCUIT_HALF_OPEN_SUCCESS_RUN must be >= 1")
	}
	cfg.CircuitHalfOpenSuccessRun = circuitHalfOpenSuccessRun

	uptraceEnabled, err := strconv.ParseBool(getEnv("UPTRACE_ENABLED", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("parse UPTRACE_ENABLED: %w", err)
	}
	cfg.UptraceEnabled = uptraceEnabled
	cfg.UptraceDSN = strings.TrimSpace(getEnv("UPTRACE_DSN", ""))
	if cfg.UptraceEnabled && cfg.UptraceDSN == "" {
		return Config{}, fmt.Errorf("UPTRACE_DSN is required when UPTRACE_ENABLED=true")
	}

	pyroscopeEnabled, err := strconv.ParseBool(getEnv("PYROSCOPE_ENABLED", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("parse PYROSCOPE_ENABLED: %w", err)
	}
	cfg.PyroscopeEnabled = pyroscopeEnabled
	cfg.PyroscopeServerAddress = strings.TrimSpace(getEnv("PYROSCOPE_SERVER_ADDRESS", ""))
	cfg.PyroscopeAppName = getEnv("PYROSCOPE_APP_NAME", cfg.ServiceName)
	cfg.PyroscopeAuthToken = strings.TrimSpace(getEnv("PYROSCOPE_AUTH_TOKEN", ""))
	if cfg.PyroscopeEnabled && cfg.PyroscopeServerAddress == "" {
		return Config{}, fmt.Errorf("PYROSCOPE_SERVER_ADDRESS is required when PYROSCOPE_ENABLED=true")
	}

	pprofEnabled, err := strconv.ParseBool(getEnv("PPROF_ENABLED", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("parse PPROF_ENABLED: %w", err)
	}
	cfg.PprofEnabled = pprofEnabled
	cfg.PprofAddr = getEnv("PPROF_ADDR", "localhost:6060")

	cfg.LogLevel = parseLogLevel(getEnv("APP_LOG_LEVEL", "info"))

	return cfg, nil
}

func parseAppEnv(v string) (string, error) {
	v = strings.ToLower(strings.TrimSpace(v))
	switch v {
	case EnvDev, EnvStage, EnvProd:
		return v, nil
	default:
		return "", fmt.Errorf("invalid APP_ENV %q: valid values are %s, %s, %s", v, EnvDev, EnvStage, EnvProd)
	}
}

func parseLogLevel(v string) logging.Level {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "debug":
		return logging.LevelDebug
	case "warn", "warning":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}

func parseCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if strings.TrimSpace(value) == "" {
		return fallback
	}

	return value
}

func getEnvAsInt(key string, fallback int) (int, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback, nil
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}
	return parsed, nil
}
