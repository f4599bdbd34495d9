package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/virtuals-lab/leaguescout/internal/platform/logging"
)

const (
	EnvDev   = "dev"
	EnvStage = "stage"
	EnvProd  = "prod"
)

// Config stores runtime configuration for the collector.
type Config struct {
	AppEnv         string
	ServiceName    string
	ServiceVersion string
	LogLevel       logging.Level

	// Collection cadence.
	TimerPollInterval      time.Duration
	MatchdayScrapeInterval time.Duration
	LiveScrapeInterval     time.Duration
	TickTimeout            time.Duration
	PreLiveThreshold       time.Duration
	MinMonitorLead         time.Duration
	MaxMonitorWait         time.Duration
	MaxLiveDuration        time.Duration
	MaxPreLiveWait         time.Duration
	MaxResultsWait         time.Duration
	StandingsCadence       int
	GoalMinuteTolerance    int
	ViewSwitchRetries      int
	FlushRetries           int

	// Run shape.
	LeaguesFile string
	OutputDir   string
	MaxWorkers  int
	Cycles      int

	// Simulated feed.
	FeedSeed                int64
	FeedCountdown           time.Duration
	FeedLiveDuration        time.Duration
	FeedFixturesPerMatchday int
	FeedTransientErrorRate  float64
	FeedMissGoalProbability float64
	FeedCircuitEnabled      bool
	FeedCircuitFailureCount int
	FeedCircuitOpenTimeout  time.Duration

	// Status endpoint.
	StatusEnabled bool
	StatusAddr    string

	// Optional run archive.
	ArchiveEnabled bool
	ArchiveDBURL   string

	// Observability.
	PprofEnabled               bool
	PprofAddr                  string
	UptraceEnabled             bool
	UptraceDSN                 string
	PyroscopeEnabled           bool
	PyroscopeServerAddress     string
	PyroscopeAppName           string
	PyroscopeAuthToken         string
	PyroscopeBasicAuthUser     string
	PyroscopeBasicAuthPassword string
	PyroscopeUploadRate        time.Duration
}

func Load() (Config, error) {
	appEnv, err := parseAppEnv(getEnv("APP_ENV", EnvDev))
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppEnv:         appEnv,
		ServiceName:    getEnv("SERVICE_NAME", "leaguescout"),
		ServiceVersion: getEnv("SERVICE_VERSION", "dev"),
		LogLevel:       parseLogLevel(getEnv("LOG_LEVEL", "info")),
		LeaguesFile:    getEnv("LEAGUES_FILE", ""),
		OutputDir:      getEnv("OUTPUT_DIR", "data"),
	}

	durations := []struct {
		key      string
		fallback string
		dst      *time.Duration
	}{
		{"TIMER_POLL_INTERVAL", "5s", &cfg.TimerPollInterval},
		{"MATCHDAY_SCRAPE_INTERVAL", "30s", &cfg.MatchdayScrapeInterval},
		{"LIVE_SCRAPE_INTERVAL", "15s", &cfg.LiveScrapeInterval},
		{"TICK_TIMEOUT", "10s", &cfg.TickTimeout},
		{"PRELIVE_THRESHOLD", "10s", &cfg.PreLiveThreshold},
		{"MIN_MONITOR_LEAD", "60s", &cfg.MinMonitorLead},
		{"MAX_MONITOR_WAIT", "30m", &cfg.MaxMonitorWait},
		{"MAX_LIVE_DURATION", "90m", &cfg.MaxLiveDuration},
		{"MAX_PRELIVE_WAIT", "5m", &cfg.MaxPreLiveWait},
		{"MAX_RESULTS_WAIT", "2m", &cfg.MaxResultsWait},
	}
	for _, d := range durations {
		value, err := time.ParseDuration(getEnv(d.key, d.fallback))
		if err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", d.key, err)
		}
		if value <= 0 {
			return Config{}, fmt.Errorf("%s must be > 0", d.key)
		}
		*d.dst = value
	}
	if cfg.TickTimeout > cfg.MatchdayScrapeInterval {
		return Config{}, fmt.Errorf("TICK_TIMEOUT must not exceed MATCHDAY_SCRAPE_INTERVAL")
	}

	cfg.StandingsCadence, err = getEnvAsInt("STANDINGS_CADENCE", 5)
	if err != nil {
		return Config{}, fmt.Errorf("parse STANDINGS_CADENCE: %w", err)
	}
	if cfg.StandingsCadence <= 0 {
		return Config{}, fmt.Errorf("STANDINGS_CADENCE must be > 0")
	}
	cfg.GoalMinuteTolerance, err = getEnvAsInt("GOAL_MINUTE_TOLERANCE", 2)
	if err != nil {
		return Config{}, fmt.Errorf("parse GOAL_MINUTE_TOLERANCE: %w", err)
	}
	cfg.ViewSwitchRetries, err = getEnvAsInt("VIEW_SWITCH_RETRIES", 3)
	if err != nil {
		return Config{}, fmt.Errorf("parse VIEW_SWITCH_RETRIES: %w", err)
	}
	cfg.FlushRetries, err = getEnvAsInt("FLUSH_RETRIES", 2)
	if err != nil {
		return Config{}, fmt.Errorf("parse FLUSH_RETRIES: %w", err)
	}
	cfg.MaxWorkers, err = getEnvAsInt("MAX_WORKERS", 0)
	if err != nil {
		return Config{}, fmt.Errorf("parse MAX_WORKERS: %w", err)
	}
	if cfg.MaxWorkers < 0 {
		return Config{}, fmt.Errorf("MAX_WORKERS must be >= 0")
	}
	cfg.Cycles, err = getEnvAsInt("CYCLES", 1)
	if err != nil {
		return Config{}, fmt.Errorf("parse CYCLES: %w", err)
	}
	if cfg.Cycles <= 0 {
		return Config{}, fmt.Errorf("CYCLES must be > 0")
	}

	feedSeed, err := getEnvAsInt("FEED_SEED", 0)
	if err != nil {
		return Config{}, fmt.Errorf("parse FEED_SEED: %w", err)
	}
	cfg.FeedSeed = int64(feedSeed)
	cfg.FeedCountdown, err = time.ParseDuration(getEnv("FEED_COUNTDOWN", "45s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse FEED_COUNTDOWN: %w", err)
	}
	cfg.FeedLiveDuration, err = time.ParseDuration(getEnv("FEED_LIVE_DURATION", "90s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse FEED_LIVE_DURATION: %w", err)
	}
	cfg.FeedFixturesPerMatchday, err = getEnvAsInt("FEED_FIXTURES_PER_MATCHDAY", 4)
	if err != nil {
		return Config{}, fmt.Errorf("parse FEED_FIXTURES_PER_MATCHDAY: %w", err)
	}
	if cfg.FeedFixturesPerMatchday <= 0 {
		return Config{}, fmt.Errorf("FEED_FIXTURES_PER_MATCHDAY must be > 0")
	}
	cfg.FeedTransientErrorRate, err = getEnvAsFloat("FEED_TRANSIENT_ERROR_RATE", 0.05)
	if err != nil {
		return Config{}, fmt.Errorf("parse FEED_TRANSIENT_ERROR_RATE: %w", err)
	}
	cfg.FeedMissGoalProbability, err = getEnvAsFloat("FEED_MISS_GOAL_PROBABILITY", 0.15)
	if err != nil {
		return Config{}, fmt.Errorf("parse FEED_MISS_GOAL_PROBABILITY: %w", err)
	}
	for _, rate := range []struct {
		key   string
		value float64
	}{
		{"FEED_TRANSIENT_ERROR_RATE", cfg.FeedTransientErrorRate},
		{"FEED_MISS_GOAL_PROBABILITY", cfg.FeedMissGoalProbability},
	} {
		if rate.value < 0 || rate.value >= 1 {
			return Config{}, fmt.Errorf("%s must be in [0, 1)", rate.key)
		}
	}

	cfg.FeedCircuitEnabled, err = getEnvAsBool("FEED_CIRCUIT_ENABLED", true)
	if err != nil {
		return Config{}, fmt.Errorf("parse FEED_CIRCUIT_ENABLED: %w", err)
	}
	cfg.FeedCircuitFailureCount, err = getEnvAsInt("FEED_CIRCUIT_FAILURE_COUNT", 5)
	if err != nil {
		return Config{}, fmt.Errorf("parse FEED_CIRCUIT_FAILURE_COUNT: %w", err)
	}
	cfg.FeedCircuitOpenTimeout, err = time.ParseDuration(getEnv("FEED_CIRCUIT_OPEN_TIMEOUT", "15s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse FEED_CIRCUIT_OPEN_TIMEOUT: %w", err)
	}

	cfg.StatusEnabled, err = getEnvAsBool("STATUS_ENABLED", true)
	if err != nil {
		return Config{}, fmt.Errorf("parse STATUS_ENABLED: %w", err)
	}
	cfg.StatusAddr = getEnv("STATUS_ADDR", ":8090")

	cfg.ArchiveEnabled, err = getEnvAsBool("ARCHIVE_ENABLED", false)
	if err != nil {
		return Config{}, fmt.Errorf("parse ARCHIVE_ENABLED: %w", err)
	}
	cfg.ArchiveDBURL = strings.TrimSpace(getEnv("ARCHIVE_DB_URL", ""))
	if cfg.ArchiveEnabled && cfg.ArchiveDBURL == "" {
		return Config{}, fmt.Errorf("ARCHIVE_DB_URL is required when ARCHIVE_ENABLED=true")
	}

	cfg.PprofEnabled, err = getEnvAsBool("PPROF_ENABLED", false)
	if err != nil {
		return Config{}, fmt.Errorf("parse PPROF_ENABLED: %w", err)
	}
	cfg.PprofAddr = getEnv("PPROF_ADDR", "localhost:6060")

	cfg.UptraceEnabled, err = getEnvAsBool("UPTRACE_ENABLED", false)
	if err != nil {
		return Config{}, fmt.Errorf("parse UPTRACE_ENABLED: %w", err)
	}
	cfg.UptraceDSN = strings.TrimSpace(getEnv("UPTRACE_DSN", ""))
	if cfg.UptraceEnabled && cfg.UptraceDSN == "" {
		return Config{}, fmt.Errorf("UPTRACE_DSN is required when UPTRACE_ENABLED=true")
	}

	cfg.PyroscopeEnabled, err = getEnvAsBool("PYROSCOPE_ENABLED", false)
	if err != nil {
		return Config{}, fmt.Errorf("parse PYROSCOPE_ENABLED: %w", err)
	}
	cfg.PyroscopeServerAddress = strings.TrimSpace(getEnv("PYROSCOPE_SERVER_ADDRESS", ""))
	if cfg.PyroscopeEnabled && cfg.PyroscopeServerAddress == "" {
		return Config{}, fmt.Errorf("PYROSCOPE_SERVER_ADDRESS is required when PYROSCOPE_ENABLED=true")
	}
	cfg.PyroscopeAppName = getEnv("PYROSCOPE_APP_NAME", cfg.ServiceName)
	cfg.PyroscopeAuthToken = getEnv("PYROSCOPE_AUTH_TOKEN", "")
	cfg.PyroscopeBasicAuthUser = getEnv("PYROSCOPE_BASIC_AUTH_USER", "")
	cfg.PyroscopeBasicAuthPassword = getEnv("PYROSCOPE_BASIC_AUTH_PASSWORD", "")
	cfg.PyroscopeUploadRate, err = time.ParseDuration(getEnv("PYROSCOPE_UPLOAD_RATE", "15s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse PYROSCOPE_UPLOAD_RATE: %w", err)
	}

	return cfg, nil
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

func parseAppEnv(v string) (string, error) {
	v = strings.ToLower(strings.TrimSpace(v))
	switch v {
	case EnvDev, EnvStage, EnvProd:
		return v, nil
	default:
		return "", fmt.Errorf("invalid APP_ENV %q: valid values are %s, %s, %s", v, EnvDev, EnvStage, EnvProd)
	}
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

	out, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}

	return out, nil
}

func getEnvAsFloat(key string, fallback float64) (float64, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback, nil
	}

	out, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, err
	}

	return out, nil
}

func getEnvAsBool(key string, fallback bool) (bool, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback, nil
	}

	return strconv.ParseBool(value)
}
