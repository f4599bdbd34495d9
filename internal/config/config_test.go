package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.TimerPollInterval != 5*time.Second {
		t.Fatalf("unexpected TimerPollInterval: %s", cfg.TimerPollInterval)
	}
	if cfg.MatchdayScrapeInterval != 30*time.Second {
		t.Fatalf("unexpected MatchdayScrapeInterval: %s", cfg.MatchdayScrapeInterval)
	}
	if cfg.LiveScrapeInterval != 15*time.Second {
		t.Fatalf("unexpected LiveScrapeInterval: %s", cfg.LiveScrapeInterval)
	}
	if cfg.MaxLiveDuration != 90*time.Minute {
		t.Fatalf("unexpected MaxLiveDuration: %s", cfg.MaxLiveDuration)
	}
	if cfg.StandingsCadence != 5 {
		t.Fatalf("unexpected StandingsCadence: %d", cfg.StandingsCadence)
	}
	if cfg.MaxMonitorWait != 30*time.Minute {
		t.Fatalf("unexpected MaxMonitorWait: %s", cfg.MaxMonitorWait)
	}
	if cfg.FlushRetries != 2 {
		t.Fatalf("unexpected FlushRetries: %d", cfg.FlushRetries)
	}
	if cfg.OutputDir != "data" {
		t.Fatalf("unexpected OutputDir: %q", cfg.OutputDir)
	}
	if cfg.Cycles != 1 {
		t.Fatalf("unexpected Cycles: %d", cfg.Cycles)
	}
}

func TestLoad_AppEnvValidation(t *testing.T) {
	t.Setenv("APP_ENV", "invalid")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for invalid APP_ENV")
	}
}

func TestLoad_RejectsNonPositiveIntervals(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("LIVE_SCRAPE_INTERVAL", "0s")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for LIVE_SCRAPE_INTERVAL=0s")
	}
}

func TestLoad_RejectsTickTimeoutAboveInterval(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("TICK_TIMEOUT", "45s")
	t.Setenv("MATCHDAY_SCRAPE_INTERVAL", "30s")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error when TICK_TIMEOUT exceeds MATCHDAY_SCRAPE_INTERVAL")
	}
}

func TestLoad_RejectsOutOfRangeRates(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("FEED_MISS_GOAL_PROBABILITY", "1.5")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for FEED_MISS_GOAL_PROBABILITY=1.5")
	}
}

func TestLoad_ArchiveRequiresDBURLWhenEnabled(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("ARCHIVE_ENABLED", "true")
	t.Setenv("ARCHIVE_DB_URL", "")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error when ARCHIVE_ENABLED=true without ARCHIVE_DB_URL")
	}
}

func TestLoad_UptraceRequiresDSNWhenEnabled(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("UPTRACE_ENABLED", "true")
	t.Setenv("UPTRACE_DSN", "")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error when UPTRACE_ENABLED=true without UPTRACE_DSN")
	}
}

func TestLoad_PyroscopeConfigParsing(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("PYROSCOPE_ENABLED", "true")
	t.Setenv("PYROSCOPE_SERVER_ADDRESS", "http://localhost:4040")
	t.Setenv("PYROSCOPE_UPLOAD_RATE", "30s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if !cfg.PyroscopeEnabled {
		t.Fatalf("expected PyroscopeEnabled=true")
	}
	if cfg.PyroscopeServerAddress != "http://localhost:4040" {
		t.Fatalf("unexpected PyroscopeServerAddress: %q", cfg.PyroscopeServerAddress)
	}
	if cfg.PyroscopeUploadRate != 30*time.Second {
		t.Fatalf("unexpected PyroscopeUploadRate: %s", cfg.PyroscopeUploadRate)
	}
	if cfg.PyroscopeAppName != "leaguescout" {
		t.Fatalf("unexpected PyroscopeAppName: %q", cfg.PyroscopeAppName)
	}
}

func TestLoadLeagues_Defaults(t *testing.T) {
	leagues, err := LoadLeagues("")
	if err != nil {
		t.Fatalf("load leagues: %v", err)
	}
	if len(leagues) != 4 {
		t.Fatalf("expected 4 built-in leagues, got %d", len(leagues))
	}
	if leagues[0].Code != "EL" || leagues[0].SelectionIndex != 0 {
		t.Fatalf("unexpected first league: %+v", leagues[0])
	}
}

func TestLoadLeagues_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leagues.yaml")
	content := `leagues:
  - code: EL
    name: English League
    selection_index: 0
  - code: SL
    name: Spanish League
    selection_index: 1
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	leagues, err := LoadLeagues(path)
	if err != nil {
		t.Fatalf("load leagues: %v", err)
	}
	if len(leagues) != 2 {
		t.Fatalf("expected 2 leagues, got %d", len(leagues))
	}
	if leagues[1].Name != "Spanish League" {
		t.Fatalf("unexpected league: %+v", leagues[1])
	}
}

func TestLoadLeagues_RejectsDuplicateCodes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leagues.yaml")
	content := `leagues:
  - code: EL
    name: English League
    selection_index: 0
  - code: EL
    name: Another League
    selection_index: 1
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadLeagues(path); err == nil {
		t.Fatalf("expected error for duplicate league codes")
	}
}

func TestLoadLeagues_RejectsLowercaseCode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leagues.yaml")
	content := `leagues:
  - code: el
    name: English League
    selection_index: 0
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadLeagues(path); err == nil {
		t.Fatalf("expected error for a lowercase league code")
	}
}
