package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/example/reviewplanner/internal/scheduler"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database.Driver != "sqlite3" || cfg.Database.DSN != "data/reviewplanner.db" {
		t.Errorf("database = %+v", cfg.Database)
	}
	if cfg.Scheduling.MaxItemsPerDay != 20 || cfg.Scheduling.MaxLookaheadDays != 365 || cfg.Scheduling.PlanDays != 7 {
		t.Errorf("scheduling = %+v", cfg.Scheduling)
	}
	wantReminder := scheduler.ReminderConfig{Enabled: true, StartHour: 8, EndHour: 22, EveryMinutes: 60}
	if diff := cmp.Diff(wantReminder, cfg.Reminder); diff != "" {
		t.Errorf("reminder mismatch (-want +got):\n%s", diff)
	}
	if cfg.SM2.InitialEaseFactor != 2.5 || cfg.SM2.MinEaseFactor != 1.3 {
		t.Errorf("sm2 = %+v", cfg.SM2)
	}
	if cfg.Redis.TTL != 10*time.Minute {
		t.Errorf("redis ttl = %v", cfg.Redis.TTL)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "text" {
		t.Errorf("log = %+v", cfg.Log)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SCHEDULING_MAX_ITEMS_PER_DAY", "5")
	t.Setenv("SCHEDULING_TIMEZONE", "Europe/Berlin")
	t.Setenv("REDIS_TTL", "90s")
	t.Setenv("SM2_DISABLE_JITTER", "true")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Scheduling.MaxItemsPerDay != 5 {
		t.Errorf("MaxItemsPerDay = %d, want 5", cfg.Scheduling.MaxItemsPerDay)
	}
	loc, err := cfg.Scheduling.Location()
	if err != nil || loc.String() != "Europe/Berlin" {
		t.Errorf("Location = %v, %v", loc, err)
	}
	if cfg.Redis.TTL != 90*time.Second {
		t.Errorf("TTL = %v", cfg.Redis.TTL)
	}
	if !cfg.SM2.DisableJitter {
		t.Error("DisableJitter not applied")
	}
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte("LOG_LEVEL=debug\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("LOG_LEVEL") })

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Level = %q, want debug", cfg.Log.Level)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"zero capacity", "SCHEDULING_MAX_ITEMS_PER_DAY", "0"},
		{"zero plan days", "SCHEDULING_PLAN_DAYS", "0"},
		{"bad timezone", "SCHEDULING_TIMEZONE", "Mars/Olympus"},
		{"bad sm2", "SM2_MIN_EASE_FACTOR", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			if _, err := Load(""); err == nil {
				t.Errorf("Load accepted %s=%s", tt.key, tt.val)
			}
		})
	}
}

func TestLoadMissingEnvFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.env")); err == nil {
		t.Error("Load accepted a missing explicit env file")
	}
}
