package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tinytelemetry/hookwatch/internal/model"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadViewerConfig_Defaults(t *testing.T) {
	cfg, err := loadViewerConfig(filepath.Join(t.TempDir(), "missing.yml"), "")
	if err != nil {
		t.Fatalf("loadViewerConfig: %v", err)
	}
	if cfg.EventsURL != model.DefaultEventsURL {
		t.Errorf("events-url = %q, want %q", cfg.EventsURL, model.DefaultEventsURL)
	}
	if cfg.PollInterval != 15*time.Second {
		t.Errorf("poll-interval = %s, want 15s", cfg.PollInterval)
	}
	if cfg.RequestTimeout != model.DefaultRequestTimeout {
		t.Errorf("request-timeout = %s", cfg.RequestTimeout)
	}
	if !strings.HasSuffix(cfg.LogPath, filepath.Join("hookwatch", "hookwatch-tui.log")) {
		t.Errorf("log-path = %q", cfg.LogPath)
	}
}

func TestLoadViewerConfig_FileValues(t *testing.T) {
	path := writeConfig(t, "events-url: http://hooks.internal:8080/events\npoll-interval: 30s\nrequest-timeout: 5s\n")

	cfg, err := loadViewerConfig(path, "")
	if err != nil {
		t.Fatalf("loadViewerConfig: %v", err)
	}
	if cfg.EventsURL != "http://hooks.internal:8080/events" {
		t.Errorf("events-url = %q", cfg.EventsURL)
	}
	if cfg.PollInterval != 30*time.Second || cfg.RequestTimeout != 5*time.Second {
		t.Errorf("intervals = %s/%s", cfg.PollInterval, cfg.RequestTimeout)
	}
}

func TestLoadViewerConfig_EnvOverride(t *testing.T) {
	t.Setenv("HOOKWATCH_POLL_INTERVAL", "1m")
	cfg, err := loadViewerConfig(filepath.Join(t.TempDir(), "missing.yml"), "")
	if err != nil {
		t.Fatalf("loadViewerConfig: %v", err)
	}
	if cfg.PollInterval != time.Minute {
		t.Errorf("poll-interval = %s, want 1m", cfg.PollInterval)
	}
}

func TestLoadViewerConfig_TimeoutClampedToInterval(t *testing.T) {
	path := writeConfig(t, "poll-interval: 2s\nrequest-timeout: 10s\n")
	cfg, err := loadViewerConfig(path, "")
	if err != nil {
		t.Fatalf("loadViewerConfig: %v", err)
	}
	if cfg.RequestTimeout != 2*time.Second {
		t.Errorf("request-timeout = %s, want 2s", cfg.RequestTimeout)
	}
}

func TestLoadViewerConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "bad scheme", body: "events-url: ftp://localhost/events\n"},
		{name: "no host", body: "events-url: http:///events\n"},
		{name: "zero interval", body: "poll-interval: 0s\n"},
		{name: "broken yaml", body: "events-url: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := loadViewerConfig(writeConfig(t, tt.body), ""); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestLoadViewerConfig_URLOverride(t *testing.T) {
	path := writeConfig(t, "events-url: http://hooks.internal:8080/events\n")

	cfg, err := loadViewerConfig(path, "https://feed.example.com/events")
	if err != nil {
		t.Fatalf("loadViewerConfig: %v", err)
	}
	if cfg.EventsURL != "https://feed.example.com/events" {
		t.Errorf("events-url = %q, want the override", cfg.EventsURL)
	}

	for _, bad := range []string{"localhost:5000/events", "ftp://localhost/events", "http:///events"} {
		if _, err := loadViewerConfig(path, bad); err == nil {
			t.Errorf("override %q: expected error", bad)
		}
	}
}
