package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ThreatScanner/internal/domain"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg := LoadFrom("")

	if cfg.Scheduler.Interval() != time.Hour || !cfg.Scheduler.StartImmediately() {
		t.Fatalf("unexpected scheduler defaults %+v", cfg.Scheduler)
	}
	if cfg.Capacity != DefaultCapacity || cfg.Store.Driver != DriverMemory {
		t.Fatalf("unexpected defaults capacity=%d driver=%s", cfg.Capacity, cfg.Store.Driver)
	}

	sources, err := cfg.ToSources()
	if err != nil {
		t.Fatalf("default sources invalid: %v", err)
	}
	kinds := map[domain.SourceKind]bool{}
	for _, src := range sources {
		kinds[src.Kind] = true
		if src.Limit != DefaultSourceLimit {
			t.Fatalf("source %s has limit %d", src.Name, src.Limit)
		}
	}
	for _, kind := range []domain.SourceKind{domain.KindFeed, domain.KindAPI, domain.KindHTML, domain.KindSocial} {
		if !kinds[kind] {
			t.Fatalf("default sources miss kind %s", kind)
		}
	}
}

func TestLoadMergesFileAndClamps(t *testing.T) {
	path := writeConfig(t, `
scheduler:
  intervalMinutes: 1
  runOnStart: false
collection:
  limit: 99
capacity: 12
store:
  driver: SQLite
  dsn: file:threats.db
sources:
  - name: alerts
    kind: feed
    url: https://example.org/feed.xml
    category: cyber
    limit: 3
  - name: broken
    kind: carrier-pigeon
    url: https://example.org
  - name: page
    kind: html
    url: https://example.org/news
    selectors:
      item: li
      title: h3
`)

	cfg := LoadFrom(path)
	if cfg.Scheduler.IntervalMinutes != MinIntervalMinutes {
		t.Fatalf("interval not clamped: %d", cfg.Scheduler.IntervalMinutes)
	}
	if cfg.Scheduler.StartImmediately() {
		t.Fatalf("runOnStart override ignored")
	}
	if cfg.Collection.Limit != MaxSourceLimit {
		t.Fatalf("limit not clamped: %d", cfg.Collection.Limit)
	}
	if cfg.Capacity != 12 || cfg.Store.Driver != DriverSQLite || cfg.Store.DSN != "file:threats.db" {
		t.Fatalf("file values not merged: %+v", cfg.Store)
	}
	if cfg.Collection.UserAgent == "" {
		t.Fatalf("defaults lost during merge")
	}

	sources, err := cfg.ToSources()
	if err == nil || !strings.Contains(err.Error(), "carrier-pigeon") {
		t.Fatalf("expected invalid kind error, got %v", err)
	}
	if len(sources) != 2 {
		t.Fatalf("expected 2 valid sources, got %d", len(sources))
	}
	if sources[0].Category != domain.CategoryCyber || sources[0].Limit != MinSourceLimit {
		t.Fatalf("unexpected feed source %+v", sources[0])
	}
	if sources[1].Selectors.Item != "li" || sources[1].Limit != MaxSourceLimit {
		t.Fatalf("unexpected html source %+v", sources[1])
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(storeDriverEnv, "redis")
	t.Setenv(redisAddrEnv, "cache:6380")
	t.Setenv(forwardBaseURLEnv, "https://ingest.example")
	t.Setenv(telegramTokenEnv, "token")
	t.Setenv(telegramChatIDEnv, "42")
	t.Setenv(logLevelEnv, "debug")
	t.Setenv(opsAddrEnv, "127.0.0.1:9090")
	t.Setenv(otlpEndpointEnv, "collector:4317")

	cfg := LoadFrom(writeConfig(t, "store:\n  driver: sqlite\n"))
	if cfg.Store.Driver != DriverRedis || cfg.Store.Redis.Addr != "cache:6380" {
		t.Fatalf("store env overrides ignored: %+v", cfg.Store)
	}
	if cfg.Forwarding.BaseURL != "https://ingest.example" {
		t.Fatalf("forwarding override ignored")
	}
	if cfg.Notifications.Telegram.BotToken != "token" || cfg.Notifications.Telegram.ChatID != "42" {
		t.Fatalf("telegram overrides ignored")
	}
	if cfg.Logging.Level != "debug" || cfg.Server.Addr != "127.0.0.1:9090" {
		t.Fatalf("logging/server overrides ignored")
	}
	if !cfg.Tracing.Enabled || cfg.Tracing.Endpoint != "collector:4317" {
		t.Fatalf("otlp endpoint override ignored: %+v", cfg.Tracing)
	}
}

func TestTracingDefaultsAndMerge(t *testing.T) {
	cfg := LoadFrom("")
	if cfg.Tracing.Enabled || cfg.Tracing.SampleRate != 1 || cfg.Tracing.ServiceName != "threatscanner" {
		t.Fatalf("unexpected tracing defaults %+v", cfg.Tracing)
	}
	if cfg.Forwarding.RatePerSecond != 5 {
		t.Fatalf("unexpected forwarding rate %v", cfg.Forwarding.RatePerSecond)
	}

	cfg = LoadFrom(writeConfig(t, "tracing:\n  enabled: true\n  insecure: true\n  sampleRate: 7\nforwarding:\n  ratePerSecond: 0.5\n"))
	if !cfg.Tracing.Enabled || !cfg.Tracing.Insecure || cfg.Tracing.Endpoint != "localhost:4317" {
		t.Fatalf("tracing file values not merged: %+v", cfg.Tracing)
	}
	if cfg.Tracing.SampleRate != 1 {
		t.Fatalf("sample rate not bounded: %v", cfg.Tracing.SampleRate)
	}
	if cfg.Forwarding.RatePerSecond != 0.5 {
		t.Fatalf("forwarding rate not merged: %v", cfg.Forwarding.RatePerSecond)
	}
}

func TestLoadFallsBackOnBrokenFile(t *testing.T) {
	cfg := LoadFrom(writeConfig(t, "scheduler: [not a map"))
	if cfg.Scheduler.IntervalMinutes != DefaultIntervalMinutes {
		t.Fatalf("expected defaults on parse failure")
	}

	cfg = LoadFrom(filepath.Join(t.TempDir(), "missing.yaml"))
	if len(cfg.Sources) == 0 {
		t.Fatalf("expected default sources when file is missing")
	}
}

func TestSourceValidation(t *testing.T) {
	cases := map[string]SourceConfig{
		"no name":      {Kind: "feed", URL: "https://x"},
		"no url":       {Name: "x", Kind: "api"},
		"bad category": {Name: "x", Kind: "feed", URL: "https://x", Category: "gossip"},
	}
	for name, sc := range cases {
		if _, err := sc.toSource(DefaultSourceLimit); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}

	src, err := SourceConfig{Name: "netsec", Kind: "Social"}.toSource(DefaultSourceLimit)
	if err != nil || src.Kind != domain.KindSocial {
		t.Fatalf("social source without url must be valid: %v", err)
	}
}
