package app

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"ThreatScanner/internal/config"
)

const feedBody = `<?xml version="1.0"?>
<rss version="2.0"><channel><title>t</title>
<item><title>Major ransomware outbreak cripples hospital network</title><link>https://example.org/a</link><description>Clinics diverted patients overnight.</description><pubDate>Wed, 04 Mar 2026 08:00:00 +0000</pubDate></item>
<item><title>Celebrity red carpet recap</title><link>https://example.org/b</link><description>Entertainment news.</description></item>
</channel></rss>`

func TestRunOnceWiresCollectorsStoreAndForwarder(t *testing.T) {
	feed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(feedBody))
	}))
	defer feed.Close()

	var forwarded atomic.Int32
	ingest := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		forwarded.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "id": "remote"})
	}))
	defer ingest.Close()

	cfg := config.LoadFrom("")
	cfg.Server.Addr = ""
	cfg.Collection.DelayMillis = 0
	cfg.Capacity = 5
	cfg.Forwarding.BaseURL = ingest.URL
	cfg.Notifications.Telegram = config.TelegramConfig{}
	cfg.Sources = []config.SourceConfig{
		{Name: "local-feed", Kind: "feed", URL: feed.URL, Category: "News"},
		{Name: "bogus", Kind: "telepathy", URL: feed.URL},
	}

	ctx := context.Background()
	application, err := New(ctx, cfg, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	report, err := application.RunOnce(ctx)
	if err != nil {
		t.Fatalf("run once: %v", err)
	}
	if report.Collected != 2 || report.Selected != 1 || report.Forwarded != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
	if forwarded.Load() != 1 {
		t.Fatalf("expected one forwarded record, got %d", forwarded.Load())
	}

	slots, err := application.Slots(ctx)
	if err != nil {
		t.Fatalf("slots: %v", err)
	}
	if len(slots) != 1 || slots[0].Record.Title != "Major ransomware outbreak cripples hospital network" {
		t.Fatalf("unexpected slots %+v", slots)
	}
}

func TestNewRejectsUnknownStore(t *testing.T) {
	cfg := config.LoadFrom("")
	cfg.Store.Driver = "floppy"
	if _, err := New(context.Background(), cfg, slog.New(slog.DiscardHandler)); err == nil {
		t.Fatalf("expected unknown driver error")
	}

	cfg.Store.Driver = config.DriverPostgres
	cfg.Store.DSN = ""
	if _, err := New(context.Background(), cfg, slog.New(slog.DiscardHandler)); err == nil {
		t.Fatalf("expected missing dsn error")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	cfg := config.LoadFrom("")
	cfg.Server.Addr = "127.0.0.1:0"
	cfg.Sources = []config.SourceConfig{{Name: "none", Kind: "social", Community: "netsec"}}
	off := false
	cfg.Scheduler.RunOnStart = &off

	application, err := New(context.Background(), cfg, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- application.Run(ctx) }()
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}
}
