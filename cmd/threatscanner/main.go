package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"ThreatScanner/internal/app"
	"ThreatScanner/internal/config"
	"ThreatScanner/internal/logging"
)

func main() {
	once := flag.Bool("once", false, "run a single collection cycle and exit")
	flag.Parse()

	cfg := config.Load()
	logger := logging.NewWithFormat(os.Stdout, cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("application setup failed", "error", err)
		os.Exit(1)
	}

	if *once {
		report, err := application.RunOnce(ctx)
		if err != nil {
			logger.Error("cycle failed", "error", err)
			os.Exit(1)
		}
		logger.Info("cycle complete",
			"collected", report.Collected,
			"selected", report.Selected,
			"forwarded", report.Forwarded,
		)
		return
	}

	if err := application.Run(ctx); err != nil {
		logger.Error("application stopped", "error", err)
		os.Exit(1)
	}
}
