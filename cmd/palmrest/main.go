package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ayusman/palmrest/internal/app"
	"github.com/ayusman/palmrest/internal/config"
	"github.com/ayusman/palmrest/internal/logging"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	addr := flag.String("addr", "", "HTTP listen address (overrides config)")
	cameraID := flag.Int("camera", 0, "camera device ID (overrides config)")
	trayOn := flag.Bool("tray", false, "show the system tray switch (overrides config)")
	logLevel := flag.String("log-level", "", "debug, info, warn or error (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "palmrest: %v\n", err)
		os.Exit(1)
	}

	// Only flags given on the command line override the file.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "addr":
			cfg.Addr = *addr
		case "camera":
			cfg.Camera.DeviceID = *cameraID
		case "tray":
			cfg.Tray = *trayOn
		case "log-level":
			cfg.LogLevel = *logLevel
		}
	})
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "palmrest: %v\n", err)
		os.Exit(1)
	}

	log, err := logging.New(cfg.LogLevel, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "palmrest: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := app.New(cfg, log)
	log.WithField("url", a.URL()).Info("palmrest ready")

	t := a.Tray()
	if t == nil {
		if err := a.Run(ctx); err != nil {
			log.WithError(err).Fatal("server failed")
		}
		return
	}

	// The tray owns the main goroutine; the server runs beside it.
	ctx, cancel := context.WithCancel(ctx)
	t.OnQuit(cancel)

	done := make(chan error, 1)
	go func() {
		done <- a.Run(ctx)
		t.Quit()
	}()

	t.Run()
	cancel()

	if err := <-done; err != nil {
		log.WithError(err).Fatal("server failed")
	}
}
