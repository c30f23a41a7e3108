package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/petems/capture-inventory/internal/app"
	"github.com/petems/capture-inventory/internal/broker"
	"github.com/petems/capture-inventory/internal/config"
	"github.com/petems/capture-inventory/internal/device"
	"github.com/petems/capture-inventory/internal/inventory"
	"github.com/petems/capture-inventory/internal/logging"
	"github.com/petems/capture-inventory/internal/tray"
)

var (
	// Version is set via ldflags at build time
	Version = "dev"
	// Commit is set via ldflags at build time
	Commit = "unknown"
)

func main() {
	list := flag.Bool("list", false, "print capture devices and exit")
	kindFlag := flag.String("kind", "", "restrict -list to one kind (audio, video or display)")
	headless := flag.Bool("headless", false, "watch devices and log changes without the tray UI")
	initConfig := flag.Bool("init-config", false, "write the effective config to the config path and exit")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("capture-inventory %s (%s)\n", Version, Commit)
		return
	}

	// Load config from XDG/Library/AppData
	cfg, err := config.Load()
	if err != nil {
		// Use default logger if config fails to load
		log := logging.New()
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	if *initConfig {
		if err := cfg.Save(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write config: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(config.Path())
		return
	}

	if *list {
		log := logging.NewConsole(cfg.LogLevel)
		if err := runList(cfg, *kindFlag, log); err != nil {
			log.Fatal().Err(err).Msg("Failed to list devices")
		}
		return
	}

	// Initialize logger with configured level
	log := logging.NewWithLevel(cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc := app.NewService(cfg, log)
	if err := svc.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start device inventory")
	}

	log.Info().Str("version", Version).Msg("capture-inventory starting...")

	// Setup shutdown signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	if *headless {
		runHeadless(ctx, svc, sigChan, log)
		return
	}

	go func() {
		<-sigChan
		log.Info().Msg("Shutting down...")
		shutdown(svc, log)
		os.Exit(0)
	}()

	// Start tray UI - MUST run on main thread
	if err := tray.New(svc, cfg.DeviceKinds(), log, Version, Commit).Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("Tray error")
	}
}

func runList(cfg *config.Config, kindName string, log zerolog.Logger) error {
	kinds := cfg.DeviceKinds()
	if kindName != "" {
		kind, err := device.ParseKind(kindName)
		if err != nil {
			return err
		}
		kinds = []device.Kind{kind}
	}

	// One-shot listing has no use for hotplug hints
	cfg.Hotplug.Enabled = false
	cfg.Kinds = kindNames(kinds)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	svc := app.NewService(cfg, log)
	defer shutdown(svc, log)

	if err := svc.Start(ctx); err != nil {
		return err
	}

	for _, kind := range kinds {
		devices, err := svc.ListDevices(ctx, kind)
		if err != nil {
			return fmt.Errorf("list %s devices: %w", kind, err)
		}
		fmt.Printf("%s devices (%d):\n", kind, len(devices))
		for _, d := range devices {
			marker := " "
			if d.Default {
				marker = "*"
			}
			if d.Width > 0 {
				fmt.Printf("  %s %s\t%s\t%dx%d @%gx\n", marker, d.Name, d.ID, d.Width, d.Height, d.Scale)
				continue
			}
			fmt.Printf("  %s %s\t%s\n", marker, d.Name, d.ID)
		}
	}
	return nil
}

func runHeadless(ctx context.Context, svc *inventory.Service, sigChan <-chan os.Signal, log zerolog.Logger) {
	sub, err := svc.Subscribe()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to subscribe to device changes")
	}

	for _, kind := range svc.Kinds() {
		snap := svc.Snapshot(kind)
		log.Info().Str("kind", kind.String()).Int("devices", snap.Len()).Msg("Initial inventory")
	}

	for {
		select {
		case n, ok := <-sub.C():
			if !ok {
				return
			}
			logNotification(log, n)
		case <-sigChan:
			log.Info().Msg("Shutting down...")
			shutdown(svc, log)
			return
		case <-ctx.Done():
			shutdown(svc, log)
			return
		}
	}
}

func logNotification(log zerolog.Logger, n broker.Notification) {
	switch n.Type {
	case broker.Change:
		for _, d := range n.Change.Added {
			log.Info().Str("kind", n.Kind.String()).Str("id", d.ID).Str("name", d.Name).Msg("Device added")
		}
		for _, d := range n.Change.Removed {
			log.Info().Str("kind", n.Kind.String()).Str("id", d.ID).Str("name", d.Name).Msg("Device removed")
		}
	case broker.ProbeFailed:
		log.Warn().Err(n.Err).Str("kind", n.Kind.String()).Msg("Device probe failed")
	}
}

func shutdown(svc *inventory.Service, log zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := svc.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Shutdown error")
	}
}

func kindNames(kinds []device.Kind) []string {
	out := make([]string, 0, len(kinds))
	for _, k := range kinds {
		out = append(out, k.String())
	}
	return out
}
