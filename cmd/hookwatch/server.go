package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/gin-gonic/gin"
	"github.com/tinytelemetry/hookwatch/internal/backup"
	"github.com/tinytelemetry/hookwatch/internal/duckdb"
	"github.com/tinytelemetry/hookwatch/internal/httpserver"
	"github.com/tinytelemetry/hookwatch/internal/metrics"
	"golang.org/x/sync/errgroup"
)

// runServer receives webhooks and serves the event feed until SIGINT/SIGTERM.
func runServer(cfg appConfig) error {
	cleanupLogger := configureRuntimeLogger(cfg.LogPath)
	defer cleanupLogger()

	store, err := duckdb.NewStore(cfg.DBPath, cfg.QueryTimeout)
	if err != nil {
		return fmt.Errorf("failed to initialize DuckDB: %w", err)
	}
	defer store.Close()

	// Start retention cleaner for automatic event expiry
	retentionCleaner := duckdb.NewRetentionCleaner(store, duckdb.RetentionConfig{
		RetentionDays: cfg.RetentionDays,
	})
	if retentionCleaner != nil {
		defer retentionCleaner.Stop()
	}

	backupManager, err := backup.NewManager(store, backup.Config{
		Enabled:    cfg.BackupEnabled,
		Interval:   cfg.BackupInterval,
		LocalDir:   cfg.BackupLocalDir,
		KeepLast:   cfg.BackupKeepLast,
		BucketURL:  cfg.BackupBucketURL,
		S3Endpoint: cfg.BackupS3Endpoint,
		S3Region:   cfg.BackupS3Region,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize backups: %w", err)
	}
	if backupManager != nil {
		defer backupManager.Stop()
	}

	var m *metrics.Metrics
	if cfg.MetricsEnabled {
		m = metrics.New()
	}

	apiServer := httpserver.NewServer(store, httpserver.Config{
		Addr:          cfg.APIAddr,
		WebhookSecret: cfg.WebhookSecret,
		DefaultLimit:  cfg.EventsDefaultLimit,
		MaxLimit:      cfg.EventsMaxLimit,
		CORSOrigins:   cfg.CORSOrigins,
		Metrics:       m,
	})
	gin.SetMode(gin.ReleaseMode)
	listener, err := apiServer.Listen()
	if err != nil {
		return fmt.Errorf("failed to start API server: %w", err)
	}
	log.Printf("server: listening on %s", cfg.APIAddr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Println("\nShutting down gracefully... (press Ctrl+C again to force)")
		cancel()

		deadline := time.NewTimer(10 * time.Second)
		defer deadline.Stop()

		select {
		case <-sigCh:
			fmt.Println("\nForce shutdown.")
		case <-deadline.C:
			fmt.Println("Shutdown timed out, forcing exit.")
		}
		os.Exit(1)
	}()

	printStartupBanner(cfg)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return apiServer.Serve(gctx, listener)
	})

	// Retention and backup loops stop in the deferred calls once Wait
	// returns; the signal goroutine (if still waiting) dies with the process.
	err = g.Wait()
	signal.Stop(sigCh)
	if err != nil {
		log.Printf("server: exited with error: %v", err)
		return fmt.Errorf("API server failed: %w", err)
	}
	return nil
}

func configureRuntimeLogger(logPath string) func() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if logPath == "" {
		log.SetOutput(os.Stderr)
		return func() {}
	}
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		log.SetOutput(os.Stderr)
		return func() {}
	}

	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.SetOutput(os.Stderr)
		return func() {}
	}

	log.SetOutput(f)
	return func() {
		_ = f.Close()
	}
}

func printStartupBanner(cfg appConfig) {
	fmt.Println(renderBanner(cfg))
}

func renderBanner(cfg appConfig) string {
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	green := lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	cyan := lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	yellow := lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	bold := lipgloss.NewStyle().Bold(true)

	check := green.Render("●")
	dot := dim.Render("●")
	row := func(on bool, label, value string) string {
		mark := dot
		if on {
			mark = check
		}
		return fmt.Sprintf("    %s  %-14s %s", mark, label, value)
	}

	logo := cyan.Bold(true).Render(`
    ╦ ╦╔═╗╔═╗╦╔═╦ ╦╔═╗╔╦╗╔═╗╦ ╦
    ╠═╣║ ║║ ║╠╩╗║║║╠═╣ ║ ║  ╠═╣
    ╩ ╩╚═╝╚═╝╩ ╩╚╩╝╩ ╩ ╩ ╚═╝╩ ╩`)

	separator := dim.Render("    ─────────────────────────────────")

	lines := []string{"", logo, "    " + dim.Render("v"+version), "", separator, ""}

	lines = append(lines, bold.Render("    Endpoints"), "")
	lines = append(lines, row(true, "Webhook", cyan.Render("POST http://"+cfg.APIAddr+"/webhook")))
	lines = append(lines, row(true, "Events", cyan.Render("GET  http://"+cfg.APIAddr+"/events")))
	if cfg.MetricsEnabled {
		lines = append(lines, row(true, "Metrics", cyan.Render("GET  http://"+cfg.APIAddr+"/metrics")))
	} else {
		lines = append(lines, row(false, "Metrics", dim.Render("disabled")))
	}
	if cfg.WebhookSecret != "" {
		lines = append(lines, row(true, "Signatures", dim.Render("verified")))
	} else {
		lines = append(lines, row(false, "Signatures", dim.Render("not checked (no webhook-secret)")))
	}
	lines = append(lines, "")

	lines = append(lines, bold.Render("    Storage"), "")
	if cfg.DBPath != "" {
		lines = append(lines, row(true, "Storage", dim.Render(shortenPath(cfg.DBPath))))
	} else {
		lines = append(lines, row(true, "Storage", dim.Render("in-memory")))
	}
	if cfg.RetentionDays > 0 {
		lines = append(lines, row(true, "Retention", dim.Render(fmt.Sprintf("%d days", cfg.RetentionDays))))
	} else {
		lines = append(lines, row(false, "Retention", dim.Render("keep forever")))
	}
	if cfg.BackupEnabled {
		lines = append(lines, row(true, "Snapshots", dim.Render(shortenPath(cfg.BackupLocalDir))))
	} else {
		lines = append(lines, row(false, "Snapshots", dim.Render("disabled")))
	}
	lines = append(lines, "")

	lines = append(lines, bold.Render("    Config"), "")
	if cfg.ConfigPath != "" {
		lines = append(lines, row(true, "Config File", dim.Render(shortenPath(cfg.ConfigPath))))
	} else {
		lines = append(lines, row(false, "Config File", dim.Render("default (no file)")))
	}

	lines = append(lines, "", separator, "")
	lines = append(lines, "    "+dim.Render("Press ")+yellow.Render("Ctrl+C")+dim.Render(" to stop"), "")

	return strings.Join(lines, "\n")
}

func shortenPath(path string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if strings.HasPrefix(path, home) {
		return "~" + path[len(home):]
	}
	return path
}
