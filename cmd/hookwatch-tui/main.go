package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/tinytelemetry/hookwatch/internal/feed"
	"github.com/tinytelemetry/hookwatch/internal/tui"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
	goVersion = "unknown"
)

func main() {
	var configPath string
	var eventsURL string
	var showVersion bool
	var once bool

	flag.StringVar(&configPath, "config", "", "config file (default is $HOME/.config/hookwatch/config.yml)")
	flag.StringVar(&eventsURL, "url", "", "override the events endpoint")
	flag.BoolVar(&showVersion, "version", false, "print version information")
	flag.BoolVar(&once, "once", false, "fetch once, print the feed and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("Hookwatch Viewer - GitHub Webhook Events\n")
		fmt.Printf("  Version:    %s\n", version)
		fmt.Printf("  Commit:     %s\n", commit)
		fmt.Printf("  Built:      %s\n", buildTime)
		fmt.Printf("  Go version: %s\n", goVersion)
		return
	}

	cfg, err := loadViewerConfig(configPath, eventsURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if once {
		err = printOnce(cfg)
	} else {
		err = runTUI(cfg)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// printOnce fetches the feed a single time and writes it to stdout.
func printOnce(cfg viewerConfig) error {
	client := feed.NewClient(cfg.EventsURL, cfg.RequestTimeout)
	ctx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
	defer cancel()

	events, err := client.FetchEvents(ctx)
	if err != nil {
		return err
	}
	fmt.Println(tui.RenderEvents(events, 0))
	return nil
}

func runTUI(cfg viewerConfig) error {
	cleanupLogger := configureLogger(cfg.LogPath)
	defer cleanupLogger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var p *tea.Program
	poller := feed.NewPoller(feed.NewClient(cfg.EventsURL, cfg.RequestTimeout), feed.Config{
		Interval:       cfg.PollInterval,
		RequestTimeout: cfg.RequestTimeout,
		OnUpdate: func(s feed.Snapshot) {
			p.Send(tui.EventsMsg(s))
		},
	})
	defer poller.Unmount()

	p = tea.NewProgram(tui.NewModel(ctx, poller, cfg.EventsURL), tea.WithAltScreen(), tea.WithContext(ctx))
	log.Printf("viewer: polling %s every %s", cfg.EventsURL, cfg.PollInterval)

	if _, err := p.Run(); err != nil {
		if strings.Contains(err.Error(), "TTY") || strings.Contains(err.Error(), "/dev/tty") {
			return fmt.Errorf("TUI requires a real terminal (use -once for scripts)")
		}
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}

// configureLogger sends log output to a file so it never draws over the
// alternate screen. It falls back to stderr when the file cannot be opened.
func configureLogger(path string) func() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		log.SetOutput(os.Stderr)
		return func() {}
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.SetOutput(os.Stderr)
		return func() {}
	}

	log.SetOutput(f)
	return func() {
		_ = f.Close()
	}
}
