package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/abelbrown/stationreviews/internal/backend"
	"github.com/abelbrown/stationreviews/internal/config"
	"github.com/abelbrown/stationreviews/internal/feed"
	"github.com/abelbrown/stationreviews/internal/httpapi"
	"github.com/abelbrown/stationreviews/internal/local"
	"github.com/abelbrown/stationreviews/internal/logging"
	"github.com/abelbrown/stationreviews/internal/otel"
	"github.com/abelbrown/stationreviews/internal/review"
	"github.com/abelbrown/stationreviews/internal/store"
	"github.com/abelbrown/stationreviews/internal/ui"
)

type browseCmd struct {
	DB          string `help:"Browse a local SQLite database instead of the API." type:"path" env:"STATIONREVIEWS_DB"`
	User        string `help:"Username to act as in local mode." env:"STATIONREVIEWS_USERNAME"`
	Staff       bool   `help:"Act as a privileged user in local mode."`
	PageSize    int    `help:"Reviews per page (overrides config)." env:"STATIONREVIEWS_PAGE_SIZE"`
	MetricsAddr string `help:"Serve Prometheus metrics on this address while running." name:"metrics-addr"`
	LogLevel    string `help:"Log level (debug, info, warn, error)."`
	Trace       bool   `help:"Record every key press in the event journal." env:"STATIONREVIEWS_TRACE"`
}

func (b *browseCmd) Run(g *globals) error {
	cfg, err := g.load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if b.DB != "" {
		cfg.Local.DBPath = b.DB
	}
	if b.User != "" {
		cfg.Local.Username = b.User
	}
	if b.Staff {
		cfg.Local.Privileged = true
	}
	if b.PageSize > 0 {
		cfg.Feed.PageSize = b.PageSize
	}
	if b.LogLevel != "" {
		cfg.UI.LogLevel = b.LogLevel
	}

	dataDir := cfg.DataPath()
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	if err := logging.Init(dataDir); err != nil {
		return err
	}
	defer logging.Close()
	logging.Logger.SetLevel(logging.ParseLevel(cfg.UI.LogLevel))

	otel.SetTraceEnabled(b.Trace)
	journal, journalFile, err := otel.OpenFile(filepath.Join(dataDir, "events.jsonl"))
	if err != nil {
		return err
	}
	defer journalFile.Close()
	defer journal.Close()
	ring := otel.NewRingBuffer(256)
	journal.SetRingBuffer(ring)
	journal.Info(otel.KindStartup, "main", "session started")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src, closeSrc, err := openBackend(cfg)
	if err != nil {
		return err
	}
	defer closeSrc()

	if b.MetricsAddr != "" {
		srv := &http.Server{Addr: b.MetricsAddr, Handler: promhttp.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				logging.Error("metrics server", "addr", b.MetricsAddr, "err", err)
			}
		}()
		defer srv.Close()
	}

	ctrl := feed.New(ctx, src, feed.Config{PageSize: cfg.Feed.PageSize, Journal: journal})
	defer ctrl.Close()

	app := ui.NewAppWithConfig(ui.AppConfig{
		Controller:     ctrl,
		LoadStartup:    startupLoader(ctx, src, cfg.Timeout()),
		Ring:           ring,
		Journal:        journal,
		ConfirmDeletes: cfg.UI.ConfirmDeletes,
	})

	logging.Info("starting TUI", "local", cfg.Local.DBPath != "", "page_size", cfg.Feed.PageSize)
	if _, err := tea.NewProgram(app, tea.WithAltScreen()).Run(); err != nil {
		journal.Error(otel.KindError, "main", err)
		return err
	}
	journal.Info(otel.KindShutdown, "main", "session ended")
	return nil
}

// openBackend picks local mode when a database path is configured and the
// REST client otherwise.
func openBackend(cfg *config.Config) (backend.Backend, func(), error) {
	if cfg.Local.DBPath != "" {
		st, err := store.Open(cfg.Local.DBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("open database: %w", err)
		}
		who := review.Identity{Username: cfg.Local.Username, Privileged: cfg.Local.Privileged}
		logging.Info("local mode", "db", cfg.Local.DBPath, "user", who.Username, "staff", who.Privileged)
		return local.New(st, who, local.WithStatsDelay(cfg.StatsDelay())), func() { st.Close() }, nil
	}

	client, err := httpapi.New(httpapi.Options{
		BaseURL:       cfg.API.BaseURL,
		Token:         cfg.API.AccessToken,
		Timeout:       cfg.Timeout(),
		RatePerSecond: cfg.API.RatePerSecond,
		Burst:         cfg.API.Burst,
		MaxRetries:    cfg.API.MaxRetries,
	})
	if err != nil {
		return nil, nil, err
	}
	logging.Info("api mode", "base_url", cfg.API.BaseURL, "logged_in", cfg.API.AccessToken != "")
	return client, func() {}, nil
}

// startupLoader fetches the station list and the caller's identity
// concurrently. A failed identity lookup degrades to anonymous browsing.
func startupLoader(ctx context.Context, src backend.Backend, timeout time.Duration) func() tea.Cmd {
	return func() tea.Cmd {
		return func() tea.Msg {
			ctx, cancel := context.WithTimeout(ctx, 2*timeout)
			defer cancel()

			var msg ui.StartupLoaded
			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				stations, err := src.ListStations(gctx)
				msg.Stations = stations
				return err
			})
			g.Go(func() error {
				who, err := src.CurrentIdentity(gctx)
				if err != nil && !errors.Is(err, context.Canceled) {
					msg.IdentityErr = err
					return nil
				}
				msg.Identity = who
				return nil
			})
			msg.Err = g.Wait()
			return msg
		}
	}
}
