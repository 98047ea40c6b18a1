// Command reviewsd serves the station review API from a SQLite database.
//
// It is the development stand-in for the production service: same routes,
// same JSON, JWT login, and a configurable delay on the stats endpoint.
//
// Usage:
//
//	reviewsd --db reviews.db --addr :8000
//	reviewsd --db :memory: --seed testdata/seed.yaml --stats-delay 2s
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/abelbrown/stationreviews/internal/analysis"
	"github.com/abelbrown/stationreviews/internal/devserver"
	"github.com/abelbrown/stationreviews/internal/logging"
	"github.com/abelbrown/stationreviews/internal/store"
)

type cli struct {
	Addr       string        `help:"Listen address." default:":8000" env:"REVIEWSD_ADDR"`
	DB         string        `help:"SQLite database path (:memory: for a throwaway)." default:"reviews.db" env:"REVIEWSD_DB"`
	Secret     string        `help:"JWT signing secret." env:"REVIEWSD_SECRET"`
	TokenTTL   time.Duration `help:"Access token lifetime." default:"1h" env:"REVIEWSD_TOKEN_TTL"`
	StatsDelay time.Duration `help:"Artificial delay before computing station stats." default:"1500ms" env:"REVIEWSD_STATS_DELAY"`
	Origins    []string      `help:"Allowed CORS origins." env:"REVIEWSD_ORIGINS"`
	Seed       string        `help:"YAML fixture to load at startup." type:"existingfile"`
	LogLevel   string        `help:"Log level." default:"info" enum:"debug,info,warn,error" env:"REVIEWSD_LOG_LEVEL"`
	EnvFile    string        `help:"dotenv file read before flags." default:".env" name:"env-file"`
}

func main() {
	// Flags read their env defaults at parse time, so the dotenv file has to
	// be loaded first.
	envFile := ".env"
	for i, a := range os.Args {
		if a == "--env-file" && i+1 < len(os.Args) {
			envFile = os.Args[i+1]
		}
	}
	_ = godotenv.Load(envFile)

	var c cli
	kong.Parse(&c,
		kong.Name("reviewsd"),
		kong.Description("Station review API server backed by SQLite."),
		kong.UsageOnError(),
	)

	logging.InitWriter(os.Stderr, logging.ParseLevel(c.LogLevel))

	if c.Secret == "" {
		c.Secret = "dev-secret-change-me"
		logging.Warn("no REVIEWSD_SECRET set, using the development secret")
	}

	st, err := store.Open(c.DB)
	if err != nil {
		logging.Fatal("open database", "path", c.DB, "err", err)
	}
	defer st.Close()

	if c.Seed != "" {
		if err := seedFrom(st, c.Seed); err != nil {
			logging.Fatal("seed", "path", c.Seed, "err", err)
		}
	}

	srv, err := devserver.New(devserver.Options{
		Store:          st,
		Secret:         []byte(c.Secret),
		AccessTTL:      c.TokenTTL,
		StatsDelay:     c.StatsDelay,
		AllowedOrigins: c.Origins,
	})
	if err != nil {
		logging.Fatal("build server", "err", err)
	}

	httpSrv := &http.Server{
		Addr:              c.Addr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logging.Info("listening", "addr", c.Addr, "db", c.DB, "stats_delay", c.StatsDelay)
		if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logging.Error("server stopped", "err", err)
		os.Exit(1)
	}
	logging.Info("shut down")
}

func seedFrom(st *store.Store, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	fx, err := store.ReadFixture(f)
	if err != nil {
		return err
	}
	res, err := st.Seed(context.Background(), fx, analysis.Tag, time.Now())
	if err != nil {
		return err
	}
	logging.Info("seeded", "stations", res.Stations, "users", res.Users,
		"reviews", res.Reviews, "skipped", res.Skipped)
	return nil
}
