// Command revctl is the maintenance CLI for a station review database.
//
// Usage:
//
//	revctl seed fixture.yaml                Load stations, users and reviews
//	revctl add-stations "Rajiv Chowk" ...   Add stations by name
//	revctl add-stations --file lines.txt    Add stations from name,line,location lines
//	revctl import-csv --station X data.csv  Import scraped reviews
//	revctl stats                            Per-station statistics
//	revctl events -f                        Follow the TUI event journal
package main

import (
	"os"
	"path/filepath"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"

	"github.com/abelbrown/stationreviews/internal/config"
	"github.com/abelbrown/stationreviews/internal/logging"
	"github.com/abelbrown/stationreviews/internal/store"
)

type globals struct {
	DB       string `help:"SQLite database path." default:"reviews.db" env:"STATIONREVIEWS_DB" type:"path"`
	LogLevel string `help:"Log level." default:"warn" enum:"debug,info,warn,error"`
}

// open opens the configured database.
func (g *globals) open() (*store.Store, error) {
	return store.Open(g.DB)
}

type cli struct {
	globals

	Seed        seedCmd        `cmd:"" help:"Load a YAML fixture of stations, users and reviews."`
	AddStations addStationsCmd `cmd:"" name:"add-stations" help:"Add stations by name or from a file."`
	ImportCSV   importCSVCmd   `cmd:"" name:"import-csv" help:"Import reviews for one station from a CSV export."`
	Stats       statsCmd       `cmd:"" help:"Print review statistics per station."`
	Events      eventsCmd      `cmd:"" help:"Show the TUI event journal."`
}

// journalPath is where the TUI writes its event journal.
func journalPath() string {
	cfg, err := config.Load()
	if err != nil {
		return filepath.Join(config.Dir(), "events.jsonl")
	}
	return filepath.Join(cfg.DataPath(), "events.jsonl")
}

func main() {
	_ = godotenv.Load()

	var c cli
	ctx := kong.Parse(&c,
		kong.Name("revctl"),
		kong.Description("Station review database maintenance."),
		kong.UsageOnError(),
	)
	logging.InitWriter(os.Stderr, logging.ParseLevel(c.LogLevel))
	ctx.FatalIfErrorf(ctx.Run(&c.globals))
}
