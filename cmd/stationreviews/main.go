// Command stationreviews is the terminal client for station reviews.
//
// Usage:
//
//	stationreviews                      Browse reviews from the configured API
//	stationreviews --db reviews.db      Browse a local SQLite database
//	stationreviews login alice          Log in and remember the token
//	stationreviews register alice       Create an account
//	stationreviews logout               Forget the stored token
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"

	"github.com/abelbrown/stationreviews/internal/config"
)

type globals struct {
	ConfigFile string `name:"config" help:"Config file path." type:"path" env:"STATIONREVIEWS_CONFIG"`
	EnvFile    string `name:"env-file" help:"dotenv file read before flags." default:".env"`
	API        string `name:"api" help:"Review API base URL (overrides config)." env:"STATIONREVIEWS_API_URL"`
}

// configPath resolves the config file location.
func (g *globals) configPath() string {
	if g.ConfigFile != "" {
		return g.ConfigFile
	}
	return config.ConfigPath()
}

// load reads the config file, then the dotenv file, then applies the
// --api override.
func (g *globals) load() (*config.Config, error) {
	cfg, err := config.LoadFrom(g.configPath())
	if err != nil {
		return nil, err
	}
	if g.EnvFile != "" {
		if err := cfg.LoadEnvFile(g.EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read %s: %w", g.EnvFile, err)
		}
	}
	if g.API != "" {
		cfg.API.BaseURL = g.API
	}
	return cfg, nil
}

type cli struct {
	globals

	Browse   browseCmd   `cmd:"" default:"withargs" help:"Browse stations and reviews (default)."`
	Login    loginCmd    `cmd:"" help:"Log in and store the access token."`
	Register registerCmd `cmd:"" help:"Create an account on the review service."`
	Logout   logoutCmd   `cmd:"" help:"Forget the stored access token."`
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
	ctx := kong.Parse(&c,
		kong.Name("stationreviews"),
		kong.Description("Browse, post and moderate station reviews."),
		kong.UsageOnError(),
	)
	ctx.FatalIfErrorf(ctx.Run(&c.globals))
}
