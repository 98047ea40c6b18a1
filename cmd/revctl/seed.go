package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/abelbrown/stationreviews/internal/analysis"
	"github.com/abelbrown/stationreviews/internal/review"
	"github.com/abelbrown/stationreviews/internal/store"
)

type seedCmd struct {
	Fixture string `arg:"" help:"YAML fixture file." type:"existingfile"`
}

func (s *seedCmd) Run(g *globals) error {
	f, err := os.Open(s.Fixture)
	if err != nil {
		return err
	}
	defer f.Close()
	fx, err := store.ReadFixture(f)
	if err != nil {
		return err
	}

	st, err := g.open()
	if err != nil {
		return err
	}
	defer st.Close()

	res, err := st.Seed(context.Background(), fx, analysis.Tag, time.Now())
	if err != nil {
		return err
	}
	fmt.Printf("Seeded %s: %d stations, %d users, %d reviews (%d skipped)\n",
		g.DB, res.Stations, res.Users, res.Reviews, res.Skipped)
	return nil
}

// defaultLine is assigned to stations added without one.
const defaultLine = "Blue Line"

type addStationsCmd struct {
	Names []string `arg:"" optional:"" help:"Station names."`
	File  string   `help:"File with one station per line, or name,line,location." type:"existingfile"`
}

func (a *addStationsCmd) Run(g *globals) error {
	var stations []review.Station
	switch {
	case a.File != "":
		f, err := os.Open(a.File)
		if err != nil {
			return err
		}
		defer f.Close()
		if stations, err = parseStationLines(f); err != nil {
			return err
		}
	case len(a.Names) > 0:
		for _, name := range a.Names {
			stations = append(stations, review.Station{Name: strings.TrimSpace(name), Line: defaultLine})
		}
	default:
		return errors.New("give station names or --file")
	}

	st, err := g.open()
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()
	added, existing := 0, 0
	for _, s := range stations {
		_, created, err := st.AddStation(ctx, s)
		if err != nil {
			return fmt.Errorf("add %q: %w", s.Name, err)
		}
		if created {
			added++
			fmt.Printf("+ %s (%s)\n", s.Name, s.Line)
		} else {
			existing++
			fmt.Printf("= %s already exists\n", s.Name)
		}
	}
	fmt.Printf("%d added, %d already present\n", added, existing)
	return nil
}

// parseStationLines reads one station per line. Lines are either a bare
// name or name,line,location; blank lines and # comments are skipped.
func parseStationLines(r io.Reader) ([]review.Station, error) {
	var out []review.Station
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Split(line, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		s := review.Station{Name: parts[0], Line: defaultLine}
		if len(parts) > 1 && parts[1] != "" {
			s.Line = parts[1]
		}
		if len(parts) > 2 {
			s.Location = parts[2]
		}
		if s.Name == "" {
			continue
		}
		out = append(out, s)
	}
	return out, sc.Err()
}
