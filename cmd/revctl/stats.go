package main

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/abelbrown/stationreviews/internal/analysis"
	"github.com/abelbrown/stationreviews/internal/review"
)

type statsCmd struct {
	Station string `help:"Only this station."`
	Aspects bool   `help:"Include the per-aspect breakdown."`
}

func (s *statsCmd) Run(g *globals) error {
	st, err := g.open()
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()
	var stations []review.Station
	if s.Station != "" {
		one, err := st.StationByName(ctx, s.Station)
		if err != nil {
			return err
		}
		stations = []review.Station{one}
	} else if stations, err = st.ListStations(ctx); err != nil {
		return err
	}

	now := time.Now()
	total := 0
	for _, station := range stations {
		items, _, err := st.ListReviews(ctx, station.ID, 0, 0)
		if err != nil {
			return err
		}
		stats := analysis.Summarize(items, now)
		total += stats.TotalReviews

		fmt.Printf("%-28s %-12s %4d reviews  %.1f★  this month %d, last month %d, %s\n",
			station.Name, station.Line, stats.TotalReviews, stats.OverallRating,
			stats.RecentTrends.ThisMonth, stats.RecentTrends.LastMonth, stats.RecentTrends.Sentiment)
		if s.Aspects {
			printAspects(stats.Aspects)
		}
	}
	fmt.Printf("\n%d stations, %d reviews\n", len(stations), total)
	return nil
}

func printAspects(aspects map[string]review.Aspect) {
	names := make([]string, 0, len(aspects))
	for name := range aspects {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		a := aspects[name]
		fmt.Printf("    %-20s %-8s %3.0f%%  %s\n", name, a.Sentiment, a.Percentage, a.Trend)
	}
}
