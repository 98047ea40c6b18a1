package main

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/abelbrown/stationreviews/internal/analysis"
	"github.com/abelbrown/stationreviews/internal/review"
	"github.com/abelbrown/stationreviews/internal/store"
)

type importCSVCmd struct {
	File    string `arg:"" help:"CSV file with caption, rating, username and relative_d columns." type:"existingfile"`
	Station string `help:"Station name (must match exactly)." required:""`
}

func (c *importCSVCmd) Run(g *globals) error {
	f, err := os.Open(c.File)
	if err != nil {
		return err
	}
	defer f.Close()

	st, err := g.open()
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()
	station, err := st.StationByName(ctx, c.Station)
	if errors.Is(err, review.ErrNotFound) {
		stations, _ := st.ListStations(ctx)
		fmt.Fprintf(os.Stderr, "station not found: %s\navailable stations:\n", c.Station)
		for _, s := range stations {
			fmt.Fprintf(os.Stderr, "  - %s\n", s.Name)
		}
		return err
	}
	if err != nil {
		return err
	}

	rows, res, err := parseReviewCSV(f, time.Now())
	if err != nil {
		return err
	}
	for _, row := range rows {
		nr := row.review
		nr.StationID = station.ID
		if len(nr.Aspects) == 0 {
			nr.Sentiment, nr.Aspects = analysis.Tag(nr.Text, nr.Rating)
		} else {
			nr.Sentiment = analysis.Classify(nr.Text, nr.Rating)
		}
		if _, err := st.InsertReview(ctx, nr); err != nil {
			res.Errors++
			fmt.Fprintf(os.Stderr, "row %d: %v\n", row.line, err)
			continue
		}
		res.Created++
		if res.Created%10 == 0 {
			fmt.Printf("Processed %d reviews...\n", res.Created)
		}
	}

	fmt.Printf("Import completed for %s:\n  %d reviews created\n  %d rows skipped (empty caption)\n",
		station.Name, res.Created, res.Skipped)
	if res.Errors > 0 {
		fmt.Printf("  %d errors\n", res.Errors)
	}
	return nil
}

// csvAspects maps the export's truncated aspect column headers onto
// aspect names. Cells hold positive, negative, neutral or NA.
var csvAspects = map[string]string{
	"Metro con":   analysis.Connectivity,
	"Metro stat":  analysis.Infrastructure,
	"General Sa":  analysis.Safety,
	"Crowd ma":    analysis.Crowd,
	"Ticketing s": analysis.Ticketing,
	"Women's":     analysis.WomensSafety,
	"Metro fre":   analysis.Frequency,
	"Staff beha":  analysis.Staff,
	"Cleanliness": analysis.Cleanliness,
}

type csvRow struct {
	line   int
	review store.NewReview
}

type importResult struct {
	Created int
	Skipped int
	Errors  int
}

// parseReviewCSV reads a review export. The delimiter is detected from the
// header line. Rows without a caption are skipped; unparseable ratings
// default to 3.
func parseReviewCSV(r io.Reader, now time.Time) ([]csvRow, importResult, error) {
	var res importResult
	br := bufio.NewReader(r)
	header, err := br.Peek(1024)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, res, err
	}

	cr := csv.NewReader(br)
	cr.Comma = sniffDelimiter(header)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	cols, err := cr.Read()
	if err != nil {
		return nil, res, fmt.Errorf("read header: %w", err)
	}
	index := make(map[string]int, len(cols))
	for i, name := range cols {
		index[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	get := func(rec []string, col string) string {
		if i, ok := index[col]; ok && i < len(rec) {
			return strings.TrimSpace(rec[i])
		}
		return ""
	}

	var rows []csvRow
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			res.Errors++
			continue
		}
		caption := get(rec, "caption")
		if caption == "" {
			res.Skipped++
			continue
		}
		rating := 3
		if f, err := strconv.ParseFloat(get(rec, "rating"), 64); err == nil {
			rating = int(f)
		}
		author := get(rec, "username")
		if author == "" {
			author = "anonymous"
		}

		nr := store.NewReview{
			Author:    author,
			Rating:    rating,
			Text:      caption,
			CreatedAt: parseRelative(get(rec, "relative_d"), now),
		}
		for col, name := range csvAspects {
			cell := strings.ToLower(get(rec, col))
			if cell == "" || cell == "na" {
				continue
			}
			nr.Aspects = append(nr.Aspects, review.Aspect{Name: name, Sentiment: review.ParseSentiment(cell), Trend: review.Flat})
		}
		rows = append(rows, csvRow{line: line, review: nr})
	}
	return rows, res, nil
}

// sniffDelimiter picks whichever of comma, semicolon or tab occurs most
// often in the first line.
func sniffDelimiter(sample []byte) rune {
	first := string(sample)
	if i := strings.IndexByte(first, '\n'); i >= 0 {
		first = first[:i]
	}
	best, bestN := ',', strings.Count(first, ",")
	for _, d := range []rune{';', '\t'} {
		if n := strings.Count(first, string(d)); n > bestN {
			best, bestN = d, n
		}
	}
	return best
}

var relativeRe = regexp.MustCompile(`(\d+)\s*(day|week|month|year)`)

// parseRelative turns "5 months ago" style strings into a timestamp.
// Months are 30 days and years 365. Anything unrecognised is now.
func parseRelative(s string, now time.Time) time.Time {
	m := relativeRe.FindStringSubmatch(strings.ToLower(s))
	if m == nil {
		return now
	}
	n, _ := strconv.Atoi(m[1])
	days := map[string]int{"day": 1, "week": 7, "month": 30, "year": 365}[m[2]]
	return now.AddDate(0, 0, -n*days)
}
