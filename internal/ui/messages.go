// Package ui provides the Bubble Tea TUI for station reviews.
package ui

import "github.com/abelbrown/stationreviews/internal/review"

// StartupLoaded carries the station list and the session identity, which
// are fetched together when the app starts.
type StartupLoaded struct {
	Stations    []review.Station
	Identity    review.Identity
	Err         error // station list failure
	IdentityErr error // whoami failure; Identity is anonymous
}

