package feed

import "github.com/abelbrown/stationreviews/internal/review"

// StatsState is the lifecycle of the aggregate statistics fetch.
type StatsState int

const (
	StatsIdle StatsState = iota
	StatsPending
	StatsLoaded
	StatsErrored
)

func (s StatsState) String() string {
	switch s {
	case StatsPending:
		return "pending"
	case StatsLoaded:
		return "loaded"
	case StatsErrored:
		return "errored"
	default:
		return "idle"
	}
}

// StatsChannel tracks the slow stats computation for the focused station.
// Stats is nil until the first successful load and is only ever replaced
// as a whole.
type StatsChannel struct {
	StationID int64
	State     StatsState
	Stats     *review.StationStats
	Err       error

	seq uint64
}

func (c *StatsChannel) reset(stationID int64) {
	*c = StatsChannel{StationID: stationID, seq: c.seq + 1}
}

// begin supersedes any stats fetch in flight and returns the new sequence.
// The previous Stats stay visible while the reload is pending.
func (c *StatsChannel) begin() uint64 {
	c.seq++
	c.State = StatsPending
	c.Err = nil
	return c.seq
}

func (c *StatsChannel) apply(s review.StationStats) {
	c.State = StatsLoaded
	c.Stats = &s
	c.Err = nil
}

func (c *StatsChannel) fail(err error) {
	c.State = StatsErrored
	c.Err = err
}

// Pending reports whether a stats fetch is outstanding.
func (c StatsChannel) Pending() bool {
	return c.State == StatsPending
}
