package feed

import "github.com/abelbrown/stationreviews/internal/review"

// Generation identifies one station selection. It increases by exactly one
// per Select, including re-selecting the focused station.
type Generation uint64

// ticket is stamped on every scheduled fetch. gen fences station switches;
// seq fences superseded loads on the same channel within one selection
// (a mutation refresh supersedes an in-flight load-more, a stats reload
// supersedes the previous stats fetch).
type ticket struct {
	gen Generation
	seq uint64
}

type fence struct {
	gen Generation
}

func (f *fence) advance() Generation {
	f.gen++
	return f.gen
}

func (f *fence) current() Generation {
	return f.gen
}

// admit returns ErrStaleResult unless t was issued under the current
// generation and is the latest load on its channel.
func (f *fence) admit(t ticket, latestSeq uint64) error {
	if t.gen != f.gen || t.seq != latestSeq {
		return review.ErrStaleResult
	}
	return nil
}
