// Package access decides who may delete a review and hands out capabilities
// the feed controller requires before dispatching a delete.
package access

import (
	"fmt"

	"github.com/abelbrown/stationreviews/internal/review"
)

// Capability authorizes deleting one specific review.
// Only Grant creates a usable Capability.
type Capability struct {
	reviewID int64
	holder   string
}

// ReviewID is the review this capability covers.
func (c *Capability) ReviewID() int64 {
	if c == nil {
		return 0
	}
	return c.reviewID
}

// Holder is the username the capability was granted to.
func (c *Capability) Holder() string {
	if c == nil {
		return ""
	}
	return c.holder
}

// Covers reports whether c authorizes deleting reviewID.
func (c *Capability) Covers(reviewID int64) bool {
	return c != nil && c.holder != "" && c.reviewID == reviewID
}

// CanDelete is the delete rule shared by client and servers:
// the author or a privileged user, never anonymous.
func CanDelete(who review.Identity, author string) bool {
	if who.Anonymous() {
		return false
	}
	return who.Privileged || who.Username == author
}

// Grant returns a capability to delete r, or ErrForbidden.
func Grant(who review.Identity, r review.Review) (*Capability, error) {
	if !CanDelete(who, r.Author) {
		return nil, fmt.Errorf("delete review %d as %q: %w", r.ID, who.Username, review.ErrForbidden)
	}
	return &Capability{reviewID: r.ID, holder: who.Username}, nil
}
