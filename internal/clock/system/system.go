// Package system provides a real clock implementation.
package system

import (
	"time"

	"github.com/JakeFAU/distro-catalog/internal/catalog"
)

// Clock implements catalog.Clock using time.Now.
type Clock struct{}

var _ catalog.Clock = Clock{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time in UTC. Record timestamps and cache envelopes
// are always stamped in UTC.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}

// Fixed is a catalog.Clock frozen at a point in time. Tests move it with Set
// or Advance.
type Fixed struct {
	t time.Time
}

// NewFixed returns a clock stopped at t.
func NewFixed(t time.Time) *Fixed {
	return &Fixed{t: t.UTC()}
}

// Now returns the frozen time.
func (f *Fixed) Now() time.Time { return f.t }

// Set moves the clock to t.
func (f *Fixed) Set(t time.Time) { f.t = t.UTC() }

// Advance moves the clock forward by d.
func (f *Fixed) Advance(d time.Duration) { f.t = f.t.Add(d) }
