package cache

import (
	"time"

	"github.com/JakeFAU/distro-catalog/internal/catalog"
)

// DefaultTTL is the envelope lifetime when none is configured.
const DefaultTTL = 24 * time.Hour

// Envelope is the persisted cache document. It is written whole and never
// patched; a new write replaces it entirely.
type Envelope struct {
	Timestamp  time.Time        `json:"timestamp"`
	TTLSeconds int              `json:"ttl_seconds"`
	Count      int              `json:"count"`
	Records    []catalog.Record `json:"records"`
}

func newEnvelope(now time.Time, ttl time.Duration, records []catalog.Record) Envelope {
	cp := catalog.CloneRecords(records)
	if cp == nil {
		cp = []catalog.Record{}
	}
	return Envelope{
		Timestamp:  now.UTC(),
		TTLSeconds: int(ttl / time.Second),
		Count:      len(cp),
		Records:    cp,
	}
}

// ttl returns the stored lifetime, or fallback when the stored value is unusable.
func (e Envelope) ttl(fallback time.Duration) time.Duration {
	if e.TTLSeconds <= 0 {
		return fallback
	}
	return time.Duration(e.TTLSeconds) * time.Second
}

// Expiry is the first instant at which the envelope is stale.
func (e Envelope) Expiry(fallback time.Duration) time.Time {
	return e.Timestamp.Add(e.ttl(fallback))
}

// ValidAt reports whether now falls strictly before the expiry.
func (e Envelope) ValidAt(now time.Time, fallback time.Duration) bool {
	if e.Timestamp.IsZero() {
		return false
	}
	return now.Before(e.Expiry(fallback))
}
