// Package detector decides when a plain HTTP fetch of a detail page should be
// retried through the headless browser.
package detector

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/JakeFAU/distro-catalog/internal/catalog"
)

// DefaultMarkers are the labels every complete detail page carries.
var DefaultMarkers = []string{"os type", "based on"}

// Heuristic implements a handful of rule-based promotions.
type Heuristic struct {
	BodyLengthThreshold int
	// RequiredMarkers are case-insensitive substrings; a page containing
	// none of them is considered unrendered.
	RequiredMarkers []string
}

// NewHeuristic creates a new detector. A nil markers slice selects
// DefaultMarkers.
func NewHeuristic(threshold int, markers []string) *Heuristic {
	if threshold == 0 {
		threshold = 2048
	}
	if markers == nil {
		markers = DefaultMarkers
	}
	lowered := make([]string, 0, len(markers))
	for _, m := range markers {
		if m = strings.ToLower(strings.TrimSpace(m)); m != "" {
			lowered = append(lowered, m)
		}
	}
	return &Heuristic{BodyLengthThreshold: threshold, RequiredMarkers: lowered}
}

var spaMarkers = [][]byte{
	[]byte("__next"),
	[]byte("id=\"root\""),
	[]byte("id=\"app\""),
	[]byte("data-reactroot"),
}

// ShouldPromote decides whether a headless fetch is required.
func (h *Heuristic) ShouldPromote(doc catalog.Document) bool {
	if doc.StatusCode != http.StatusOK {
		return false
	}
	body := doc.Body
	if len(body) == 0 {
		return true
	}
	lower := bytes.ToLower(body)
	if len(h.RequiredMarkers) > 0 && !containsAny(lower, h.RequiredMarkers) {
		return true
	}
	if len(body) < h.BodyLengthThreshold && scriptDensityHigh(lower) {
		return true
	}
	for _, marker := range spaMarkers {
		if bytes.Contains(lower, bytes.ToLower(marker)) {
			return true
		}
	}
	return false
}

func containsAny(body []byte, markers []string) bool {
	for _, m := range markers {
		if bytes.Contains(body, []byte(m)) {
			return true
		}
	}
	return false
}

// scriptDensityHigh reports whether script elements cover at least a quarter
// of the lowercased body.
func scriptDensityHigh(lower []byte) bool {
	total := len(lower)
	if total == 0 {
		return false
	}

	openTag := []byte("<script")
	closeTag := []byte("</script>")
	coverage := 0
	pos := 0
	for {
		rel := bytes.Index(lower[pos:], openTag)
		if rel == -1 {
			break
		}
		start := pos + rel

		tagClose := bytes.IndexByte(lower[start:], '>')
		if tagClose == -1 {
			coverage += total - start
			break
		}
		contentStart := start + tagClose + 1

		next := total
		if end := bytes.Index(lower[contentStart:], closeTag); end != -1 {
			next = contentStart + end + len(closeTag)
		}
		coverage += next - start
		pos = next
	}
	return coverage*100/total >= 25
}
