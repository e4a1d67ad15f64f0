// Package ranking reads the candidate list from the DistroWatch popularity
// page. It never fails loudly: fetch and parse problems are logged and
// produce an empty candidate list.
package ranking

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/distro-catalog/internal/catalog"
)

const (
	// DefaultURL is the popularity page.
	DefaultURL = "http://distrowatch.com/dwres.php?resource=popularity"
	// DefaultLimit caps the number of candidates per crawl.
	DefaultLimit = 290

	sectionLabel = "last 1 month"
)

// ErrSectionMissing means the page has no "Last 1 month" table.
var ErrSectionMissing = fmt.Errorf("%w: ranking section %q not found", catalog.ErrMalformedDocument, sectionLabel)

var firstInt = regexp.MustCompile(`\d+`)

// Result is the typed outcome of parsing a ranking page.
type Result struct {
	Outcome    catalog.Outcome
	Candidates []catalog.Candidate
	Skipped    int
	Err        error
}

// Fetcher retrieves and parses the ranking page.
type Fetcher struct {
	url     string
	fetcher catalog.DocumentFetcher
	logger  *zap.Logger
}

// New builds a Fetcher. An empty url selects DefaultURL.
func New(rankingURL string, fetcher catalog.DocumentFetcher, logger *zap.Logger) *Fetcher {
	if rankingURL == "" {
		rankingURL = DefaultURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{url: rankingURL, fetcher: fetcher, logger: logger}
}

// Fetch returns up to limit candidates in page order. It returns an empty
// slice on any failure.
func (f *Fetcher) Fetch(ctx context.Context, limit int) []catalog.Candidate {
	doc, err := f.fetcher.Fetch(ctx, f.url)
	if err != nil {
		f.logger.Warn("ranking fetch failed", zap.String("url", f.url), zap.Error(err))
		return []catalog.Candidate{}
	}
	res := Parse(doc.Body, limit)
	switch res.Outcome {
	case catalog.OutcomeFault:
		f.logger.Warn("ranking parse failed", zap.String("url", f.url), zap.Error(res.Err))
	case catalog.OutcomeEmpty:
		f.logger.Warn("ranking page yielded no candidates", zap.String("url", f.url), zap.Error(res.Err))
	case catalog.OutcomeOK:
		f.logger.Info("ranking fetched",
			zap.Int("candidates", len(res.Candidates)),
			zap.Int("skipped_rows", res.Skipped),
		)
	}
	return res.Candidates
}

// Parse extracts candidates from a ranking page body. A limit <= 0 selects
// DefaultLimit. Only the first row for an identifier is kept.
func Parse(body []byte, limit int) Result {
	if limit <= 0 {
		limit = DefaultLimit
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return Result{
			Outcome:    catalog.OutcomeFault,
			Candidates: []catalog.Candidate{},
			Err:        fmt.Errorf("%w: parse html: %w", catalog.ErrMalformedDocument, err),
		}
	}

	table := findSection(doc)
	if table == nil {
		return Result{Outcome: catalog.OutcomeEmpty, Candidates: []catalog.Candidate{}, Err: ErrSectionMissing}
	}

	res := Result{Candidates: make([]catalog.Candidate, 0, 64)}
	seen := make(map[string]struct{}, 64)
	table.Find("tr").EachWithBreak(func(_ int, row *goquery.Selection) bool {
		if len(res.Candidates) >= limit {
			return false
		}
		c, ok := parseRow(row)
		if !ok {
			res.Skipped++
			return true
		}
		if _, dup := seen[c.ID]; dup {
			res.Skipped++
			return true
		}
		seen[c.ID] = struct{}{}
		res.Candidates = append(res.Candidates, c)
		return true
	})
	if len(res.Candidates) == 0 {
		res.Outcome = catalog.OutcomeEmpty
		res.Err = errors.New("ranking section has no usable rows")
		return res
	}
	res.Outcome = catalog.OutcomeOK
	return res
}

func findSection(doc *goquery.Document) *goquery.Selection {
	var table *goquery.Selection
	doc.Find("th.Invert").EachWithBreak(func(_ int, th *goquery.Selection) bool {
		if !strings.Contains(strings.ToLower(th.Text()), sectionLabel) {
			return true
		}
		if t := th.Closest("table"); t.Length() > 0 {
			table = t
		}
		return false
	})
	return table
}

func parseRow(row *goquery.Selection) (catalog.Candidate, bool) {
	rankCell := row.Find("th.phr1").First()
	nameCell := row.Find("td.phr2").First()
	hitsCell := row.Find("td.phr3").First()
	if rankCell.Length() == 0 || nameCell.Length() == 0 || hitsCell.Length() == 0 {
		return catalog.Candidate{}, false
	}
	rank, err := strconv.Atoi(strings.TrimSpace(rankCell.Text()))
	if err != nil || rank <= 0 {
		return catalog.Candidate{}, false
	}
	link := nameCell.Find("a[href]").First()
	href, ok := link.Attr("href")
	if !ok {
		return catalog.Candidate{}, false
	}
	id := IdentifierFromHref(href)
	if id == "" {
		return catalog.Candidate{}, false
	}
	name := strings.Join(strings.Fields(link.Text()), " ")
	if name == "" {
		name = id
	}
	return catalog.Candidate{
		Rank:       rank,
		ID:         id,
		Name:       name,
		HitsPerDay: parseHits(hitsCell.Text()),
	}, true
}

// IdentifierFromHref derives the lowercase identifier from a ranking link,
// which is either a bare slug or a table.php?distribution= URL.
func IdentifierFromHref(href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	if u, err := url.Parse(href); err == nil {
		if d := u.Query().Get("distribution"); d != "" {
			return strings.ToLower(d)
		}
		href = u.Path
	}
	slug := path.Base(strings.TrimRight(href, "/"))
	if slug == "." || slug == "/" {
		return ""
	}
	return strings.ToLower(slug)
}

func parseHits(text string) int {
	m := firstInt.FindString(strings.ReplaceAll(text, ",", ""))
	if m == "" {
		return 0
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0
	}
	return n
}
