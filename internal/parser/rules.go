package parser

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/JakeFAU/distro-catalog/internal/catalog"
)

// Field names produced by the default pipeline.
const (
	FieldName         = "name"
	FieldOSType       = "os_type"
	FieldBasedOn      = "based_on"
	FieldOrigin       = "origin"
	FieldArchitecture = "architecture"
	FieldDesktop      = "desktop"
	FieldCategory     = "category"
	FieldStatus       = "status"
	FieldRanking      = "ranking"
	FieldRating       = "rating"
	FieldHomepage     = "homepage"
	FieldDescription  = "description"
)

const (
	descriptionMinRunes = 50
	descriptionMaxRunes = 500
	maxRating           = 10.0
)

var (
	leadingInt = regexp.MustCompile(`^(\d+)`)
	decimal    = regexp.MustCompile(`\d+\.\d+`)

	descriptionKeywords = []string{"distribution", "linux", "based on", "operating system", "focuses on"}
)

// Result is the typed outcome of one extraction rule.
type Result struct {
	Outcome catalog.Outcome
	Value   string
	Err     error
}

// Found wraps an extracted value.
func Found(v string) Result { return Result{Outcome: catalog.OutcomeOK, Value: v} }

// Empty reports that the field is absent from the page.
func Empty() Result { return Result{Outcome: catalog.OutcomeEmpty} }

// Fault reports that the field was present but could not be extracted.
func Fault(err error) Result { return Result{Outcome: catalog.OutcomeFault, Err: err} }

// Rule extracts a single field from a Page and stores it into Fields.
type Rule struct {
	Field   string
	Extract func(*Page) Result
	Assign  func(*Fields, string) error
}

// DefaultRules returns the extraction pipeline in evaluation order.
func DefaultRules() []Rule {
	return []Rule{
		metadataRule(FieldOSType, func(f *Fields, v string) { f.OSType = v }),
		metadataRule(FieldBasedOn, func(f *Fields, v string) { f.BasedOn = v }),
		metadataRule(FieldOrigin, func(f *Fields, v string) { f.Origin = v }),
		metadataRule(FieldArchitecture, func(f *Fields, v string) { f.Architecture = v }),
		metadataRule(FieldDesktop, func(f *Fields, v string) { f.Desktop = v }),
		metadataRule(FieldCategory, func(f *Fields, v string) { f.Category = v }),
		{Field: FieldStatus, Extract: extractStatus, Assign: func(f *Fields, v string) error {
			f.Status = v
			return nil
		}},
		{Field: FieldRanking, Extract: extractPopularityRank, Assign: assignRanking},
		{Field: FieldName, Extract: extractName, Assign: func(f *Fields, v string) error {
			f.Name = v
			return nil
		}},
		{Field: FieldRating, Extract: extractRating, Assign: assignRating},
		{Field: FieldHomepage, Extract: extractHomepage, Assign: func(f *Fields, v string) error {
			f.Homepage = v
			return nil
		}},
		{Field: FieldDescription, Extract: extractDescription, Assign: func(f *Fields, v string) error {
			f.Description = v
			return nil
		}},
	}
}

func metadataRule(field string, set func(*Fields, string)) Rule {
	return Rule{
		Field: field,
		Extract: func(p *Page) Result {
			e, ok := p.entries[field]
			if !ok || e.value == "" {
				return Empty()
			}
			return Found(e.value)
		},
		Assign: func(f *Fields, v string) error {
			set(f, v)
			return nil
		},
	}
}

// extractStatus prefers the colored wrapper DistroWatch puts around the status word.
func extractStatus(p *Page) Result {
	e, ok := p.entries[FieldStatus]
	if !ok {
		return Empty()
	}
	value := e.value
	if e.hasEmphasis {
		value = e.emphasis
	}
	if value == "" {
		return Empty()
	}
	return Found(value)
}

func extractPopularityRank(p *Page) Result {
	e, ok := p.entries[FieldRanking]
	if !ok {
		return Empty()
	}
	m := leadingInt.FindString(e.value)
	if m == "" {
		return Fault(fmt.Errorf("popularity %q has no leading rank", e.value))
	}
	return Found(m)
}

func assignRanking(f *Fields, v string) error {
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("parse rank: %w", err)
	}
	if n <= 0 {
		return fmt.Errorf("rank %d is not positive", n)
	}
	f.Ranking = &n
	return nil
}

func extractName(p *Page) Result {
	h1 := p.Doc.Find("h1").First()
	if h1.Length() == 0 {
		return Empty()
	}
	name := cleanText(h1.Text())
	if name == "" {
		return Empty()
	}
	return Found(name)
}

func extractRating(p *Page) Result {
	var value string
	p.Doc.Find("b").EachWithBreak(func(_ int, b *goquery.Selection) bool {
		text := strings.TrimSpace(b.Text())
		m := decimal.FindString(text)
		if m == "" || strings.Contains(text, "/") {
			return true
		}
		if !strings.Contains(strings.ToLower(b.Parent().Text()), "visitor rating") {
			return true
		}
		v, err := strconv.ParseFloat(m, 64)
		if err != nil || v < 0 || v > maxRating {
			return true
		}
		value = m
		return false
	})
	if value == "" {
		return Empty()
	}
	return Found(value)
}

func assignRating(f *Fields, v string) error {
	r, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("parse rating: %w", err)
	}
	f.Rating = &r
	return nil
}

func extractHomepage(p *Page) Result {
	var href string
	p.Doc.Find("table.Info tr").EachWithBreak(func(_ int, row *goquery.Selection) bool {
		th := row.Find("th.Info").First()
		if th.Length() == 0 || !strings.Contains(strings.ToLower(th.Text()), "home page") {
			return true
		}
		link, ok := row.Find("td.Info a[href]").First().Attr("href")
		if !ok || strings.TrimSpace(link) == "" {
			return true
		}
		href = strings.TrimSpace(link)
		return false
	})
	if href == "" {
		return Empty()
	}
	return Found(href)
}

// extractDescription walks the siblings after the metadata block and takes the
// first substantial prose fragment. Scanning stops at the next br, b or table.
func extractDescription(p *Page) Result {
	if p.Block == nil || len(p.Block.Nodes) == 0 {
		return Fault(errors.New("metadata block missing"))
	}
	node := p.Block.Nodes[0].NextSibling
	for node != nil {
		if node.Type == html.TextNode {
			text := strings.TrimSpace(node.Data)
			if utf8.RuneCountInString(text) > descriptionMinRunes && hasDescriptionKeyword(text) {
				return Found(truncate(text, descriptionMaxRunes))
			}
		}
		node = node.NextSibling
		if node != nil && node.Type == html.ElementNode {
			switch node.Data {
			case "br", "b", "table":
				return Empty()
			}
		}
	}
	return Empty()
}

func hasDescriptionKeyword(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range descriptionKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
