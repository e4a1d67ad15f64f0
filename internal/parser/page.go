package parser

import (
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/distro-catalog/internal/catalog"
)

// ErrNoMetadataBlock means no list on the page starts with an "OS Type" or
// "Based on" label.
var ErrNoMetadataBlock = fmt.Errorf("%w: metadata block not found", catalog.ErrMalformedDocument)

// Page is a parsed detail document with its metadata block located and the
// block's entries routed to field names.
type Page struct {
	Doc     *goquery.Document
	Block   *goquery.Selection
	entries map[string]entry
}

type entry struct {
	label       string
	value       string
	emphasis    string
	hasEmphasis bool
}

type route struct {
	keyword string
	field   string
}

// Label keywords in routing order. An entry goes to the first keyword its
// label contains.
var metadataRoutes = []route{
	{"os type", FieldOSType},
	{"based on", FieldBasedOn},
	{"origin", FieldOrigin},
	{"architecture", FieldArchitecture},
	{"desktop", FieldDesktop},
	{"category", FieldCategory},
	{"status", FieldStatus},
	{"popularity", FieldRanking},
}

// NewPage locates the metadata block and routes its entries.
func NewPage(doc *goquery.Document) (*Page, error) {
	if doc == nil {
		return nil, errors.New("nil document")
	}
	block := locateMetadataBlock(doc)
	if block == nil {
		return nil, ErrNoMetadataBlock
	}
	page := &Page{Doc: doc, Block: block, entries: make(map[string]entry)}
	block.Find("li").Each(func(_ int, li *goquery.Selection) {
		e, ok := readEntry(li)
		if !ok {
			return
		}
		for _, r := range metadataRoutes {
			if strings.Contains(e.label, r.keyword) {
				page.entries[r.field] = e
				return
			}
		}
	})
	return page, nil
}

func locateMetadataBlock(doc *goquery.Document) *goquery.Selection {
	var block *goquery.Selection
	doc.Find("ul").EachWithBreak(func(_ int, ul *goquery.Selection) bool {
		label := ul.Find("li").First().Find("b").First()
		if label.Length() == 0 {
			return true
		}
		text := strings.ToLower(label.Text())
		if strings.Contains(text, "os type") || strings.Contains(text, "based on") {
			block = ul
			return false
		}
		return true
	})
	return block
}

// readEntry splits one list item into its bold label and the text of its
// direct links and text fragments.
func readEntry(li *goquery.Selection) (entry, bool) {
	labelSel := li.Find("b").First()
	if labelSel.Length() == 0 {
		return entry{}, false
	}
	rawLabel := cleanText(labelSel.Text())

	var parts []string
	li.Contents().Each(func(_ int, s *goquery.Selection) {
		switch goquery.NodeName(s) {
		case "a":
			if text := cleanText(s.Text()); text != "" {
				parts = append(parts, text)
			}
		case "#text":
			text := strings.TrimSpace(s.Text())
			if text != "" && text != ":" && text != "," {
				parts = append(parts, text)
			}
		}
	})
	value := strings.Join(parts, ", ")
	if rawLabel != "" && strings.HasPrefix(value, rawLabel) {
		value = strings.TrimSpace(strings.TrimPrefix(value, rawLabel))
	}

	e := entry{
		label: strings.TrimSpace(strings.ToLower(strings.ReplaceAll(rawLabel, ":", ""))),
		value: value,
	}
	if em := li.Find("font, em").First(); em.Length() > 0 {
		e.hasEmphasis = true
		e.emphasis = cleanText(em.Text())
	}
	return e, true
}

// Entry returns the routed label and value for a metadata field.
func (p *Page) Entry(field string) (label, value string, ok bool) {
	e, ok := p.entries[field]
	return e.label, e.value, ok
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
