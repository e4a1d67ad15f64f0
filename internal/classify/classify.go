// Package classify maps free-text fields onto the controlled family and
// desktop environment vocabularies using ordered keyword tables.
package classify

import (
	"fmt"
	"strings"

	"github.com/JakeFAU/distro-catalog/internal/catalog"
)

// Entry pairs a lowercase keyword with the tag it selects.
type Entry[T ~string] struct {
	Keyword string
	Tag     T
}

// Table is an ordered keyword table evaluated first-match-wins.
type Table[T ~string] []Entry[T]

// Match returns the tag of the first entry whose keyword occurs in text.
func (t Table[T]) Match(text string) (T, bool) {
	lower := strings.ToLower(text)
	for _, e := range t {
		if strings.Contains(lower, e.Keyword) {
			return e.Tag, true
		}
	}
	var zero T
	return zero, false
}

// Pair is the configuration form of a table entry.
type Pair struct {
	Keyword string `mapstructure:"keyword"`
	Tag     string `mapstructure:"tag"`
}

// DefaultFamilies is the built-in family table.
var DefaultFamilies = Table[catalog.Family]{
	{"debian", catalog.FamilyDebian},
	{"ubuntu", catalog.FamilyUbuntu},
	{"fedora", catalog.FamilyFedora},
	{"red hat", catalog.FamilyFedora},
	{"rhel", catalog.FamilyFedora},
	{"arch", catalog.FamilyArch},
	{"arch linux", catalog.FamilyArch},
	{"opensuse", catalog.FamilyOpenSUSE},
	{"suse", catalog.FamilyOpenSUSE},
	{"gentoo", catalog.FamilyGentoo},
	{"slackware", catalog.FamilySlackware},
}

// DefaultDesktops is the built-in desktop environment table.
var DefaultDesktops = Table[catalog.DesktopEnvironment]{
	{"gnome", catalog.DesktopGNOME},
	{"kde", catalog.DesktopKDE},
	{"plasma", catalog.DesktopKDE},
	{"xfce", catalog.DesktopXfce},
	{"mate", catalog.DesktopMATE},
	{"cinnamon", catalog.DesktopCinnamon},
	{"lxde", catalog.DesktopLXDE},
	{"lxqt", catalog.DesktopLXQt},
	{"budgie", catalog.DesktopBudgie},
	{"pantheon", catalog.DesktopPantheon},
	{"deepin", catalog.DesktopDeepin},
	{"i3", catalog.DesktopI3},
	{"sway", catalog.DesktopSway},
}

// Classifier holds the two keyword tables. The zero value is not usable; use New.
type Classifier struct {
	families Table[catalog.Family]
	desktops Table[catalog.DesktopEnvironment]
}

// New builds a Classifier. Nil or empty tables fall back to the defaults.
func New(families Table[catalog.Family], desktops Table[catalog.DesktopEnvironment]) *Classifier {
	if len(families) == 0 {
		families = DefaultFamilies
	}
	if len(desktops) == 0 {
		desktops = DefaultDesktops
	}
	return &Classifier{families: families, desktops: desktops}
}

// Default returns a Classifier using the built-in tables.
func Default() *Classifier {
	return New(nil, nil)
}

// Family classifies the base-system text. Unmatched input yields independent.
func (c *Classifier) Family(basedOn string) catalog.Family {
	if f, ok := c.families.Match(basedOn); ok {
		return f
	}
	return catalog.FamilyIndependent
}

// DesktopEnvironments returns every distinct tag whose keyword occurs in the
// desktop text, in table order. Empty text yields an empty slice; non-empty
// text with no match yields a single other tag.
func (c *Classifier) DesktopEnvironments(desktop string) []catalog.DesktopEnvironment {
	if strings.TrimSpace(desktop) == "" {
		return []catalog.DesktopEnvironment{}
	}
	lower := strings.ToLower(desktop)
	out := make([]catalog.DesktopEnvironment, 0, 2)
	seen := make(map[catalog.DesktopEnvironment]struct{}, len(c.desktops))
	for _, e := range c.desktops {
		if !strings.Contains(lower, e.Keyword) {
			continue
		}
		if _, dup := seen[e.Tag]; dup {
			continue
		}
		seen[e.Tag] = struct{}{}
		out = append(out, e.Tag)
	}
	if len(out) == 0 {
		return []catalog.DesktopEnvironment{catalog.DesktopOther}
	}
	return out
}

// FamilyTable converts configured pairs into a family table.
func FamilyTable(pairs []Pair) (Table[catalog.Family], error) {
	return buildTable(pairs, catalog.ParseFamily)
}

// DesktopTable converts configured pairs into a desktop environment table.
func DesktopTable(pairs []Pair) (Table[catalog.DesktopEnvironment], error) {
	return buildTable(pairs, catalog.ParseDesktopEnvironment)
}

func buildTable[T ~string](pairs []Pair, parse func(string) (T, bool)) (Table[T], error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	table := make(Table[T], 0, len(pairs))
	for i, p := range pairs {
		keyword := strings.ToLower(strings.TrimSpace(p.Keyword))
		if keyword == "" {
			return nil, fmt.Errorf("entry %d: keyword is required", i)
		}
		tag, ok := parse(p.Tag)
		if !ok {
			return nil, fmt.Errorf("entry %d: unknown tag %q", i, p.Tag)
		}
		table = append(table, Entry[T]{Keyword: keyword, Tag: tag})
	}
	return table, nil
}
