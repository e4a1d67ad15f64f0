package catalog

import (
	"strings"
	"time"
)

// Family is the classified base-distribution lineage of a cataloged system.
type Family string

// Family values.
const (
	FamilyDebian      Family = "debian"
	FamilyUbuntu      Family = "ubuntu"
	FamilyFedora      Family = "fedora"
	FamilyArch        Family = "arch"
	FamilyOpenSUSE    Family = "opensuse"
	FamilyGentoo      Family = "gentoo"
	FamilySlackware   Family = "slackware"
	FamilyIndependent Family = "independent"
	FamilyOther       Family = "other"
)

// Families lists every valid Family in declaration order.
var Families = []Family{
	FamilyDebian,
	FamilyUbuntu,
	FamilyFedora,
	FamilyArch,
	FamilyOpenSUSE,
	FamilyGentoo,
	FamilySlackware,
	FamilyIndependent,
	FamilyOther,
}

// ParseFamily resolves a case-insensitive family name.
func ParseFamily(s string) (Family, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, f := range Families {
		if string(f) == s {
			return f, true
		}
	}
	return "", false
}

// DesktopEnvironment is a controlled desktop environment tag.
type DesktopEnvironment string

// Desktop environment values.
const (
	DesktopGNOME    DesktopEnvironment = "gnome"
	DesktopKDE      DesktopEnvironment = "kde"
	DesktopXfce     DesktopEnvironment = "xfce"
	DesktopMATE     DesktopEnvironment = "mate"
	DesktopCinnamon DesktopEnvironment = "cinnamon"
	DesktopLXDE     DesktopEnvironment = "lxde"
	DesktopLXQt     DesktopEnvironment = "lxqt"
	DesktopBudgie   DesktopEnvironment = "budgie"
	DesktopPantheon DesktopEnvironment = "pantheon"
	DesktopDeepin   DesktopEnvironment = "deepin"
	DesktopI3       DesktopEnvironment = "i3"
	DesktopSway     DesktopEnvironment = "sway"
	DesktopCustom   DesktopEnvironment = "custom"
	DesktopOther    DesktopEnvironment = "other"
)

// DesktopEnvironments lists every valid DesktopEnvironment.
var DesktopEnvironments = []DesktopEnvironment{
	DesktopGNOME,
	DesktopKDE,
	DesktopXfce,
	DesktopMATE,
	DesktopCinnamon,
	DesktopLXDE,
	DesktopLXQt,
	DesktopBudgie,
	DesktopPantheon,
	DesktopDeepin,
	DesktopI3,
	DesktopSway,
	DesktopCustom,
	DesktopOther,
}

// ParseDesktopEnvironment resolves a case-insensitive desktop environment tag.
func ParseDesktopEnvironment(s string) (DesktopEnvironment, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, d := range DesktopEnvironments {
		if string(d) == s {
			return d, true
		}
	}
	return "", false
}

// Record is one cataloged distribution. ID and Name are always set; every
// other field may be empty and Ranking/Rating may be nil.
type Record struct {
	ID                  string               `json:"id"`
	Name                string               `json:"name"`
	Description         string               `json:"description"`
	OSType              string               `json:"os_type"`
	BasedOn             string               `json:"based_on"`
	Family              Family               `json:"family"`
	Origin              string               `json:"origin"`
	Architecture        string               `json:"architecture"`
	Desktop             string               `json:"desktop"`
	DesktopEnvironments []DesktopEnvironment `json:"desktop_environments"`
	Category            string               `json:"category"`
	Status              string               `json:"status"`
	Ranking             *int                 `json:"ranking"`
	Rating              *float64             `json:"rating"`
	Homepage            string               `json:"homepage"`
	Logo                string               `json:"logo"`
	LastUpdated         time.Time            `json:"last_updated"`
}

// HasDesktop reports whether the record carries the given tag.
func (r Record) HasDesktop(de DesktopEnvironment) bool {
	for _, d := range r.DesktopEnvironments {
		if d == de {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the record.
func (r Record) Clone() Record {
	cp := r
	cp.DesktopEnvironments = append(make([]DesktopEnvironment, 0, len(r.DesktopEnvironments)), r.DesktopEnvironments...)
	if r.Ranking != nil {
		v := *r.Ranking
		cp.Ranking = &v
	}
	if r.Rating != nil {
		v := *r.Rating
		cp.Rating = &v
	}
	return cp
}

// CloneRecords deep-copies a record slice.
func CloneRecords(src []Record) []Record {
	if src == nil {
		return nil
	}
	dst := make([]Record, len(src))
	for i, r := range src {
		dst[i] = r.Clone()
	}
	return dst
}

// Candidate is an entry discovered on the ranking page, pending detail retrieval.
type Candidate struct {
	Rank       int    `json:"rank"`
	ID         string `json:"id"`
	Name       string `json:"name"`
	HitsPerDay int    `json:"hits_per_day"`
}

// Document is a fetched page.
type Document struct {
	URL        string
	StatusCode int
	Body       []byte
	Duration   time.Duration
}

// Outcome tags the result of a single extraction or fetch step.
type Outcome string

// Outcome values.
const (
	OutcomeOK    Outcome = "ok"
	OutcomeEmpty Outcome = "empty"
	OutcomeFault Outcome = "fault"
)

// IntPtr returns a pointer to v.
func IntPtr(v int) *int { return &v }

// FloatPtr returns a pointer to v.
func FloatPtr(v float64) *float64 { return &v }
