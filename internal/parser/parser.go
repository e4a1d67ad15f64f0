// Package parser extracts structured catalog fields from a DistroWatch-style
// detail page. Extraction is a pipeline of named rules, one per field, run
// over a parsed Page; a failing rule leaves only its own field unset.
package parser

import (
	"bytes"
	"fmt"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/distro-catalog/internal/catalog"
	"github.com/JakeFAU/distro-catalog/internal/classify"
)

// Fields is the structured output of one detail page. Family and
// DesktopEnvironments are derived through the classifier.
type Fields struct {
	Name                string
	Description         string
	OSType              string
	BasedOn             string
	Family              catalog.Family
	Origin              string
	Architecture        string
	Desktop             string
	DesktopEnvironments []catalog.DesktopEnvironment
	Category            string
	Status              string
	Ranking             *int
	Rating              *float64
	Homepage            string
}

// Parser runs the extraction pipeline.
type Parser struct {
	rules      []Rule
	classifier *classify.Classifier
	logger     *zap.Logger
}

// New builds a Parser with the default rule pipeline.
func New(classifier *classify.Classifier, logger *zap.Logger) *Parser {
	return NewWithRules(DefaultRules(), classifier, logger)
}

// NewWithRules builds a Parser with a custom rule pipeline.
func NewWithRules(rules []Rule, classifier *classify.Classifier, logger *zap.Logger) *Parser {
	if classifier == nil {
		classifier = classify.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Parser{rules: rules, classifier: classifier, logger: logger}
}

// Parse extracts fields from an HTML body. It returns ErrNoMetadataBlock and
// empty Fields when the page has no recognizable metadata list.
func (p *Parser) Parse(body []byte) (Fields, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return Fields{}, fmt.Errorf("%w: parse html: %w", catalog.ErrMalformedDocument, err)
	}
	page, err := NewPage(doc)
	if err != nil {
		return Fields{}, err
	}

	var fields Fields
	for _, rule := range p.rules {
		res := runRule(rule, page)
		switch res.Outcome {
		case catalog.OutcomeOK:
			if err := rule.Assign(&fields, res.Value); err != nil {
				p.logger.Debug("field assignment failed",
					zap.String("field", rule.Field),
					zap.String("value", res.Value),
					zap.Error(err),
				)
			}
		case catalog.OutcomeFault:
			p.logger.Debug("field extraction failed", zap.String("field", rule.Field), zap.Error(res.Err))
		case catalog.OutcomeEmpty:
		}
	}

	fields.Family = p.classifier.Family(fields.BasedOn)
	fields.DesktopEnvironments = p.classifier.DesktopEnvironments(fields.Desktop)
	return fields, nil
}

func runRule(rule Rule, page *Page) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = Fault(fmt.Errorf("rule %s panicked: %v", rule.Field, r))
		}
	}()
	return rule.Extract(page)
}
