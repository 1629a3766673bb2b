package risk

import (
	"strings"

	"github.com/mikey/trustmail/internal/core"
)

const (
	threatGrammar = "Multiple spelling/grammar errors detected"
	threatCaps    = "Excessive use of capital letters (shouting)"
	reasonCaps    = "Excessive use of capital letters"
)

// MatchReport is the outcome of running the phrase catalog over a text
type MatchReport struct {
	Total            int
	Threats          []string
	Segments         []core.Evidence
	FinancialRequest bool
}

// Matcher runs the phrase catalog over message text
type Matcher struct {
	catalog *Catalog
}

// NewMatcher creates a new matcher backed by catalog
func NewMatcher(catalog *Catalog) *Matcher {
	return &Matcher{catalog: catalog}
}

// Match evaluates every catalog entry in order. The financial request entry
// is flagged but carries no points here; the engine applies its bonus.
func (m *Matcher) Match(text string) MatchReport {
	report := MatchReport{Threats: []string{}, Segments: []core.Evidence{}}
	c := m.catalog

	hit := func(points int, threat, evidence, reason string) {
		report.Total += points
		report.Threats = append(report.Threats, threat)
		report.Segments = append(report.Segments, core.Evidence{Text: evidence, Reason: reason})
	}

	for _, p := range c.phrases {
		if found, ok := p.Match(text); ok {
			hit(p.Weight, p.Description, found, p.Reason)
		}
	}

	if found, ok := c.financial.Match(text); ok {
		report.FinancialRequest = true
		hit(0, c.financial.Description, found, c.financial.Reason)
	}

	if errs := c.grammar.FindAllString(text, -1); len(errs) > grammarThreshold {
		hit(15, threatGrammar, strings.Join(errs[:min(len(errs), grammarSample)], ", "), threatGrammar)
	}

	if shouts := c.caps.FindAllString(text, -1); len(shouts) > capsThreshold {
		hit(10, threatCaps, strings.Join(shouts[:min(len(shouts), capsSample)], " "), reasonCaps)
	}

	if found, ok := c.attachment.Match(text); ok {
		hit(c.attachment.Weight, c.attachment.Description, found, c.attachment.Reason)
	}

	for _, p := range c.impersonation {
		if found, ok := p.Match(text); ok {
			hit(p.Weight, p.Description, found, p.Reason)
		}
	}

	return report
}
