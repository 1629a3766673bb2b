package risk

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/mikey/trustmail/internal/core"
)

const (
	issueMalformedURL    = "Malformed URLs detected"
	issueShortenedURL    = "Shortened URLs detected (potential redirect risk)"
	issueSuspiciousHost  = "URLs pointing to suspicious domains"
	issueIPHost          = "URLs using IP addresses instead of domain names"
	issueSuspiciousPaths = "URLs contain suspicious security-related paths"
)

var ipHost = regexp.MustCompile(`^\d+\.\d+\.\d+\.\d+`)

// URLReport is the aggregated outcome of scoring a set of URLs
type URLReport struct {
	RiskScore int
	Issues    []string
	Evidence  []core.Evidence
}

// URLEvaluator scores links against the catalog
type URLEvaluator struct {
	catalog *Catalog
}

// NewURLEvaluator creates a new evaluator backed by catalog
func NewURLEvaluator(catalog *Catalog) *URLEvaluator {
	return &URLEvaluator{catalog: catalog}
}

// Evaluate scores every URL and sums the points, clamped to 100. A URL that
// fails to parse is counted as malformed and the rest are still scored.
func (u *URLEvaluator) Evaluate(urls []string) URLReport {
	report := URLReport{Issues: []string{}, Evidence: []core.Evidence{}}
	c := u.catalog

	add := func(raw string, points int, issue string) {
		report.RiskScore += points
		report.Issues = append(report.Issues, issue)
		report.Evidence = append(report.Evidence, core.Evidence{Text: raw, Reason: issue})
	}

	for _, raw := range urls {
		parsed, err := url.Parse(raw)
		if err != nil || parsed.Hostname() == "" {
			add(raw, 10, issueMalformedURL)
			continue
		}
		host := strings.ToLower(parsed.Hostname())

		if containsAny(host, c.shorteners) {
			add(raw, 20, issueShortenedURL)
		}
		if hasAnySuffix(host, c.urlSuspiciousTLDs) {
			add(raw, 25, issueSuspiciousHost)
		}
		if ipHost.MatchString(host) {
			add(raw, 30, issueIPHost)
		}
		if containsAny(parsed.Path, c.sensitivePaths) {
			add(raw, 15, issueSuspiciousPaths)
		}
	}

	if report.RiskScore > 100 {
		report.RiskScore = 100
	}
	return report
}
