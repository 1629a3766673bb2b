package risk

import (
	"fmt"
	"math"

	"github.com/mikey/trustmail/internal/core"
	"go.uber.org/zap"
)

const noThreatsSummary = "No obvious security threats detected. Email appears legitimate, but always remain vigilant."

// Engine combines the extractors, evaluators and matcher into a single score
type Engine struct {
	catalog     *Catalog
	domains     *DomainEvaluator
	urls        *URLEvaluator
	matcher     *Matcher
	phoneRegion string
	logger      *zap.Logger
}

// NewEngine creates a new risk engine. The catalog is shared read-only.
func NewEngine(catalog *Catalog, phoneRegion string, logger *zap.Logger) *Engine {
	return &Engine{
		catalog:     catalog,
		domains:     NewDomainEvaluator(catalog),
		urls:        NewURLEvaluator(catalog),
		matcher:     NewMatcher(catalog),
		phoneRegion: phoneRegion,
		logger:      logger,
	}
}

// Catalog returns the catalog the engine scores against
func (e *Engine) Catalog() *Catalog {
	return e.catalog
}

// Recommendations returns the catalog advice for level
func (e *Engine) Recommendations(level core.ThreatLevel) []string {
	return e.catalog.Recommendations(level)
}

// Analyze scores text and builds the full evidence trail. The result depends
// only on text and the catalog.
func (e *Engine) Analyze(text string) *core.AnalysisResult {
	w := e.catalog.Weights()
	result := &core.AnalysisResult{
		DetectedThreats:    []string{},
		DomainAnalysis:     []string{},
		URLAnalysis:        []string{},
		Lookalikes:         []core.Lookalike{},
		SuspiciousSegments: []core.Evidence{},
		CatalogVersion:     e.catalog.Version(),
	}

	var total float64

	result.EmailAddresses = ExtractEmailAddresses(text)
	result.Domains = ExtractHosts(text)
	result.URLs = ExtractURLs(text)
	result.PhoneNumbers = ExtractPhoneNumbers(text, e.phoneRegion)

	// addresses carry the domain weight; bare hosts are reported only
	report := func(subject string, r DomainReport) {
		for _, issue := range r.Issues {
			result.DomainAnalysis = append(result.DomainAnalysis, issue)
			result.SuspiciousSegments = append(result.SuspiciousSegments, core.Evidence{Text: subject, Reason: issue})
		}
		if r.Lookalike != nil {
			result.Lookalikes = append(result.Lookalikes, *r.Lookalike)
		}
	}
	for _, addr := range result.EmailAddresses {
		r := e.domains.EvaluateAddress(addr)
		total += float64(r.RiskScore) * w.Domain
		report(addr, r)
	}
	for _, host := range result.Domains {
		report(host, e.domains.EvaluateHost(host))
	}

	urlReport := e.urls.Evaluate(result.URLs)
	total += float64(urlReport.RiskScore) * w.URL
	result.URLAnalysis = append(result.URLAnalysis, urlReport.Issues...)
	result.SuspiciousSegments = append(result.SuspiciousSegments, urlReport.Evidence...)

	match := e.matcher.Match(text)
	total += float64(match.Total)
	if match.FinancialRequest {
		total += float64(w.FinancialBonus)
	}
	result.DetectedThreats = append(result.DetectedThreats, match.Threats...)
	result.SuspiciousSegments = append(result.SuspiciousSegments, match.Segments...)

	result.RiskScore = clampScore(total)
	result.ThreatLevel = e.catalog.Level(result.RiskScore)
	result.Recommendations = e.catalog.Recommendations(result.ThreatLevel)
	result.Summary = summarize(result)

	e.logger.Debug("Analysed text",
		zap.Int("risk_score", result.RiskScore),
		zap.String("threat_level", string(result.ThreatLevel)),
		zap.Int("threats", len(result.DetectedThreats)),
		zap.Int("domain_issues", len(result.DomainAnalysis)),
		zap.Int("url_issues", len(result.URLAnalysis)))

	return result
}

func clampScore(total float64) int {
	score := int(math.Round(total))
	if score > 100 {
		return 100
	}
	if score < 0 {
		return 0
	}
	return score
}

func summarize(r *core.AnalysisResult) string {
	if len(r.DetectedThreats) == 0 && len(r.DomainAnalysis) == 0 && len(r.URLAnalysis) == 0 {
		return noThreatsSummary
	}
	return fmt.Sprintf("Analysis complete: %d threat pattern(s), %d domain issue(s), %d URL concern(s) detected. Risk score: %d/100.",
		len(r.DetectedThreats), len(r.DomainAnalysis), len(r.URLAnalysis), r.RiskScore)
}
