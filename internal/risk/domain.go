package risk

import (
	"regexp"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/mikey/trustmail/internal/core"
	"golang.org/x/net/idna"
)

const (
	issueInvalidAddress    = "Invalid email format"
	issueSuspiciousTLD     = "Suspicious top-level domain detected"
	issueSpoofing          = "Potential domain spoofing detected"
	issueSecurityKeywords  = "Domain contains suspicious security-related keywords"
	issueHyphens           = "Domain contains excessive hyphens"
	issueDigits            = "Domain contains excessive numbers"
	issueHomograph         = "Domain contains non-Latin characters (potential homograph attack)"
	issueLongDomain        = "Unusually long domain name"
	issueSubdomainSpoofing = "Potential subdomain spoofing detected"
)

// maxLookalikeDistance bounds the edit distance reported as a look-alike
const maxLookalikeDistance = 2

var (
	addressParts   = regexp.MustCompile(`([a-zA-Z0-9._%+-]+)@([a-zA-Z0-9.-]+\.[a-zA-Z]{2,})`)
	confusableRune = regexp.MustCompile(`\p{Cyrillic}|\p{Greek}`)
)

// DomainReport is the outcome of scoring a single address or host
type DomainReport struct {
	Domain    string
	RiskScore int
	Issues    []string
	Lookalike *core.Lookalike
}

// DomainEvaluator scores sender domains against the catalog
type DomainEvaluator struct {
	catalog *Catalog
}

// NewDomainEvaluator creates a new evaluator backed by catalog
func NewDomainEvaluator(catalog *Catalog) *DomainEvaluator {
	return &DomainEvaluator{catalog: catalog}
}

// EvaluateAddress scores the domain part of an email address. An address
// that cannot be parsed scores the maximum.
func (d *DomainEvaluator) EvaluateAddress(address string) DomainReport {
	m := addressParts.FindStringSubmatch(address)
	if m == nil {
		return DomainReport{RiskScore: 100, Issues: []string{issueInvalidAddress}}
	}
	domain := strings.ToLower(m[2])
	return d.evaluate(domain, d.catalog.isLegitimate(domain))
}

// EvaluateHost scores a bare host name found in text. Hosts under a
// legitimate brand's registrable domain are not treated as spoofs.
func (d *DomainEvaluator) EvaluateHost(host string) DomainReport {
	domain := strings.ToLower(host)
	return d.evaluate(domain, d.catalog.isLegitimateSite(domain))
}

func (d *DomainEvaluator) evaluate(domain string, legitimate bool) DomainReport {
	report := DomainReport{Domain: domain, Issues: []string{}}
	c := d.catalog

	add := func(points int, issue string) {
		report.RiskScore += points
		report.Issues = append(report.Issues, issue)
	}

	if hasAnySuffix(domain, c.suspiciousTLDs) {
		add(40, issueSuspiciousTLD)
	}

	if !legitimate {
		for _, spoof := range c.brandSpoofs {
			if spoof.MatchString(domain) {
				add(50, issueSpoofing)
			}
		}
	}

	if containsAny(domain, c.securityKeywords) {
		add(25, issueSecurityKeywords)
	}

	if strings.Count(domain, "-") > 2 {
		add(15, issueHyphens)
	}

	if countDigits(domain) > 3 {
		add(15, issueDigits)
	}

	if confusableRune.MatchString(unicodeForm(domain)) {
		add(35, issueHomograph)
	}

	if len(domain) > 30 {
		add(10, issueLongDomain)
	}

	if parts := strings.Split(domain, "."); !legitimate && len(parts) > 3 {
		inner := strings.Join(parts[len(parts)-3:len(parts)-1], ".")
		if containsAny(inner, c.brandNames) {
			add(30, issueSubdomainSpoofing)
		}
	}

	if report.RiskScore > 100 {
		report.RiskScore = 100
	}
	if !legitimate {
		report.Lookalike = d.lookalike(domain)
	}
	return report
}

// lookalike finds the closest legitimate domain within a small edit distance
func (d *DomainEvaluator) lookalike(domain string) *core.Lookalike {
	var best *core.Lookalike
	for _, legit := range d.catalog.legitimateDomains {
		dist := fuzzy.LevenshteinDistance(domain, legit)
		if dist > maxLookalikeDistance {
			continue
		}
		if best == nil || dist < best.Distance {
			best = &core.Lookalike{Domain: domain, Brand: legit, Distance: dist}
		}
	}
	return best
}

// unicodeForm decodes punycode labels so script checks see the real runes
func unicodeForm(domain string) string {
	decoded, err := idna.ToUnicode(domain)
	if err != nil {
		return domain
	}
	return decoded
}

func countDigits(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}
