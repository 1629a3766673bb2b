package risk

import (
	"regexp"
	"strings"

	"github.com/mikey/trustmail/internal/core"
	"golang.org/x/net/publicsuffix"
)

// CatalogVersion identifies the pattern tables compiled into this build
const CatalogVersion = "2024.1"

// Weights controls how the sub-scores combine into the final risk score
type Weights struct {
	Domain          float64
	URL             float64
	FinancialBonus  int
	HighThreshold   int
	MediumThreshold int
}

// DefaultWeights returns the tuned production constants
func DefaultWeights() Weights {
	return Weights{
		Domain:          0.6,
		URL:             0.4,
		FinancialBonus:  30,
		HighThreshold:   70,
		MediumThreshold: 40,
	}
}

// Pattern is a single weighted catalog entry. Reason labels the evidence
// segment and defaults to Description.
type Pattern struct {
	ID          string
	Description string
	Reason      string
	Weight      int
	re          *regexp.Regexp
}

// Match returns the first literal match in text, if any
func (p Pattern) Match(text string) (string, bool) {
	loc := p.re.FindStringIndex(text)
	if loc == nil {
		return "", false
	}
	return text[loc[0]:loc[1]], true
}

type levelThreshold struct {
	min   int
	level core.ThreatLevel
}

// Catalog holds every static table the detectors read. It is built once and
// never mutated, so a single instance is shared by all concurrent analyses.
type Catalog struct {
	version string
	weights Weights
	levels  []levelThreshold

	suspiciousTLDs    []string
	urlSuspiciousTLDs []string
	shorteners        []string
	legitimateDomains []string
	brandNames        []string
	brandSpoofs       []*regexp.Regexp
	securityKeywords  []string
	sensitivePaths    []string

	phrases       []Pattern
	financial     Pattern
	grammar       *regexp.Regexp
	caps          *regexp.Regexp
	attachment    Pattern
	impersonation []Pattern

	recommendations map[core.ThreatLevel][]string
}

const (
	grammarThreshold = 3
	grammarSample    = 5
	capsThreshold    = 5
	capsSample       = 3
)

// spoofedBrands are the brands whose look-alike .com domains are flagged
var spoofedBrands = []string{
	"google", "amazon", "paypal", "microsoft", "apple", "netflix",
	"facebook", "twitter", "instagram", "linkedin", "spotify",
}

// substitutions maps a letter to the characters commonly swapped in for it
var substitutions = map[rune]string{
	'a': "[a4@]",
	'o': "[o0]",
	'i': "[i1l]",
	'l': "[l1i]",
	'e': "[e3]",
	's': "[s5$]",
}

// NewCatalog compiles the default tables with the given weights
func NewCatalog(weights Weights) *Catalog {
	c := &Catalog{
		version: CatalogVersion,
		weights: weights,
		levels: []levelThreshold{
			{min: weights.HighThreshold, level: core.ThreatLevelHigh},
			{min: weights.MediumThreshold, level: core.ThreatLevelMedium},
			{min: 0, level: core.ThreatLevelLow},
		},
		suspiciousTLDs: []string{
			".tk", ".ml", ".ga", ".cf", ".top", ".click", ".download", ".work",
			".party", ".review", ".science", ".date", ".faith", ".loan", ".win",
			".bid", ".racing", ".stream",
		},
		urlSuspiciousTLDs: []string{
			".tk", ".ml", ".ga", ".cf", ".top", ".click", ".download",
		},
		shorteners: []string{
			"bit.ly", "tinyurl.com", "t.co", "goo.gl", "ow.ly", "short.link",
			"is.gd", "buff.ly", "adf.ly",
		},
		legitimateDomains: []string{
			"gmail.com", "yahoo.com", "outlook.com", "hotmail.com", "apple.com",
			"microsoft.com", "amazon.com", "paypal.com", "ebay.com", "facebook.com",
			"google.com", "twitter.com", "instagram.com", "linkedin.com",
			"netflix.com", "spotify.com",
		},
		securityKeywords: []string{"secure", "verify", "update"},
		sensitivePaths:   []string{"login", "verify", "secure"},
	}

	for _, d := range c.legitimateDomains {
		c.brandNames = append(c.brandNames, strings.SplitN(d, ".", 2)[0])
	}
	for _, brand := range spoofedBrands {
		c.brandSpoofs = append(c.brandSpoofs, regexp.MustCompile("(?i)"+spoofPattern(brand)+`\.com`))
	}

	c.phrases = []Pattern{
		// financial, lottery and prize scams
		pattern("urgent-action", `urgent.{0,20}action.{0,20}required`, 25, "Urgent action language"),
		pattern("verify-account", `verify.{0,20}account.{0,20}immediately`, 30, "Account verification pressure"),
		pattern("account-suspended", `suspended.{0,20}account|account.{0,20}suspended`, 35, "Account suspension threat"),
		pattern("click-immediately", `click.{0,20}here.{0,20}immediately`, 20, "Immediate action request"),
		pattern("limited-offer", `limited.{0,20}time.{0,20}offer`, 15, "Limited time pressure"),
		pattern("prize-won", `congratulations.{0,20}won`, 40, "Lottery/prize scam language"),
		pattern("inheritance", `inheritance.{0,20}money`, 45, "Inheritance scam"),
		pattern("nigerian-prince", `nigerian.{0,20}prince`, 50, "Classic Nigerian prince scam"),
		pattern("lottery-winner", `lottery.{0,20}winner`, 40, "Lottery scam"),
		pattern("tax-refund", `tax.{0,20}refund`, 30, "Tax refund scam"),
		pattern("irs-refund", `irs.{0,20}refund`, 35, "IRS impersonation"),
		pattern("bitcoin-investment", `bitcoin.{0,20}investment`, 25, "Cryptocurrency scam"),
		pattern("crypto-opportunity", `crypto.{0,20}opportunity`, 25, "Cryptocurrency opportunity scam"),

		// romance and social engineering
		pattern("lonely-widow", `lonely.{0,20}widow`, 35, "Romance scam language"),
		pattern("military-deployment", `military.{0,20}deployment`, 30, "Military romance scam"),
		pattern("love-forever", `love.{0,20}you.{0,20}forever`, 25, "Romance scam language"),

		// tech support scares
		pattern("microsoft-support", `microsoft.{0,20}support`, 30, "Tech support scam"),
		pattern("computer-infected", `computer.{0,20}infected`, 35, "Malware scare tactic"),
		pattern("virus-detected", `virus.{0,20}detected`, 35, "Virus scare tactic"),

		// phishing actions
		pattern("update-payment", `update.{0,20}payment.{0,20}method`, 30, "Payment method phishing"),
		pattern("confirm-identity", `confirm.{0,20}identity`, 25, "Identity confirmation phishing"),
		pattern("security-alert", `security.{0,20}alert`, 20, "Security alert phishing"),

		// generic urgency
		pattern("urgent", `urgent`, 10, "Urgency pressure"),
		pattern("immediate", `immediate`, 10, "Immediate action pressure"),
		pattern("expires-today", `expires.{0,10}today`, 15, "Expiration pressure"),
		pattern("act-now", `act.{0,10}now`, 15, "Act now pressure"),
		pattern("limited-time", `limited.{0,10}time`, 10, "Limited time pressure"),
		pattern("hurry", `hurry`, 10, "Hurry pressure"),
		pattern("dont-delay", `don't.{0,10}delay`, 12, "Don't delay pressure"),
		pattern("final-notice", `final.{0,10}notice`, 20, "Final notice pressure"),
	}

	c.financial = pattern("financial-request",
		`send.{0,20}money|wire.{0,20}transfer|bank.{0,20}details|credit.{0,20}card|social.{0,20}security|ssn`,
		weights.FinancialBonus, "Financial or personal information request detected")

	c.grammar = regexp.MustCompile(`(?i)\b(recieve|seperate|occured|definately|loose|there|youre|its|alot|wich|wont|cant|dont|im|ill|well|theyll|youll|were|where|than|then)\b`)
	c.caps = regexp.MustCompile(`\b[A-Z]{3,}\b`)

	c.attachment = pattern("attachment", `attachment|download|file|pdf|doc|exe|zip`, 15, "Mentions of attachments or downloads").
		withReason("Attachment mention")

	brands := `(bank|paypal|amazon|microsoft|apple|google|facebook|twitter|instagram|netflix|spotify)`
	c.impersonation = []Pattern{
		pattern("from-brand", `from.{0,10}`+brands, 25, "Potential brand impersonation detected").
			withReason("Potential brand impersonation"),
		pattern("brand-support", brands+`.{0,10}support`, 25, "Potential brand impersonation detected").
			withReason("Potential brand impersonation"),
	}

	c.recommendations = map[core.ThreatLevel][]string{
		core.ThreatLevelHigh: {
			"🚨 HIGH RISK: This email shows multiple red flags",
			"🚫 Do not respond, click links, or download attachments",
			"🚫 Do not provide personal or financial information",
			"📧 Report this email as spam/phishing to your email provider",
			"🗑️ Delete this email immediately",
		},
		core.ThreatLevelMedium: {
			"⚠️ MEDIUM RISK: Exercise extreme caution",
			"🔍 Verify sender through official channels (phone, official website)",
			"❌ Avoid clicking any links or downloading attachments",
			"🤔 Be skeptical of any urgent requests",
			"📞 Contact the organization directly if this claims to be from them",
		},
		core.ThreatLevelLow: {
			"✅ Email appears relatively safe",
			"🔍 Still verify important requests independently",
			"🤔 Be cautious with personal information sharing",
			"📧 When in doubt, contact the sender through known channels",
			"🔗 Check where links really lead before clicking them",
		},
	}

	return c
}

// DefaultCatalog compiles the tables with DefaultWeights
func DefaultCatalog() *Catalog {
	return NewCatalog(DefaultWeights())
}

func pattern(id, expr string, weight int, description string) Pattern {
	return Pattern{
		ID:          id,
		Description: description,
		Reason:      description,
		Weight:      weight,
		re:          regexp.MustCompile("(?i)" + expr),
	}
}

func (p Pattern) withReason(reason string) Pattern {
	p.Reason = reason
	return p
}

// spoofPattern expands a brand name into a character class per letter
func spoofPattern(brand string) string {
	var b strings.Builder
	for _, r := range brand {
		if class, ok := substitutions[r]; ok {
			b.WriteString(class)
			continue
		}
		b.WriteString(regexp.QuoteMeta(string(r)))
	}
	return b.String()
}

// Version returns the catalog version string
func (c *Catalog) Version() string {
	return c.version
}

// Weights returns the combination weights
func (c *Catalog) Weights() Weights {
	return c.weights
}

// Patterns returns a copy of the phrase patterns in evaluation order
func (c *Catalog) Patterns() []Pattern {
	out := make([]Pattern, 0, len(c.phrases)+len(c.impersonation)+2)
	out = append(out, c.phrases...)
	out = append(out, c.financial, c.attachment)
	out = append(out, c.impersonation...)
	return out
}

// Level maps a clamped score onto the threshold table
func (c *Catalog) Level(score int) core.ThreatLevel {
	for _, t := range c.levels {
		if score >= t.min {
			return t.level
		}
	}
	return core.ThreatLevelLow
}

// Recommendations returns a fresh copy of the advice for a threat level
func (c *Catalog) Recommendations(level core.ThreatLevel) []string {
	recs := c.recommendations[level]
	out := make([]string, len(recs))
	copy(out, recs)
	return out
}

func (c *Catalog) isLegitimate(domain string) bool {
	for _, d := range c.legitimateDomains {
		if d == domain {
			return true
		}
	}
	return false
}

// isLegitimateSite also accepts hosts under a brand's registrable domain,
// so www.paypal.com passes as paypal.com
func (c *Catalog) isLegitimateSite(host string) bool {
	if c.isLegitimate(host) {
		return true
	}
	registrable, err := publicsuffix.EffectiveTLDPlusOne(host)
	return err == nil && c.isLegitimate(registrable)
}

func hasAnySuffix(s string, suffixes []string) bool {
	for _, suffix := range suffixes {
		if strings.HasSuffix(s, suffix) {
			return true
		}
	}
	return false
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
