package whitelist

import (
	"net/mail"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/publicsuffix"
)

// Checker reports whether a sender belongs to a trusted domain. Entries
// match the sender domain exactly or by registrable domain, so trusting
// example.com also trusts mail.example.com.
type Checker struct {
	domains map[string]bool
	logger  *zap.Logger
}

// NewChecker creates a new whitelist checker
func NewChecker(domains []string, logger *zap.Logger) *Checker {
	normalized := make(map[string]bool, len(domains))
	var names []string
	for _, domain := range domains {
		d := strings.ToLower(strings.TrimSpace(domain))
		if d == "" || normalized[d] {
			continue
		}
		normalized[d] = true
		names = append(names, d)
	}

	if len(names) > 0 && logger != nil {
		logger.Info("Initialized whitelist checker", zap.Strings("domains", names))
	}

	return &Checker{
		domains: normalized,
		logger:  logger,
	}
}

// IsWhitelisted checks if the sender's domain is trusted. from may be a bare
// address or a display-name form such as "Alice <alice@example.com>".
func (c *Checker) IsWhitelisted(from string) bool {
	if len(c.domains) == 0 {
		return false
	}

	domain := senderDomain(from)
	if domain == "" {
		return false
	}

	matched := c.domains[domain]
	if !matched {
		if registrable, err := publicsuffix.EffectiveTLDPlusOne(domain); err == nil {
			matched = c.domains[registrable]
		}
	}

	if matched && c.logger != nil {
		c.logger.Debug("Domain is whitelisted",
			zap.String("domain", domain),
			zap.String("email", from))
	}
	return matched
}

func senderDomain(from string) string {
	address := strings.TrimSpace(from)
	if parsed, err := mail.ParseAddress(address); err == nil {
		address = parsed.Address
	}

	parts := strings.Split(address, "@")
	if len(parts) != 2 || parts[1] == "" {
		return ""
	}
	return strings.ToLower(strings.TrimSuffix(parts[1], "."))
}
