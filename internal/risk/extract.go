package risk

import (
	"regexp"
	"strings"

	"github.com/nyaruka/phonenumbers"
	"golang.org/x/net/publicsuffix"
)

var (
	addressPattern = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	urlPattern     = regexp.MustCompile("https?://[^\\s<>\"{}|\\\\^`\\[\\]]+")
	hostPattern    = regexp.MustCompile(`(?i)\b[a-z0-9](?:[a-z0-9-]*[a-z0-9])?(?:\.[a-z0-9](?:[a-z0-9-]*[a-z0-9])?)*\.[a-z]{2,}\b`)
	phonePattern   = regexp.MustCompile(`\+?\d[\d\s().-]{7,}\d`)
)

// ExtractEmailAddresses returns every address-shaped substring in order of
// appearance. Duplicates are kept.
func ExtractEmailAddresses(text string) []string {
	return nonNil(addressPattern.FindAllString(text, -1))
}

// ExtractURLs returns every http(s) URL in order of appearance. Duplicates
// are kept.
func ExtractURLs(text string) []string {
	return nonNil(urlPattern.FindAllString(text, -1))
}

// ExtractHosts returns bare registrable host names that appear outside of
// any address or URL. Only hosts under an ICANN public suffix are returned
// so file names like report.pdf are ignored.
func ExtractHosts(text string) []string {
	var covered [][]int
	covered = append(covered, addressPattern.FindAllStringIndex(text, -1)...)
	covered = append(covered, urlPattern.FindAllStringIndex(text, -1)...)

	hosts := []string{}
	for _, loc := range hostPattern.FindAllStringIndex(text, -1) {
		if overlaps(loc, covered) {
			continue
		}
		if loc[0] > 0 && text[loc[0]-1] == '@' {
			continue
		}
		host := strings.ToLower(text[loc[0]:loc[1]])
		if !isRegistrable(host) {
			continue
		}
		hosts = append(hosts, host)
	}
	return hosts
}

// ExtractPhoneNumbers returns valid phone numbers in E.164 form. Numbers
// without a country prefix are parsed against region.
func ExtractPhoneNumbers(text, region string) []string {
	numbers := []string{}
	for _, candidate := range phonePattern.FindAllString(text, -1) {
		num, err := phonenumbers.Parse(candidate, region)
		if err != nil {
			continue
		}
		if !phonenumbers.IsValidNumber(num) {
			continue
		}
		numbers = append(numbers, phonenumbers.Format(num, phonenumbers.E164))
	}
	return numbers
}

func isRegistrable(host string) bool {
	suffix, icann := publicsuffix.PublicSuffix(host)
	if !icann || suffix == host {
		return false
	}
	_, err := publicsuffix.EffectiveTLDPlusOne(host)
	return err == nil
}

func overlaps(loc []int, spans [][]int) bool {
	for _, s := range spans {
		if loc[0] < s[1] && s[0] < loc[1] {
			return true
		}
	}
	return false
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
