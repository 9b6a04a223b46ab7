package finder

import (
	"strings"
)

// ExtractRootDomain reduces a company website to a bare host suitable for the
// right-hand side of an email address.
//
// At most one leading scheme ("http://" or "https://") and one leading "www."
// are removed, and everything from the first "/" on is dropped. The input is
// not validated: an empty or malformed website yields an empty or malformed
// domain, and the verification service decides what that is worth.
func ExtractRootDomain(website string) string {
	s := strings.TrimSpace(website)
	for _, scheme := range []string{"https://", "http://"} {
		if hasPrefixFold(s, scheme) {
			s = s[len(scheme):]
			break
		}
	}
	if hasPrefixFold(s, "www.") {
		s = s[len("www."):]
	}
	if i := strings.IndexByte(s, '/'); i >= 0 {
		s = s[:i]
	}
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeName lower-cases and trims a person name part.
func NormalizeName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}
