package finder

import (
	"unicode/utf8"
)

// GenerateCandidates returns the candidate addresses for a person in probe
// order, most common corporate formats first.
//
// first and last must already be normalized (see NormalizeName). An empty
// first name yields no candidates. An empty last name yields only
// first@domain. Duplicates produced by degenerate names (e.g. a one-letter
// first name) are dropped, keeping the first occurrence.
func GenerateCandidates(first, last, domain string) []string {
	if first == "" {
		return nil
	}
	at := "@" + domain
	if last == "" {
		return []string{first + at}
	}

	fi := initial(first)
	li := initial(last)
	patterns := []string{
		first + at,
		fi + last + at,
		first + "." + last + at,
		first + last + at,
		fi + "." + last + at,
		fi + li + at,
		first + li + at,
		last + first + at,
		last + at,
	}
	return dedupePreserveOrder(patterns)
}

func initial(s string) string {
	_, size := utf8.DecodeRuneInString(s)
	return s[:size]
}

func dedupePreserveOrder(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
