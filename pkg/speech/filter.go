package speech

import (
	"net/url"
	"strings"
	"unicode"
)

// Filter removes configured classes of substrings from chunk text before it
// is handed to the engine. Filtering never reorders retained characters; a
// chunk may filter down to nothing and is still emitted as a zero-length
// utterance so trailing silence keeps its slot.
type Filter struct {
	// HashTokens drops hash-prefixed tokens, from the first '#' in a word
	// to the end of that word.
	HashTokens bool

	// WebLinks drops whole words that parse as http/https/www links.
	WebLinks bool

	// MailToLinks drops whole words that parse as mailto links.
	MailToLinks bool
}

// Enabled reports whether any filter kind is active.
func (f Filter) Enabled() bool {
	return f.HashTokens || f.WebLinks || f.MailToLinks
}

// Apply returns buf with all flagged characters removed and the number of
// characters that were dropped. Words are maximal runs of non-whitespace;
// each word is tested independently against every enabled rule and the
// flagged index sets are unioned before deletion.
func (f Filter) Apply(buf []rune) ([]rune, int) {
	if !f.Enabled() || len(buf) == 0 {
		return buf, 0
	}

	flagged := make(map[int]struct{})

	for start := 0; start < len(buf); {
		if unicode.IsSpace(buf[start]) {
			start++
			continue
		}
		end := start
		for end < len(buf) && !unicode.IsSpace(buf[end]) {
			end++
		}

		word := string(buf[start:end])
		if f.HashTokens {
			for i := start; i < end; i++ {
				if buf[i] == '#' {
					for j := i; j < end; j++ {
						flagged[j] = struct{}{}
					}
					break
				}
			}
		}
		if f.WebLinks && isWebLink(word) {
			for i := start; i < end; i++ {
				flagged[i] = struct{}{}
			}
		}
		if f.MailToLinks && isMailToLink(word) {
			for i := start; i < end; i++ {
				flagged[i] = struct{}{}
			}
		}

		start = end
	}

	if len(flagged) == 0 {
		return buf, 0
	}

	out := make([]rune, 0, len(buf)-len(flagged))
	for i, r := range buf {
		if _, drop := flagged[i]; !drop {
			out = append(out, r)
		}
	}
	return out, len(flagged)
}

// isWebLink reports whether word looks like a web link: a known prefix plus
// a syntactically valid URI.
func isWebLink(word string) bool {
	lower := strings.ToLower(word)
	switch {
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):
		u, err := url.ParseRequestURI(word)
		return err == nil && u.Host != ""
	case strings.HasPrefix(lower, "www."):
		u, err := url.ParseRequestURI("http://" + word)
		return err == nil && u.Host != ""
	default:
		return false
	}
}

// isMailToLink reports whether word is a mailto link with a plausible
// address part.
func isMailToLink(word string) bool {
	if !strings.HasPrefix(strings.ToLower(word), "mailto:") {
		return false
	}
	u, err := url.Parse(word)
	if err != nil {
		return false
	}
	return strings.Contains(u.Opaque, "@")
}
