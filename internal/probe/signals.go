package probe

import (
	"regexp"
	"strings"

	"sitegauge/internal/domain"
)

// Keyword lists are matched case-insensitively as plain substrings against the
// (possibly truncated) body sample. Multilingual on purpose; real sites label
// their footers in their own language.
var (
	contactKeywords = []string{
		"contact",
		"contacto",
		"kontakt",
		"contatti",
		"contato",
		"nous contacter",
	}

	legalKeywords = []string{
		"privacy",
		"terms",
		"legal",
		"impressum",
		"aviso legal",
		"politica de privacidad",
		"política de privacidad",
		"términos",
		"condiciones",
	}

	parkingPhrases = []string{
		"domain for sale",
		"buy this domain",
		"this domain is for sale",
		"sedo",
		"afternic",
		"parked",
		"parking",
	}

	// A title counts only when the element is properly closed and has visible
	// content. The tag name is anchored so <titlefoo> does not match.
	titleRe = regexp.MustCompile(`(?is)<title(?:\s[^>]*)?>\s*[^<\s].*?</title>`)
)

// Extract scans the body text for lightweight signals. Pure function, no
// failure modes, no network activity.
func Extract(body string) domain.Signals {
	lower := strings.ToLower(body)
	return domain.Signals{
		HasTitle:        titleRe.MatchString(body),
		HasContactLinks: containsAny(lower, contactKeywords),
		HasLegalLinks:   containsAny(lower, legalKeywords),
		ParkingHit:      containsAny(lower, parkingPhrases),
	}
}

func containsAny(lower string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}
