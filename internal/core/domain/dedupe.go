package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

var whitespaceRe = regexp.MustCompile(`\s+`)

const maxSnippetLen = 500

// SanitizeSnippet collapses whitespace and caps the snippet length.
// Snippets are untrusted free text from external sources.
func SanitizeSnippet(snippet string) string {
	s := strings.TrimSpace(whitespaceRe.ReplaceAllString(snippet, " "))
	runes := []rune(s)
	if len(runes) > maxSnippetLen {
		return string(runes[:maxSnippetLen])
	}
	return s
}

// DedupeHash computes the identity of an observed exposure:
// (organization, connector source, matched entity, normalized snippet).
// Candidates with an existing hash for the organization are
// re-observations and are dropped at ingestion.
func DedupeHash(orgID, source, matchedEntity, rawSnippet string) string {
	h := sha256.New()
	parts := []string{
		orgID,
		source,
		strings.ToLower(strings.TrimSpace(matchedEntity)),
		strings.ToLower(SanitizeSnippet(rawSnippet)),
	}
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
