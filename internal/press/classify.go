package press

import (
	"net/url"
	"strings"

	"presswatch/app/internal/config"
)

// UnknownNewspaper is reported for URLs whose domain is not configured.
const UnknownNewspaper = "Unknown"

// Classifier maps article URLs to the newspaper and language of their source.
// Matching walks the configured sources in declaration order and picks the
// first whose domain is a substring of the URL host, so overlapping domains
// resolve deterministically.
type Classifier struct {
	sources []config.Source
}

// NewClassifier builds a classifier over the configured source list.
func NewClassifier(sources []config.Source) *Classifier {
	copied := make([]config.Source, len(sources))
	copy(copied, sources)
	for i := range copied {
		copied[i].Domain = strings.ToLower(copied[i].Domain)
	}

	return &Classifier{sources: copied}
}

// NewspaperFor returns the display name of the newspaper publishing at the
// URL's domain, or "Unknown" when no configured domain matches.
func (c *Classifier) NewspaperFor(rawURL string) string {
	if source, ok := c.match(rawURL); ok {
		return source.Newspaper
	}
	return UnknownNewspaper
}

// LanguageFor returns the language of the newspaper publishing at the URL's
// domain. Unrecognised domains default to English.
func (c *Classifier) LanguageFor(rawURL string) string {
	if source, ok := c.match(rawURL); ok {
		return source.Language
	}
	return config.LanguageEnglish
}

func (c *Classifier) match(rawURL string) (config.Source, bool) {
	host := hostOf(rawURL)
	if host == "" {
		return config.Source{}, false
	}

	for _, source := range c.sources {
		if strings.Contains(host, source.Domain) {
			return source, true
		}
	}

	return config.Source{}, false
}

func hostOf(rawURL string) string {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return ""
	}

	if parsed, err := url.Parse(trimmed); err == nil && parsed.Host != "" {
		return strings.TrimPrefix(strings.ToLower(parsed.Hostname()), "www.")
	}

	// Scheme-less values such as "www.example.lk/story".
	host := trimmed
	if idx := strings.IndexAny(host, "/?#"); idx >= 0 {
		host = host[:idx]
	}
	if idx := strings.IndexByte(host, ':'); idx >= 0 {
		host = host[:idx]
	}

	return strings.TrimPrefix(strings.ToLower(host), "www.")
}
