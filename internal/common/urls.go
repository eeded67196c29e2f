package common

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var (
	markdownLink = regexp.MustCompile(`^\[.*?\]\((https?://[^\)]+)\)$`)
	httpURL      = regexp.MustCompile(`^https?://[a-zA-Z0-9][-a-zA-Z0-9.:]*[a-zA-Z0-9](/[^\s]*)?$`)
)

// SanitizeURL cleans copy-paste artifacts from a configured URL: surrounding
// whitespace, markdown link syntax, wrapping quotes/brackets and trailing punctuation.
func SanitizeURL(raw string) string {
	cleaned := strings.TrimSpace(raw)

	if m := markdownLink.FindStringSubmatch(cleaned); len(m) > 1 {
		cleaned = m[1]
	}

	cleaned = strings.TrimRight(cleaned, `,.)}]"'>;`)
	cleaned = strings.TrimLeft(cleaned, `(["<'`)

	return strings.TrimSpace(cleaned)
}

// ValidateURL accepts absolute http(s) URLs with a plausible host.
func ValidateURL(u string) error {
	if u == "" {
		return fmt.Errorf("empty URL")
	}
	if strings.Contains(u, " ") {
		return fmt.Errorf("URL contains spaces (encode them as %%20)")
	}
	if !httpURL.MatchString(u) {
		return fmt.Errorf("URL must be absolute http(s)")
	}
	parsed, err := url.Parse(u)
	if err != nil {
		return err
	}
	if parsed.Host == "" || strings.ContainsAny(parsed.Host, "{}[]<>\"'") {
		return fmt.Errorf("invalid host %q", parsed.Host)
	}
	return nil
}

// SanitizeAndValidateURLs returns the cleaned valid URLs and the raw inputs that
// stayed invalid after cleaning.
func SanitizeAndValidateURLs(urls []string) ([]string, []string) {
	sanitized := make([]string, 0, len(urls))
	var invalid []string
	for _, raw := range urls {
		cleaned := SanitizeURL(raw)
		if err := ValidateURL(cleaned); err != nil {
			invalid = append(invalid, raw)
			continue
		}
		sanitized = append(sanitized, cleaned)
	}
	return sanitized, invalid
}

// IsAbsoluteURL reports whether ref carries its own scheme and host.
func IsAbsoluteURL(ref string) bool {
	u, err := url.Parse(ref)
	return err == nil && u.IsAbs() && u.Host != ""
}
