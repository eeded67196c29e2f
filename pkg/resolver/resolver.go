// Package resolver finds the link to the most recent release notes page on the
// knowledge base landing page.
package resolver

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/dtnitsch/rn-table-scraper/models"
	"github.com/dtnitsch/rn-table-scraper/pkg/parser"
)

// Resolve returns the href of the first itemSelector match carrying an href
// inside the first containerSelector match. The href is returned verbatim.
func Resolve(root []byte, containerSelector, itemSelector string) (string, error) {
	doc, err := parser.Document(root)
	if err != nil {
		return "", err
	}

	container := doc.Find(containerSelector).First()
	if container.Length() == 0 {
		return "", &models.NotFoundError{What: "container", Selector: containerSelector}
	}

	var href string
	container.Find(itemSelector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if v, ok := s.Attr("href"); ok && strings.TrimSpace(v) != "" {
			href = strings.TrimSpace(v)
			return false
		}
		return true
	})
	if href == "" {
		return "", &models.NotFoundError{What: "link", Selector: itemSelector}
	}
	return href, nil
}

// ResolveURL resolves a possibly relative href against the page it came from.
func ResolveURL(href, base string) (string, error) {
	ref, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("invalid link %q: %w", href, err)
	}
	if ref.IsAbs() {
		return href, nil
	}
	b, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid base URL %q: %w", base, err)
	}
	return b.ResolveReference(ref).String(), nil
}
