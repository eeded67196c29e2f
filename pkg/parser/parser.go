package parser

import (
	"bufio"
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
)

// Document parses raw markup into a goquery document.
func Document(html []byte) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return doc, nil
}

// Text returns the trimmed text content of a selection.
func Text(s *goquery.Selection) string {
	return strings.TrimSpace(s.Text())
}

// PageTitle recovers a human readable title for the page. go-readability is
// tried first; the <title> element is the fallback. Returns "" when neither works.
func PageTitle(html []byte, pageURL string) string {
	if u, err := url.Parse(pageURL); err == nil {
		rp := readability.NewParser()
		article, err := rp.Parse(bytes.NewReader(html), u)
		if err == nil {
			if title := NormalizeText(article.Title); title != "" {
				return title
			}
		}
	}

	doc, err := Document(html)
	if err != nil {
		return ""
	}
	return NormalizeText(doc.Find("title").First().Text())
}

// NormalizeText trims every line and joins the non-empty ones with single spaces.
func NormalizeText(input string) string {
	var b strings.Builder
	b.Grow(len(input))
	scanner := bufio.NewScanner(strings.NewReader(input))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			b.WriteString(line)
			b.WriteString(" ")
		}
	}
	return strings.TrimSpace(b.String())
}
