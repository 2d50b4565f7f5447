// Package extract parses rendered search and profile pages into structured
// records using best-effort selectors. Missing optional sections degrade to
// empty values; only a missing mandatory field fails a parse.
package extract

import (
	"bytes"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jfourny/profilescout/internal/crawler"
)

// Selector sets are ordered from the current site markup to older fallbacks.
var searchResultSelectors = []string{
	"ul.reusable-search__result-list li div.entity-result__item a.app-aware-link[href]",
	"li.reusable-search__result-container a.app-aware-link[href]",
	"div.entity-result__item a.app-aware-link[href]",
}

const (
	nextAnchorSelector = "a.artdeco-pagination__button--next[href]"
	nextButtonSelector = "button[aria-label='Next']"
)

// SearchParser extracts profile links and the next-page link from one
// rendered search-results page.
type SearchParser struct{}

// NewSearchParser creates a SearchParser.
func NewSearchParser() *SearchParser {
	return &SearchParser{}
}

// ParseSearch returns the ordered, page-deduplicated profile URLs on the page
// and the URL of the next results page (empty when this is the last page).
func (p *SearchParser) ParseSearch(body []byte, pageURL string) (crawler.SearchPage, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return crawler.SearchPage{}, fmt.Errorf("parse search html: %w", err)
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return crawler.SearchPage{}, fmt.Errorf("parse search page url: %w", err)
	}

	page := crawler.SearchPage{
		ProfileURLs: profileLinks(doc, base),
	}
	if len(page.ProfileURLs) > 0 {
		page.NextURL = nextPageURL(doc, base)
	}
	return page, nil
}

func profileLinks(doc *goquery.Document, base *url.URL) []string {
	seen := make(map[string]struct{})
	var links []string
	for _, sel := range searchResultSelectors {
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			href, ok := s.Attr("href")
			if !ok {
				return
			}
			normalized, ok := normalizeProfileURL(base, href)
			if !ok {
				return
			}
			if _, dup := seen[normalized]; dup {
				return
			}
			seen[normalized] = struct{}{}
			links = append(links, normalized)
		})
		if len(links) > 0 {
			break
		}
	}
	return links
}

// normalizeProfileURL resolves href against the page URL and canonicalizes it
// so the dedup gate sees one spelling per profile: tracking query parameters
// and fragments are stripped, and only person profile paths pass.
func normalizeProfileURL(base *url.URL, href string) (string, bool) {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", false
	}
	u := base.ResolveReference(ref)
	if !strings.Contains(u.Path, "/in/") {
		return "", false
	}
	u.RawQuery = ""
	u.Fragment = ""
	u.Path = strings.TrimSuffix(u.Path, "/")
	return u.String(), true
}

// nextPageURL prefers an explicit next-page anchor. When the site renders
// pagination as a button with no href, the next URL is synthesized by
// incrementing the page query parameter.
func nextPageURL(doc *goquery.Document, base *url.URL) string {
	if href, ok := doc.Find(nextAnchorSelector).First().Attr("href"); ok && strings.TrimSpace(href) != "" {
		if ref, err := url.Parse(href); err == nil {
			return base.ResolveReference(ref).String()
		}
	}

	btn := doc.Find(nextButtonSelector).First()
	if btn.Length() == 0 {
		return ""
	}
	if _, disabled := btn.Attr("disabled"); disabled {
		return ""
	}
	next := *base
	q := next.Query()
	pageNum := 1
	if raw := q.Get("page"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			pageNum = n
		}
	}
	q.Set("page", strconv.Itoa(pageNum+1))
	next.RawQuery = q.Encode()
	return next.String()
}

// cleanText collapses the whitespace goquery keeps from rendered markup.
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// firstText returns the cleaned text of the first match among selectors.
func firstText(doc *goquery.Document, selectors ...string) string {
	for _, sel := range selectors {
		if s := cleanText(doc.Find(sel).First().Text()); s != "" {
			return s
		}
	}
	return ""
}
