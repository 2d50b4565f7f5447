package extract

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/jfourny/profilescout/internal/crawler"
)

var (
	nameSelectors = []string{
		"li.inline.t-24.t-black.t-normal.break-words",
		"h1.text-heading-xlarge",
		"main h1",
	}
	headlineSelectors = []string{
		"h2.mt1.t-18.t-black.t-normal.break-words",
		"div.text-body-medium.break-words",
	}
	locationSelectors = []string{
		"li.t-16.t-black.t-normal.inline-block",
		"span.text-body-small.inline.t-black--light.break-words",
	}
	positionSelectors = []string{
		"section#experience-section li.pv-entity__position-group-pager h3.t-16.t-black.t-bold a",
		"section#experience-section li h3",
	}
	educationItemSelectors = []string{
		"section#education-section li.education__list-item",
		"section#education-section li.pv-education-entity",
	}
	skillSelectors = []string{
		"section.pv-skill-categories-section span.pv-skill-category-entity__name-text",
		"section#skills-section span.pv-skill-category-entity__name-text",
	}
)

// ProfileExtractor parses rendered profile HTML into a ProfileRecord, keeping
// only education entries that match the target country and one of the target
// fields of study. Name and profile URL are mandatory; every other field
// degrades to empty rather than failing the record.
type ProfileExtractor struct {
	country string
	fields  []string
}

// NewProfileExtractor builds an extractor for the given country keyword and
// field-of-study keywords. Matching is case-insensitive substring.
func NewProfileExtractor(country string, fields []string) *ProfileExtractor {
	lowered := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.ToLower(strings.TrimSpace(f))
		if f != "" {
			lowered = append(lowered, f)
		}
	}
	return &ProfileExtractor{
		country: strings.ToLower(strings.TrimSpace(country)),
		fields:  lowered,
	}
}

// ParseProfile builds the record, or fails with ExtractionError when the page
// lacks a name. A record with zero qualifying educations is returned as-is;
// the caller decides whether to emit it.
func (e *ProfileExtractor) ParseProfile(body []byte, profileURL string, scrapedAt time.Time) (crawler.ProfileRecord, error) {
	if profileURL == "" {
		return crawler.ProfileRecord{}, &crawler.ExtractionError{URL: profileURL, Field: "profile_url"}
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return crawler.ProfileRecord{}, fmt.Errorf("parse profile html: %w", err)
	}

	name := firstText(doc, nameSelectors...)
	if name == "" {
		return crawler.ProfileRecord{}, &crawler.ExtractionError{URL: profileURL, Field: "name"}
	}

	return crawler.ProfileRecord{
		Name:            name,
		Headline:        firstText(doc, headlineSelectors...),
		Location:        firstText(doc, locationSelectors...),
		CurrentPosition: firstText(doc, positionSelectors...),
		Educations:      e.educations(doc),
		Skills:          skills(doc),
		ProfileURL:      profileURL,
		ScrapedAt:       scrapedAt,
	}, nil
}

func (e *ProfileExtractor) educations(doc *goquery.Document) []crawler.Education {
	var out []crawler.Education
	for _, sel := range educationItemSelectors {
		items := doc.Find(sel)
		if items.Length() == 0 {
			continue
		}
		items.Each(func(_ int, s *goquery.Selection) {
			edu := crawler.Education{
				Institution: cleanText(s.Find("h3.pv-entity__school-name").First().Text()),
				Field:       cleanText(s.Find("p.pv-entity__degree-name span").Last().Text()),
				Years:       cleanText(s.Find("p.pv-entity__dates span").Last().Text()),
			}
			if edu.Institution == "" && edu.Field == "" {
				return
			}
			if e.qualifies(edu) {
				out = append(out, edu)
			}
		})
		break
	}
	return out
}

// qualifies applies the country and field filter to one education entry. The
// country keyword is matched against institution and years text (sites often
// fold the country into either); the field keywords are matched against the
// field and institution text.
func (e *ProfileExtractor) qualifies(edu crawler.Education) bool {
	if e.country != "" {
		place := strings.ToLower(edu.Institution + " " + edu.Years)
		if !strings.Contains(place, e.country) {
			return false
		}
	}
	if len(e.fields) == 0 {
		return true
	}
	study := strings.ToLower(edu.Field + " " + edu.Institution)
	for _, kw := range e.fields {
		if strings.Contains(study, kw) {
			return true
		}
	}
	return false
}

// skills returns the listed skills as an ordered set; profiles with no skills
// section yield an empty (non-nil) slice.
func skills(doc *goquery.Document) []string {
	out := []string{}
	seen := make(map[string]struct{})
	for _, sel := range skillSelectors {
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			skill := cleanText(s.Text())
			if skill == "" {
				return
			}
			if _, dup := seen[skill]; dup {
				return
			}
			seen[skill] = struct{}{}
			out = append(out, skill)
		})
		if len(out) > 0 {
			break
		}
	}
	return out
}
