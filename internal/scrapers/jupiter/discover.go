package jupiter

import (
	"context"
	"matrusp-crawler/internal/htmlutil"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	unitLinkPattern    = regexp.MustCompile(`jupColegiadoMenu`)
	unitCodePattern    = regexp.MustCompile(`codcg=(\d+)`)
	subjectLinkPattern = regexp.MustCompile(`obterTurma`)
	subjectCodePattern = regexp.MustCompile(`sgldis=([A-Z0-9\s]{7})`)
)

// ParseUnits reads the unit listing. Units are returned in the order they
// are first linked, a unit linked twice keeps the name of its last link.
func ParseUnits(ctx context.Context, doc *goquery.Document) []Unit {
	anchors := htmlutil.GetAnchors(ctx, doc.Find("a"), unitLinkPattern)

	var units []Unit
	index := map[int]int{}
	for _, a := range anchors {
		match := unitCodePattern.FindStringSubmatch(a.Href)
		if match == nil {
			continue
		}
		code, err := strconv.Atoi(match[1])
		if err != nil {
			continue
		}
		if i, seen := index[code]; seen {
			units[i].Name = a.Name
			continue
		}
		index[code] = len(units)
		units = append(units, Unit{Code: code, Name: a.Name})
	}
	return units
}

// ParseSubjects reads the subject listing of a unit. Links that do not carry
// a subject code are decorative and skipped, a subject linked twice keeps the
// text of its last link.
func ParseSubjects(ctx context.Context, doc *goquery.Document, unitCode int) []Subject {
	anchors := htmlutil.GetAnchors(ctx, doc.Find("a"), subjectLinkPattern)

	var subjects []Subject
	index := map[string]int{}
	for _, a := range anchors {
		href, err := decodeQuery(a.Href)
		if err != nil {
			continue
		}
		match := subjectCodePattern.FindStringSubmatch(href)
		if match == nil {
			continue
		}
		code := strings.TrimSpace(match[1])
		if i, seen := index[code]; seen {
			subjects[i].Name = a.Name
			continue
		}
		index[code] = len(subjects)
		subjects = append(subjects, Subject{
			Code:     code,
			Name:     a.Name,
			UnitCode: unitCode,
		})
	}
	return subjects
}

// subject codes may be padded with spaces, which show up escaped in hrefs.
func decodeQuery(href string) (string, error) {
	return url.QueryUnescape(href)
}
