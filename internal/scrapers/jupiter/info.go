package jupiter

import (
	"fmt"
	"matrusp-crawler/internal/htmlutil"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	disciplinePattern   = regexp.MustCompile(`Disciplina:\s+([A-Z0-9\s]{7})\s-\s(.+)`)
	lectureCreditsLabel = regexp.MustCompile(`Créditos\s+Aula:`)
	workCreditsLabel    = regexp.MustCompile(`Créditos\s+Trabalho:`)
)

// ParseCourseInfo builds the course metadata out of the leaf tables of a
// subject's info document. campusOf resolves a unit name to its campus.
//
// The returned error wraps ErrMissingData when the document has no header
// table and ErrAssertion when the header table cannot be read.
func ParseCourseInfo(tables []*goquery.Selection, campusOf func(unitName string) string) (CourseInfo, error) {
	info := CourseInfo{}
	foundHeader := false

	for _, table := range tables {
		switch ClassifyInfoTable(table) {
		case TABLE_HEADER:
			err := parseHeader(table, &info, campusOf)
			if err != nil {
				return CourseInfo{}, err
			}
			foundHeader = true
		case TABLE_OBJECTIVES:
			info.Objectives = secondRowText(table)
		case TABLE_SHORT_PROGRAM:
			info.ShortProgram = secondRowText(table)
		case TABLE_CREDITS:
			info.LectureCredits, info.WorkCredits = parseCredits(table)
		}
	}

	if !foundHeader {
		return CourseInfo{}, errNoHeaderTable
	}
	return info, nil
}

func parseHeader(table *goquery.Selection, info *CourseInfo, campusOf func(string) string) error {
	strs := htmlutil.StrippedStrings(table)
	if len(strs) < 3 {
		return fmt.Errorf("%w: header table has %d strings, expected at least 3", ErrAssertion, len(strs))
	}
	match := disciplinePattern.FindStringSubmatch(strs[2])
	if match == nil {
		return fmt.Errorf("%w: '%s' is not a valid discipline name", ErrAssertion, strs[2])
	}

	info.UnitName = htmlutil.CollapseSpace(strs[0])
	info.DepartmentName = htmlutil.CollapseSpace(strs[1])
	info.CampusName = campusOf(info.UnitName)
	info.Code = strings.TrimSpace(match[1])
	info.Name = match[2]
	return nil
}

func secondRowText(table *goquery.Selection) string {
	rows := htmlutil.Rows(table)
	if len(rows) < 2 {
		return ""
	}
	return htmlutil.CellText(rows[1])
}

func parseCredits(table *goquery.Selection) (lecture, work int) {
	for _, row := range htmlutil.Rows(table) {
		cells := htmlutil.Cells(row)
		if len(cells) == 0 {
			continue
		}
		value := ""
		if len(cells) > 1 {
			value = cells[1]
		}
		switch {
		case lectureCreditsLabel.MatchString(cells[0]):
			lecture = parseCount(value)
		case workCreditsLabel.MatchString(cells[0]):
			work = parseCount(value)
		}
	}
	return lecture, work
}
