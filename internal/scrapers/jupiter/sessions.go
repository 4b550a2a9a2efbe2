package jupiter

import (
	"fmt"
	"matrusp-crawler/internal/htmlutil"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	theoryCodeLabel = regexp.MustCompile(`Código\s+da\s+Turma\s+Teórica`)
	codeLabel       = regexp.MustCompile(`Código\s+da\s+Turma`)
	startLabel      = regexp.MustCompile(`Início`)
	endLabel        = regexp.MustCompile(`Fim`)
	kindLabel       = regexp.MustCompile(`Tipo\s+da\s+Turma`)
	remarksLabel    = regexp.MustCompile(`Observações`)
)

// DroppedSection is a section that was found but discarded for lacking a
// schedule or enrollment data.
type DroppedSection struct {
	Code   string
	Reason error
}

type sessionState struct {
	section    ClassSection
	open       bool
	schedule   []ScheduleEntry
	enrollment map[string]EnrollmentGroup

	sections []ClassSection
	dropped  []DroppedSection
}

func (s *sessionState) finalize() {
	if !s.open {
		return
	}
	s.open = false

	switch {
	case len(s.schedule) == 0:
		s.dropped = append(s.dropped, DroppedSection{
			Code:   s.section.Code,
			Reason: fmt.Errorf("%w: section has no schedule", ErrMissingData),
		})
	case len(s.enrollment) == 0:
		s.dropped = append(s.dropped, DroppedSection{
			Code:   s.section.Code,
			Reason: fmt.Errorf("%w: section has no enrollment", ErrMissingData),
		})
	default:
		s.section.Schedule = s.schedule
		s.section.Enrollment = s.enrollment
		s.sections = append(s.sections, s.section)
	}
}

func (s *sessionState) begin(section ClassSection) {
	s.finalize()
	s.section = section
	s.open = true
	s.schedule = nil
	s.enrollment = nil
}

// ParseSections walks the leaf tables of a subject's sessions document in
// order. A section header table closes the previous section, the schedule
// and enrollment tables after it belong to it.
func ParseSections(tables []*goquery.Selection) ([]ClassSection, []DroppedSection) {
	state := sessionState{}

	for _, table := range tables {
		switch ClassifySessionTable(table) {
		case TABLE_SESSION_HEADER:
			state.begin(parseSectionHeader(table))
		case TABLE_SCHEDULE:
			state.schedule = ParseSchedule(table)
		case TABLE_ENROLLMENT:
			state.enrollment = ParseEnrollment(table)
		}
	}
	state.finalize()

	return state.sections, state.dropped
}

func parseSectionHeader(table *goquery.Selection) ClassSection {
	var rows [][]string
	for _, row := range htmlutil.Rows(table) {
		rows = append(rows, htmlutil.Cells(row))
	}
	return sectionFromRows(rows)
}

func sectionFromRows(rows [][]string) ClassSection {
	section := ClassSection{}
	for _, cells := range rows {
		if len(cells) < 2 {
			continue
		}
		label, value := cells[0], cells[1]

		switch {
		case theoryCodeLabel.MatchString(label):
			section.TheoryCode = value
		case codeLabel.MatchString(label):
			fields := strings.Fields(value)
			if len(fields) > 0 {
				section.Code = fields[0]
			}
		case startLabel.MatchString(label):
			date, err := ParseDate(value)
			if err == nil {
				section.StartDate = &date
			}
		case endLabel.MatchString(label):
			date, err := ParseDate(value)
			if err == nil {
				section.EndDate = &date
			}
		case kindLabel.MatchString(label):
			section.Kind = value
		case remarksLabel.MatchString(label):
			section.Remarks = value
		}
	}
	return section
}
