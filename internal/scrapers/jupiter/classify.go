package jupiter

import (
	"matrusp-crawler/internal/htmlutil"
	"regexp"

	"github.com/PuerkitoBio/goquery"
)

// TableKind is what a leaf table holds, decided by probing its content.
type TableKind int

const (
	TABLE_IGNORED TableKind = iota
	TABLE_HEADER
	TABLE_OBJECTIVES
	TABLE_SHORT_PROGRAM
	TABLE_CREDITS
	TABLE_SESSION_HEADER
	TABLE_SCHEDULE
	TABLE_ENROLLMENT
)

func (k TableKind) String() string {
	switch k {
	case TABLE_HEADER:
		return "header"
	case TABLE_OBJECTIVES:
		return "objectives"
	case TABLE_SHORT_PROGRAM:
		return "short-program"
	case TABLE_CREDITS:
		return "credits"
	case TABLE_SESSION_HEADER:
		return "session-header"
	case TABLE_SCHEDULE:
		return "schedule"
	case TABLE_ENROLLMENT:
		return "enrollment"
	}
	return "ignored"
}

var (
	headerProbe        = regexp.MustCompile(`Disciplina:\s+.{7}\s+-.+`)
	creditsProbe       = regexp.MustCompile(`Créditos\s+Aula`)
	sessionHeaderProbe = regexp.MustCompile(`Código\s+da\s+Turma`)
	activitiesProbe    = regexp.MustCompile(`Atividades\s+Didáticas`)
)

const (
	objectives_title    = "Objetivos"
	short_program_title = "Programa Resumido"
	schedule_marker     = "Horário"
	enrollment_marker   = "Vagas"
)

// ClassifyInfoTable classifies a leaf table of a subject's info document.
func ClassifyInfoTable(table *goquery.Selection) TableKind {
	if htmlutil.ContainsText(table, headerProbe) {
		return TABLE_HEADER
	}
	rows := htmlutil.Rows(table)
	if len(rows) > 0 {
		switch htmlutil.CellText(rows[0]) {
		case objectives_title:
			return TABLE_OBJECTIVES
		case short_program_title:
			return TABLE_SHORT_PROGRAM
		}
	}
	if htmlutil.ContainsText(table, creditsProbe) {
		return TABLE_CREDITS
	}
	return TABLE_IGNORED
}

// ClassifySessionTable classifies a leaf table of a subject's sessions
// document. Activity tables are probed before enrollment ones as they can
// mention seats too.
func ClassifySessionTable(table *goquery.Selection) TableKind {
	switch {
	case htmlutil.ContainsText(table, sessionHeaderProbe):
		return TABLE_SESSION_HEADER
	case htmlutil.ContainsExactText(table, schedule_marker):
		return TABLE_SCHEDULE
	case htmlutil.ContainsText(table, activitiesProbe):
		return TABLE_IGNORED
	case htmlutil.ContainsExactText(table, enrollment_marker):
		return TABLE_ENROLLMENT
	}
	return TABLE_IGNORED
}
