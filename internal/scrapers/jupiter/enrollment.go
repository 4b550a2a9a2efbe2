package jupiter

import (
	"matrusp-crawler/internal/htmlutil"
	"strconv"

	"github.com/PuerkitoBio/goquery"
)

// parseCount reads a non-negative count, anything that is not plain digits
// counts as 0.
func parseCount(text string) int {
	if text == "" {
		return 0
	}
	for _, c := range text {
		if c < '0' || c > '9' {
			return 0
		}
	}
	n, err := strconv.Atoi(text)
	if err != nil {
		return 0
	}
	return n
}

type enrollmentAccumulator struct {
	category string
	group    EnrollmentGroup
	open     bool
}

func (a *enrollmentAccumulator) flush(out map[string]EnrollmentGroup) {
	if !a.open {
		return
	}
	out[a.category] = a.group
	a.open = false
}

// ParseEnrollment reads an enrollment table: five cell rows open a
// category, six cell rows detail a subgroup of the open category.
func ParseEnrollment(table *goquery.Selection) map[string]EnrollmentGroup {
	var rows [][]string
	for _, row := range htmlutil.Rows(table) {
		rows = append(rows, htmlutil.Cells(row))
	}
	return enrollmentFromRows(rows)
}

func enrollmentFromRows(rows [][]string) map[string]EnrollmentGroup {
	out := map[string]EnrollmentGroup{}
	acc := enrollmentAccumulator{}

	for _, cells := range rows {
		switch len(cells) {
		case 5:
			if cells[0] == "" {
				// column titles
				continue
			}
			acc.flush(out)
			acc = enrollmentAccumulator{
				category: cells[0],
				group: EnrollmentGroup{
					Seats:      parseCount(cells[1]),
					Registered: parseCount(cells[2]),
					Pending:    parseCount(cells[3]),
					Enrolled:   parseCount(cells[4]),
					Subgroups:  map[string]EnrollmentDetail{},
				},
				open: true,
			}
		case 6:
			if !acc.open {
				continue
			}
			acc.group.Subgroups[cells[1]] = EnrollmentDetail{
				Seats:      parseCount(cells[2]),
				Registered: parseCount(cells[3]),
				Pending:    parseCount(cells[4]),
				Enrolled:   parseCount(cells[5]),
			}
		}
	}
	acc.flush(out)

	return out
}
