package jupiter

import (
	"matrusp-crawler/internal/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

type scheduleAccumulator struct {
	entry ScheduleEntry
	open  bool
}

func (a *scheduleAccumulator) flush(out *[]ScheduleEntry) {
	if !a.open {
		return
	}
	*out = append(*out, a.entry)
	a.open = false
}

func (a *scheduleAccumulator) start(day, start, end, teacher string) {
	a.entry = ScheduleEntry{
		Weekday:  day,
		Start:    start,
		End:      end,
		Teachers: []string{teacher},
	}
	a.open = true
}

// ParseSchedule reads a schedule table whose rows are day, start time, end
// time and teacher. Blank leading cells continue the previous row.
func ParseSchedule(table *goquery.Selection) []ScheduleEntry {
	var rows [][]string
	for _, row := range htmlutil.Rows(table) {
		rows = append(rows, htmlutil.Cells(row))
	}
	return scheduleFromRows(rows)
}

func scheduleFromRows(rows [][]string) []ScheduleEntry {
	var out []ScheduleEntry
	acc := scheduleAccumulator{}

	for _, cells := range rows {
		if len(cells) == 0 || cells[0] == schedule_marker {
			continue
		}
		if len(cells) < 4 {
			continue
		}
		day, start, end, teacher := cells[0], cells[1], cells[2], cells[3]

		switch {
		case day != "":
			acc.flush(&out)
			acc.start(day, start, end, teacher)
		case start == "":
			// another teacher for the same slot
			if !acc.open {
				continue
			}
			acc.entry.Teachers = append(acc.entry.Teachers, teacher)
			if end > acc.entry.End {
				acc.entry.End = end
			}
		default:
			// another slot on the same day
			if !acc.open {
				continue
			}
			sameDay := acc.entry.Weekday
			acc.flush(&out)
			acc.start(sameDay, start, end, teacher)
		}
	}
	acc.flush(&out)

	return out
}
