// Package report summarizes a finished crawl.
package report

import (
	"fmt"
	"io"
	"matrusp-crawler/internal/scrapers/jupiter"
	"slices"
	"strconv"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
)

// CampusTotal is the tally of a campus over a run.
type CampusTotal struct {
	Campus     string
	Units      int
	Discovered int
	Processed  int
}

// CampusTotals tallies units, discovered subjects and processed courses per
// campus, sorted by campus name.
func CampusTotals(result jupiter.Result) []CampusTotal {
	totals := map[string]*CampusTotal{}
	get := func(name string) *CampusTotal {
		total, ok := totals[name]
		if !ok {
			total = &CampusTotal{Campus: name}
			totals[name] = total
		}
		return total
	}

	if result.Catalog != nil {
		for _, u := range result.Catalog.Units() {
			total := get(result.Catalog.CampusOfUnit(u.Code))
			total.Units++
			total.Discovered += len(result.Catalog.UnitSubjects(u.Code))
		}
	}
	for _, course := range result.Courses {
		get(course.CampusName).Processed++
	}

	out := make([]CampusTotal, 0, len(totals))
	for _, total := range totals {
		out = append(out, *total)
	}
	slices.SortFunc(out, func(a, b CampusTotal) int {
		if a.Campus < b.Campus {
			return -1
		}
		if a.Campus > b.Campus {
			return 1
		}
		return 0
	})
	return out
}

type dropCount struct {
	reason jupiter.DropReason
	count  int
}

func sortedDrops(dropped map[jupiter.DropReason]int) []dropCount {
	out := []dropCount{}
	for reason, count := range dropped {
		if count == 0 {
			continue
		}
		out = append(out, dropCount{reason: reason, count: count})
	}
	slices.SortFunc(out, func(a, b dropCount) int {
		if a.count != b.count {
			return b.count - a.count
		}
		if a.reason < b.reason {
			return -1
		}
		if a.reason > b.reason {
			return 1
		}
		return 0
	})
	return out
}

// WriteMarkdown writes a markdown document describing the run that started
// at startedAt and produced result.
func WriteMarkdown(w io.Writer, startedAt time.Time, result jupiter.Result) error {
	md := markdown.NewMarkdown(w)
	summary := result.Summary

	md.H1("MatrUSP crawl report")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Started", startedAt.Format("2006-01-02 15:04:05 MST")},
			{"Elapsed", summary.Elapsed.Round(time.Millisecond).String()},
			{"Units", strconv.Itoa(summary.Units)},
			{"Discovered subjects", strconv.Itoa(summary.Discovered)},
			{"Processed subjects", strconv.Itoa(summary.Processed)},
		},
	})
	md.PlainText("")

	writeCampi(md, result)
	writeDrops(md, summary)

	return md.Build()
}

func writeCampi(md *markdown.Markdown, result jupiter.Result) {
	md.H2("Campi")
	md.PlainText("")

	totals := CampusTotals(result)
	if len(totals) == 0 {
		md.PlainText("No units were crawled.")
		md.PlainText("")
		return
	}

	rows := make([][]string, 0, len(totals))
	for _, total := range totals {
		rows = append(rows, []string{
			total.Campus,
			strconv.Itoa(total.Units),
			strconv.Itoa(total.Discovered),
			strconv.Itoa(total.Processed),
		})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Campus", "Units", "Discovered", "Processed"},
		Rows:   rows,
	})
	md.PlainText("")

	if result.Summary.Processed == 0 {
		return
	}
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Processed subjects per campus"),
		piechart.WithShowData(true),
	)
	for _, total := range totals {
		if total.Processed > 0 {
			chart.LabelAndIntValue(total.Campus, uint64(total.Processed))
		}
	}
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func writeDrops(md *markdown.Markdown, summary jupiter.Summary) {
	md.H2("Dropped subjects")
	md.PlainText("")

	drops := sortedDrops(summary.Dropped)
	if len(drops) == 0 {
		md.Tip("No subjects were dropped.")
		md.PlainText("")
		return
	}

	rows := make([][]string, 0, len(drops))
	total := 0
	for _, d := range drops {
		rows = append(rows, []string{string(d.reason), strconv.Itoa(d.count)})
		total += d.count
	}
	md.Table(markdown.TableSet{
		Header: []string{"Reason", "Count"},
		Rows:   rows,
	})
	md.PlainText("")

	failed := summary.Dropped[jupiter.DROP_FETCH_FAILED] + summary.Dropped[jupiter.DROP_BAD_STATUS]
	if failed > 0 {
		md.Warningf("%d of %d dropped subjects could not be downloaded.", failed, total)
	} else {
		md.Note(fmt.Sprintf("%d subjects had nothing to offer or could not be parsed.", total))
	}
	md.PlainText("")
}
