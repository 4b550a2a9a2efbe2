package telemetry

import (
	"strings"
	"sync"
)

type Severity int

const (
	SEVERITY_DEBUG Severity = iota
	SEVERITY_INFO
	SEVERITY_WARNING
	SEVERITY_BROKEN
)

type Report struct {
	Severity Severity
	Id       string
	Params   []any
}

// Recorder is an API that keeps every report in memory, it is meant to be
// injected in tests that need to assert on what was reported.
type Recorder struct {
	mutex   sync.Mutex
	reports []Report
}

func (r *Recorder) record(severity Severity, id string, params []any) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.reports = append(r.reports, Report{Severity: severity, Id: id, Params: params})
}

func (r *Recorder) ReportBroken(id string, params ...any) {
	r.record(SEVERITY_BROKEN, id, params)
}

func (r *Recorder) ReportWarning(id string, params ...any) {
	r.record(SEVERITY_WARNING, id, params)
}

func (r *Recorder) ReportInfo(id string, params ...any) {
	r.record(SEVERITY_INFO, id, params)
}

func (r *Recorder) ReportDebug(msg string, params ...any) {
	r.record(SEVERITY_DEBUG, msg, params)
}

func (r *Recorder) ReportCount(id string, count int64) {
	r.record(SEVERITY_INFO, id, []any{count})
}

// Reports returns a copy of the reports recorded so far.
func (r *Recorder) Reports() []Report {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	out := make([]Report, len(r.reports))
	copy(out, r.reports)
	return out
}

// Find returns the reports of the given severity whose id ends with suffix.
func (r *Recorder) Find(severity Severity, suffix string) []Report {
	var out []Report
	for _, report := range r.Reports() {
		if report.Severity == severity && strings.HasSuffix(report.Id, suffix) {
			out = append(out, report)
		}
	}
	return out
}
