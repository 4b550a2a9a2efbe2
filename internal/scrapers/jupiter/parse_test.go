package jupiter

import (
	"context"
	"encoding/json"
	"matrusp-crawler/internal/htmlutil"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	_ "embed"
)

//go:embed testdata/units.html
var unitsHtml string

//go:embed testdata/subjects_55.html
var subjects55Html string

//go:embed testdata/sessions_SMA0301.html
var sessionsSMA0301Html string

//go:embed testdata/info_SMA0301.html
var infoSMA0301Html string

//go:embed testdata/info_SMA0302.html
var infoSMA0302Html string

func parseDoc(t testing.TB, markup string) *goquery.Document {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		t.Fatal(err)
	}
	return doc
}

func leafTables(t testing.TB, markup string) []*goquery.Selection {
	return htmlutil.LeafTables(context.Background(), parseDoc(t, markup).Selection)
}

func date(t testing.TB, text string) *Date {
	d, err := ParseDate(text)
	if err != nil {
		t.Fatal(err)
	}
	return &d
}

func TestParseUnits(t *testing.T) {
	units := ParseUnits(context.Background(), parseDoc(t, unitsHtml))
	require.Equal(t, []Unit{
		{Code: 55, Name: "Instituto de Ciências Matemáticas e de Computação"},
		{Code: 18, Name: "Escola de Engenharia de São Carlos"},
	}, units)
}

func TestParseUnitsLastSeenWins(t *testing.T) {
	doc := parseDoc(t, `
<a href="jupColegiadoMenu.jsp?codcg=7">Old name</a>
<a href="jupColegiadoMenu.jsp?codcg=8">Other</a>
<a href="jupColegiadoMenu.jsp?codcg=7">New name</a>`)

	require.Equal(t, []Unit{
		{Code: 7, Name: "New name"},
		{Code: 8, Name: "Other"},
	}, ParseUnits(context.Background(), doc))
}

func TestParseSubjects(t *testing.T) {
	subjects := ParseSubjects(context.Background(), parseDoc(t, subjects55Html), 55)
	require.Equal(t, []Subject{
		{Code: "SMA0301", Name: "Cálculo I", UnitCode: 55},
		{Code: "SMA0302", Name: "Cálculo II", UnitCode: 55},
	}, subjects)

	padded := parseDoc(t, `<a href="obterTurma?sgldis=ACH%20101">Padded</a>`)
	require.Equal(t, []Subject{
		{Code: "ACH 101", Name: "Padded", UnitCode: 86},
	}, ParseSubjects(context.Background(), padded, 86))
}

func TestScheduleFromRows(t *testing.T) {
	table := []struct {
		name     string
		rows     [][]string
		expected []ScheduleEntry
	}{
		{
			name: "co-taught slot keeps end time",
			rows: [][]string{
				{"seg", "08:00", "10:00", "Alice"},
				{"", "", "10:00", "Bob"},
			},
			expected: []ScheduleEntry{
				{Weekday: "seg", Start: "08:00", End: "10:00", Teachers: []string{"Alice", "Bob"}},
			},
		},
		{
			name: "co-taught slot extends end time",
			rows: [][]string{
				{"ter", "14:00", "16:00", "Carla"},
				{"", "", "18:00", "Diego"},
			},
			expected: []ScheduleEntry{
				{Weekday: "ter", Start: "14:00", End: "18:00", Teachers: []string{"Carla", "Diego"}},
			},
		},
		{
			name: "earlier end time is not taken",
			rows: [][]string{
				{"qua", "08:00", "12:00", "Alice"},
				{"", "", "10:00", "Bob"},
			},
			expected: []ScheduleEntry{
				{Weekday: "qua", Start: "08:00", End: "12:00", Teachers: []string{"Alice", "Bob"}},
			},
		},
		{
			name: "new slot on the same day",
			rows: [][]string{
				{"Horário", "", "", "Prof(a)."},
				{"seg", "08:00", "10:00", "Alice"},
				{"", "14:00", "16:00", "Bob"},
				{"qui", "10:00", "12:00", "Carla"},
			},
			expected: []ScheduleEntry{
				{Weekday: "seg", Start: "08:00", End: "10:00", Teachers: []string{"Alice"}},
				{Weekday: "seg", Start: "14:00", End: "16:00", Teachers: []string{"Bob"}},
				{Weekday: "qui", Start: "10:00", End: "12:00", Teachers: []string{"Carla"}},
			},
		},
		{
			name: "continuation without a previous row",
			rows: [][]string{
				{"", "", "10:00", "Bob"},
				{"", "08:00", "10:00", "Bob"},
				{"short", "row"},
			},
			expected: nil,
		},
	}

	for _, row := range table {
		t.Run(row.name, func(t *testing.T) {
			diff := cmp.Diff(row.expected, scheduleFromRows(row.rows))
			if diff != "" {
				t.Fatal(diff)
			}
		})
	}
}

func TestEnrollmentFromRows(t *testing.T) {
	out := enrollmentFromRows([][]string{
		{"", "Vagas", "Inscritos", "Pendentes", "Matriculados"},
		{"Obrigatória", "20", "25", "3", "18"},
		{"", "Grupo A", "10", "12", "1", "9"},
	})
	expected := map[string]EnrollmentGroup{
		"Obrigatória": {
			Seats:      20,
			Registered: 25,
			Pending:    3,
			Enrolled:   18,
			Subgroups: map[string]EnrollmentDetail{
				"Grupo A": {Seats: 10, Registered: 12, Pending: 1, Enrolled: 9},
			},
		},
	}
	if diff := cmp.Diff(expected, out); diff != "" {
		t.Fatal(diff)
	}
}

func TestEnrollmentSubgroupBeforeCategory(t *testing.T) {
	out := enrollmentFromRows([][]string{
		{"", "Grupo A", "10", "12", "1", "9"},
		{"Optativa", "-", "", "N/A", "7"},
		{"", "Grupo B", "x", "1", "2", "3"},
		{"Optativa Livre", "1", "2", "3", "4"},
	})
	require.Equal(t, map[string]EnrollmentGroup{
		"Optativa": {
			Enrolled: 7,
			Subgroups: map[string]EnrollmentDetail{
				"Grupo B": {Registered: 1, Pending: 2, Enrolled: 3},
			},
		},
		"Optativa Livre": {
			Seats: 1, Registered: 2, Pending: 3, Enrolled: 4,
			Subgroups: map[string]EnrollmentDetail{},
		},
	}, out)
}

func TestParseCount(t *testing.T) {
	table := []struct {
		text     string
		expected int
	}{
		{text: "42", expected: 42},
		{text: "0", expected: 0},
		{text: "-", expected: 0},
		{text: "", expected: 0},
		{text: "N/A", expected: 0},
		{text: "-3", expected: 0},
		{text: "4 h", expected: 0},
		{text: "99999999999999999999999", expected: 0},
	}
	for _, row := range table {
		require.Equal(t, row.expected, parseCount(row.text), row.text)
	}
}

func TestSectionFromRows(t *testing.T) {
	section := sectionFromRows([][]string{
		{"Código da Turma", "2024102 Prática"},
		{"Código da Turma Teórica", "2024101"},
		{"Início", "3/8/2024"},
		{"Fim", "sem data"},
		{"Tipo da Turma", "Prática"},
		{"Observações", "Laboratório"},
		{"Desconhecido", "ignorado"},
		{"sozinho"},
	})
	expected := ClassSection{
		Code:       "2024102",
		TheoryCode: "2024101",
		StartDate:  date(t, "03/08/2024"),
		Kind:       "Prática",
		Remarks:    "Laboratório",
	}
	if diff := cmp.Diff(expected, section); diff != "" {
		t.Fatal(diff)
	}
}

func TestParseSections(t *testing.T) {
	sections, dropped := ParseSections(leafTables(t, sessionsSMA0301Html))

	expected := []ClassSection{
		{
			Code:      "2024101",
			StartDate: date(t, "26/02/2024"),
			EndDate:   date(t, "29/06/2024"),
			Kind:      "Teórica",
			Remarks:   "Turma para ingressantes",
			Schedule: []ScheduleEntry{
				{Weekday: "seg", Start: "08:00", End: "10:00", Teachers: []string{"Alice", "Bob"}},
				{Weekday: "seg", Start: "14:00", End: "16:00", Teachers: []string{"Alice"}},
				{Weekday: "qua", Start: "08:00", End: "10:00", Teachers: []string{"Alice"}},
			},
			Enrollment: map[string]EnrollmentGroup{
				"Obrigatória": {
					Seats: 20, Registered: 25, Pending: 3, Enrolled: 18,
					Subgroups: map[string]EnrollmentDetail{
						"Grupo A": {Seats: 10, Registered: 12, Pending: 1, Enrolled: 9},
					},
				},
				"Optativa Livre": {
					Seats:     5,
					Subgroups: map[string]EnrollmentDetail{},
				},
			},
		},
		{
			Code:       "2024102",
			TheoryCode: "2024101",
			Kind:       "Prática",
			Schedule: []ScheduleEntry{
				{Weekday: "ter", Start: "14:00", End: "18:00", Teachers: []string{"Carla", "Diego"}},
			},
			Enrollment: map[string]EnrollmentGroup{
				"Obrigatória": {
					Seats: 30, Registered: 12, Enrolled: 12,
					Subgroups: map[string]EnrollmentDetail{},
				},
			},
		},
	}
	if diff := cmp.Diff(expected, sections); diff != "" {
		t.Fatal(diff)
	}

	require.Len(t, dropped, 1)
	require.Equal(t, "2024103", dropped[0].Code)
	require.ErrorIs(t, dropped[0].Reason, ErrMissingData)
}

func TestParseSectionsKeepsOnlyComplete(t *testing.T) {
	header := `<table><tr><td>Código da Turma</td><td>%s</td></tr></table>`
	schedule := `<table><tr><td>Horário</td></tr><tr><td>seg</td><td>08:00</td><td>10:00</td><td>Alice</td></tr></table>`
	enrollment := `<table><tr><td></td><td>Vagas</td><td>I</td><td>P</td><td>M</td></tr><tr><td>Obrigatória</td><td>1</td><td>1</td><td>0</td><td>1</td></tr></table>`

	table := []struct {
		name    string
		markup  string
		kept    []string
		dropped []string
	}{
		{
			name:    "schedule without enrollment",
			markup:  strings.ReplaceAll(header, "%s", "A") + schedule,
			dropped: []string{"A"},
		},
		{
			name:    "enrollment without schedule",
			markup:  strings.ReplaceAll(header, "%s", "B") + enrollment,
			dropped: []string{"B"},
		},
		{
			name:   "both present",
			markup: strings.ReplaceAll(header, "%s", "C") + enrollment + schedule,
			kept:   []string{"C"},
		},
		{
			name: "data does not leak into the next section",
			markup: strings.ReplaceAll(header, "%s", "D") + schedule + enrollment +
				strings.ReplaceAll(header, "%s", "E"),
			kept:    []string{"D"},
			dropped: []string{"E"},
		},
		{
			name:   "tables before any header",
			markup: schedule + enrollment,
		},
	}

	for _, row := range table {
		t.Run(row.name, func(t *testing.T) {
			sections, dropped := ParseSections(leafTables(t, row.markup))
			var kept []string
			for _, s := range sections {
				require.NotEmpty(t, s.Schedule)
				require.NotEmpty(t, s.Enrollment)
				kept = append(kept, s.Code)
			}
			var droppedCodes []string
			for _, d := range dropped {
				droppedCodes = append(droppedCodes, d.Code)
			}
			require.Equal(t, row.kept, kept)
			require.Equal(t, row.dropped, droppedCodes)
		})
	}
}

func TestClassifySessionTable(t *testing.T) {
	tables := leafTables(t, sessionsSMA0301Html)
	var kinds []TableKind
	for _, table := range tables {
		kinds = append(kinds, ClassifySessionTable(table))
	}
	require.Equal(t, []TableKind{
		TABLE_SESSION_HEADER, TABLE_SCHEDULE, TABLE_IGNORED, TABLE_ENROLLMENT,
		TABLE_SESSION_HEADER, TABLE_SCHEDULE, TABLE_ENROLLMENT,
		TABLE_SESSION_HEADER, TABLE_SCHEDULE,
	}, kinds)
}

func TestParseCourseInfo(t *testing.T) {
	campusOf := func(unitName string) string {
		require.Equal(t, "Instituto de Ciências Matemáticas e de Computação", unitName)
		return "São Carlos"
	}

	info, err := ParseCourseInfo(leafTables(t, infoSMA0301Html), campusOf)
	require.NoError(t, err)
	require.Equal(t, CourseInfo{
		UnitName:       "Instituto de Ciências Matemáticas e de Computação",
		DepartmentName: "Matemática",
		CampusName:     "São Carlos",
		Code:           "SMA0301",
		Name:           "Cálculo I",
		Objectives:     "Introduzir o cálculo diferencial e integral.",
		ShortProgram:   "Limites. Derivadas.Integrais.",
		LectureCredits: 4,
		WorkCredits:    0,
	}, info)
}

func TestParseCourseInfoWrappedUnitName(t *testing.T) {
	markup := `<table>
		<tr><td><b>Instituto de Ciências
			Matemáticas e de   Computação</b></td></tr>
		<tr><td>Matemática</td></tr>
		<tr><td><span>Disciplina: SMA0301 - Cálculo I</span></td></tr>
	</table>`
	catalog := NewCatalog([]Unit{{Code: 55, Name: "Instituto de Ciências Matemáticas e de Computação"}}, nil)

	info, err := ParseCourseInfo(leafTables(t, markup), catalog.CampusOf)
	require.NoError(t, err)
	require.Equal(t, "Instituto de Ciências Matemáticas e de Computação", info.UnitName)
	require.Equal(t, "São Carlos", info.CampusName)
}

func TestParseCourseInfoFailures(t *testing.T) {
	campusOf := func(string) string { return "Outro" }

	_, err := ParseCourseInfo(leafTables(t, infoSMA0302Html), campusOf)
	require.ErrorIs(t, err, ErrMissingData)

	malformed := `<table>
		<tr><td>Unidade</td></tr>
		<tr><td>Disciplina: SMA0301 - Cálculo I</td></tr>
	</table>`
	_, err = ParseCourseInfo(leafTables(t, malformed), campusOf)
	require.ErrorIs(t, err, ErrAssertion)

	lowercase := `<table>
		<tr><td>Unidade</td></tr>
		<tr><td>Departamento</td></tr>
		<tr><td>Disciplina: sma0301 - Cálculo I</td></tr>
	</table>`
	_, err = ParseCourseInfo(leafTables(t, lowercase), campusOf)
	require.ErrorIs(t, err, ErrAssertion)
}

func TestCourseInfoRoundTrip(t *testing.T) {
	sections, _ := ParseSections(leafTables(t, sessionsSMA0301Html))
	info, err := ParseCourseInfo(leafTables(t, infoSMA0301Html), func(string) string { return "São Carlos" })
	require.NoError(t, err)
	info.Sections = sections

	data, err := json.Marshal(info)
	require.NoError(t, err)

	var decoded CourseInfo
	require.NoError(t, json.Unmarshal(data, &decoded))
	if diff := cmp.Diff(info, decoded); diff != "" {
		t.Fatal(diff)
	}

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	first := raw["turmas"].([]any)[0].(map[string]any)
	require.Equal(t, "26/02/2024", first["inicio"])
	require.NotContains(t, first, "codigo_teorica")
	require.Contains(t, first, "vagas")
	require.Contains(t, first, "horario")
}

func TestParseDate(t *testing.T) {
	table := []struct {
		text     string
		expected time.Time
		fails    bool
	}{
		{text: "26/02/2024", expected: time.Date(2024, 2, 26, 0, 0, 0, 0, time.UTC)},
		{text: " 3/8/2024 ", expected: time.Date(2024, 8, 3, 0, 0, 0, 0, time.UTC)},
		{text: "01/12/24", expected: time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)},
		{text: "2024-03-15", expected: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)},
		{text: "31/02/2024", fails: true},
		{text: "a definir", fails: true},
		{text: "", fails: true},
	}
	for _, row := range table {
		d, err := ParseDate(row.text)
		if row.fails {
			require.Error(t, err, row.text)
			continue
		}
		require.NoError(t, err, row.text)
		require.True(t, row.expected.Equal(d.Time), row.text)
	}
}
