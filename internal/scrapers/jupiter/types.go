package jupiter

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Unit is an organizational unit offering subjects.
type Unit struct {
	Code int
	Name string
}

// Subject is an offered course as listed by its unit.
type Subject struct {
	Code     string
	Name     string
	UnitCode int
}

type CourseInfo struct {
	UnitName       string         `json:"unidade"`
	DepartmentName string         `json:"departamento"`
	CampusName     string         `json:"campus"`
	Code           string         `json:"codigo"`
	Name           string         `json:"nome"`
	Objectives     string         `json:"objetivos"`
	ShortProgram   string         `json:"programa_resumido"`
	LectureCredits int            `json:"creditos_aula"`
	WorkCredits    int            `json:"creditos_trabalho"`
	Sections       []ClassSection `json:"turmas"`
}

// ClassSection is one offered instance of a subject.
type ClassSection struct {
	Code       string                     `json:"codigo"`
	TheoryCode string                     `json:"codigo_teorica,omitempty"`
	StartDate  *Date                      `json:"inicio,omitempty"`
	EndDate    *Date                      `json:"fim,omitempty"`
	Kind       string                     `json:"tipo,omitempty"`
	Remarks    string                     `json:"observacoes,omitempty"`
	Schedule   []ScheduleEntry            `json:"horario"`
	Enrollment map[string]EnrollmentGroup `json:"vagas"`
}

type ScheduleEntry struct {
	Weekday  string   `json:"dia"`
	Start    string   `json:"inicio"`
	End      string   `json:"fim"`
	Teachers []string `json:"professores"`
}

// EnrollmentGroup holds the counts of an enrollment category and of each of
// its subgroups.
type EnrollmentGroup struct {
	Seats      int                         `json:"vagas"`
	Registered int                         `json:"inscritos"`
	Pending    int                         `json:"pendentes"`
	Enrolled   int                         `json:"matriculados"`
	Subgroups  map[string]EnrollmentDetail `json:"grupos"`
}

type EnrollmentDetail struct {
	Seats      int `json:"vagas"`
	Registered int `json:"inscritos"`
	Pending    int `json:"pendentes"`
	Enrolled   int `json:"matriculados"`
}

const date_layout = "02/01/2006"

// day first layouts accepted from the upstream, tried in order.
var date_input_layouts = []string{
	"02/01/2006",
	"2/1/2006",
	"02/01/06",
	"02-01-2006",
	"02.01.2006",
	"2006-01-02",
}

// Date is a calendar day, serialized as dd/mm/yyyy.
type Date struct {
	time.Time
}

// ParseDate reads a day first date.
func ParseDate(text string) (Date, error) {
	text = strings.TrimSpace(text)
	for _, layout := range date_input_layouts {
		t, err := time.ParseInLocation(layout, text, time.UTC)
		if err == nil {
			return Date{Time: t}, nil
		}
	}
	return Date{}, fmt.Errorf("unrecognized date '%s'", text)
}

func (d Date) String() string {
	return d.Format(date_layout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var text string
	err := json.Unmarshal(data, &text)
	if err != nil {
		return err
	}
	t, err := time.ParseInLocation(date_layout, text, time.UTC)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}
