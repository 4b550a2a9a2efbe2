package jupiter

import (
	"fmt"
	"net/url"
	"strings"
)

const DefaultBaseUrl = "https://uspdigital.usp.br/jupiterweb"

// Endpoints builds the urls of the upstream documents.
type Endpoints struct {
	base string
}

func NewEndpoints(baseUrl string) Endpoints {
	if baseUrl == "" {
		baseUrl = DefaultBaseUrl
	}
	return Endpoints{base: strings.TrimRight(baseUrl, "/")}
}

// Units is the listing of every unit.
func (e Endpoints) Units() string {
	return e.base + "/jupColegiadoLista?tipo=T"
}

// Subjects is the listing of the subjects offered by a unit.
func (e Endpoints) Subjects(unitCode int) string {
	return fmt.Sprintf("%s/jupDisciplinaLista?letra=A-Z&tipo=T&codcg=%d", e.base, unitCode)
}

// Sessions is the document listing the class sections of a subject.
func (e Endpoints) Sessions(subjectCode string) string {
	return e.base + "/obterTurma?print=true&sgldis=" + url.QueryEscape(subjectCode)
}

// Info is the document describing a subject.
func (e Endpoints) Info(subjectCode string) string {
	return e.base + "/obterDisciplina?print=true&sgldis=" + url.QueryEscape(subjectCode)
}
