package jupiter

import (
	"matrusp-crawler/internal/campus"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCatalog(t *testing.T) {
	units := []Unit{
		{Code: 55, Name: "ICMC"},
		{Code: 86, Name: "FFLCH"},
		{Code: 500, Name: "Nova Unidade"},
	}
	catalog := NewCatalog(units, map[int][]Subject{
		55: {
			{Code: "SMA0301", Name: "Cálculo I", UnitCode: 55},
			{Code: "SME0110", Name: "Programação", UnitCode: 55},
		},
		86: {
			{Code: "SMA0301", Name: "Cálculo I", UnitCode: 86},
			{Code: "FLC0112", Name: "Filosofia", UnitCode: 86},
		},
	})

	units[0].Name = "changed"
	name, ok := catalog.UnitName(55)
	require.True(t, ok)
	require.Equal(t, "ICMC", name)

	code, ok := catalog.UnitCode("FFLCH")
	require.True(t, ok)
	require.Equal(t, 86, code)
	_, ok = catalog.UnitCode("nowhere")
	require.False(t, ok)

	require.Equal(t, "São Carlos", catalog.CampusOf("ICMC"))
	require.Equal(t, "São Paulo", catalog.CampusOf("FFLCH"))
	require.Equal(t, campus.Unknown, catalog.CampusOf("Nova Unidade"))
	require.Equal(t, campus.Unknown, catalog.CampusOf("nowhere"))

	var codes []string
	for _, s := range catalog.Subjects() {
		codes = append(codes, s.Code)
	}
	require.Equal(t, []string{"SMA0301", "SME0110", "FLC0112"}, codes)
	require.Len(t, catalog.UnitSubjects(86), 1)

	require.Equal(t, map[string][]string{
		"São Carlos":   {"ICMC"},
		"São Paulo":    {"FFLCH"},
		campus.Unknown: {"Nova Unidade"},
	}, catalog.Campi())
	require.Equal(t, map[string][]string{
		"ICMC":         {"SMA0301", "SME0110"},
		"FFLCH":        {"FLC0112"},
		"Nova Unidade": {},
	}, catalog.UnitSubjectCodes())
}

func TestCatalogResolvesUncrawledUnits(t *testing.T) {
	catalog := BuildCatalog(CatalogOptions{
		Crawled: []Unit{{Code: 18, Name: "Escola de Engenharia de São Carlos"}},
		Subjects: map[int][]Subject{
			18: {{Code: "SMA0301", Name: "Cálculo I", UnitCode: 18}},
		},
		Known: []Unit{
			{Code: 55, Name: "Instituto de Ciências\n\tMatemáticas e de Computação"},
			{Code: 18, Name: "Escola de Engenharia de São Carlos"},
		},
	})

	require.Equal(t, "São Carlos", catalog.CampusOf("Instituto de Ciências Matemáticas e de Computação"))
	require.Equal(t, "São Carlos", catalog.CampusOf(" Instituto de Ciências Matemáticas\ne de Computação "))
	require.Equal(t, []Unit{{Code: 18, Name: "Escola de Engenharia de São Carlos"}}, catalog.Units())
	require.Equal(t, map[string][]string{
		"São Carlos": {"Escola de Engenharia de São Carlos"},
	}, catalog.Campi())
	require.Len(t, catalog.Subjects(), 1)
}

func TestCatalogActiveCampi(t *testing.T) {
	resolver, err := campus.NewResolver(campus.DefaultActive)
	require.NoError(t, err)
	catalog := BuildCatalog(CatalogOptions{
		Crawled: []Unit{{Code: 55, Name: "ICMC"}, {Code: 86, Name: "FFLCH"}},
		Campi:   resolver,
	})

	require.Equal(t, "São Carlos", catalog.CampusOf("ICMC"))
	require.Equal(t, campus.Unknown, catalog.CampusOf("FFLCH"))
	require.Equal(t, campus.Unknown, catalog.CampusOfUnit(86))
	require.Equal(t, map[string][]string{
		"São Carlos":   {"ICMC"},
		campus.Unknown: {"FFLCH"},
	}, catalog.Campi())
}

func TestCatalogUnnamedUnit(t *testing.T) {
	catalog := NewCatalog([]Unit{{Code: 999}}, nil)

	_, ok := catalog.UnitName(999)
	require.False(t, ok)
	require.Equal(t, map[string][]string{campus.Unknown: {"999"}}, catalog.Campi())
	require.Equal(t, map[string][]string{"999": {}}, catalog.UnitSubjectCodes())
}
