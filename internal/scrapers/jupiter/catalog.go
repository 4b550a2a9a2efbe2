package jupiter

import (
	"matrusp-crawler/internal/campus"
	"matrusp-crawler/internal/htmlutil"
	"slices"
	"strconv"
)

// Catalog is the product of discovery: the units and the subjects each of
// them offers. It is never modified once built, so it can be read from any
// number of goroutines.
type Catalog struct {
	units      []Unit
	unitByName map[string]int
	nameByUnit map[int]string
	subjects   map[int][]Subject
	campi      campus.Resolver
}

type CatalogOptions struct {
	// Crawled are the units whose subjects were listed.
	Crawled  []Unit
	Subjects map[int][]Subject
	// Known are units that were not crawled but whose names may show up in
	// subject documents, a subject can be offered by one unit and taught by
	// another.
	Known []Unit
	Campi campus.Resolver
}

// NewCatalog builds a catalog of fully crawled units with every campus
// active.
func NewCatalog(units []Unit, subjects map[int][]Subject) *Catalog {
	return BuildCatalog(CatalogOptions{Crawled: units, Subjects: subjects})
}

// BuildCatalog builds a catalog. Subject codes are kept unique, a subject
// listed by two crawled units belongs to the first one.
func BuildCatalog(opts CatalogOptions) *Catalog {
	c := &Catalog{
		units:      slices.Clone(opts.Crawled),
		unitByName: map[string]int{},
		nameByUnit: map[int]string{},
		subjects:   map[int][]Subject{},
		campi:      opts.Campi,
	}
	for _, u := range append(slices.Clone(opts.Known), opts.Crawled...) {
		name := htmlutil.CollapseSpace(u.Name)
		if name != "" {
			c.unitByName[name] = u.Code
			c.nameByUnit[u.Code] = name
		}
	}

	seen := map[string]struct{}{}
	for _, u := range opts.Crawled {
		list := []Subject{}
		for _, s := range opts.Subjects[u.Code] {
			if _, dup := seen[s.Code]; dup {
				continue
			}
			seen[s.Code] = struct{}{}
			list = append(list, s)
		}
		c.subjects[u.Code] = list
	}
	return c
}

// Units returns the crawled units.
func (c *Catalog) Units() []Unit {
	return slices.Clone(c.units)
}

func (c *Catalog) UnitName(code int) (string, bool) {
	name, ok := c.nameByUnit[code]
	return name, ok
}

func (c *Catalog) UnitCode(name string) (int, bool) {
	code, ok := c.unitByName[htmlutil.CollapseSpace(name)]
	return code, ok
}

// CampusOf resolves the campus of a unit given its name, unknown units are
// placed in campus.Unknown.
func (c *Catalog) CampusOf(unitName string) string {
	code, ok := c.UnitCode(unitName)
	if !ok {
		return campus.Unknown
	}
	return c.campi.Of(code)
}

func (c *Catalog) CampusOfUnit(code int) string {
	return c.campi.Of(code)
}

// Subjects returns every subject, grouped by unit in unit order.
func (c *Catalog) Subjects() []Subject {
	var out []Subject
	for _, u := range c.units {
		out = append(out, c.subjects[u.Code]...)
	}
	return out
}

// UnitSubjects returns the subjects offered by a unit.
func (c *Catalog) UnitSubjects(code int) []Subject {
	return slices.Clone(c.subjects[code])
}

func (c *Catalog) displayName(u Unit) string {
	if name, ok := c.nameByUnit[u.Code]; ok {
		return name
	}
	return strconv.Itoa(u.Code)
}

// Campi maps each campus to the names of its crawled units, in unit order.
func (c *Catalog) Campi() map[string][]string {
	out := map[string][]string{}
	for _, u := range c.units {
		campusName := c.campi.Of(u.Code)
		out[campusName] = append(out[campusName], c.displayName(u))
	}
	return out
}

// UnitSubjectCodes maps the name of each crawled unit to the codes of the
// subjects it offers.
func (c *Catalog) UnitSubjectCodes() map[string][]string {
	out := map[string][]string{}
	for _, u := range c.units {
		codes := []string{}
		for _, s := range c.subjects[u.Code] {
			codes = append(codes, s.Code)
		}
		out[c.displayName(u)] = codes
	}
	return out
}
