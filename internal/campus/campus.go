// Package campus maps unit codes to the campus hosting the unit.
package campus

import (
	"fmt"
	"slices"
)

// Unknown is returned for units that belong to no known campus.
const Unknown = "Outro"

var groups = []struct {
	name  string
	units []int
}{
	{
		name: "São Paulo",
		units: []int{
			86, 27, 39, 7, 22, 3, 16, 9, 2, 12, 48, 8, 5, 10, 67, 23, 6, 66, 14, 26,
			93, 41, 92, 42, 4, 37, 43, 44, 45, 83, 47, 46, 87, 21, 31, 85, 71, 32, 38, 33,
		},
	},
	{name: "Ribeirão Preto", units: []int{98, 94, 60, 89, 81, 59, 96, 91, 17, 58, 95}},
	{name: "Lorena", units: []int{88}},
	{name: "São Carlos", units: []int{18, 97, 99, 55, 76, 75, 90}},
	{name: "Piracicaba", units: []int{11, 64}},
	{name: "Bauru", units: []int{25, 61}},
	{name: "Pirassununga", units: []int{74}},
	{name: "São Sebastião", units: []int{30}},
}

var byUnit = expand()

func expand() map[int]string {
	out := map[int]string{}
	for _, g := range groups {
		for _, code := range g.units {
			if _, exists := out[code]; exists {
				panic("campus: unit code listed twice")
			}
			out[code] = g.name
		}
	}
	return out
}

// Of returns the campus of the unit with the given code, or Unknown.
func Of(unitCode int) string {
	name, ok := byUnit[unitCode]
	if !ok {
		return Unknown
	}
	return name
}

// Names returns every known campus name.
func Names() []string {
	out := make([]string, len(groups))
	for i, g := range groups {
		out[i] = g.name
	}
	return out
}

// All activates every campus when given to NewResolver.
const All = "*"

// DefaultActive are the campi resolved when nothing else is configured.
var DefaultActive = []string{"São Carlos"}

// Resolver is Of restricted to a set of active campi, units of any other
// campus resolve to Unknown. The zero value has every campus active.
type Resolver struct {
	active map[string]struct{}
}

// NewResolver activates the named campi, every campus when names is empty
// or holds All.
func NewResolver(names []string) (Resolver, error) {
	if len(names) == 0 || slices.Contains(names, All) {
		return Resolver{}, nil
	}
	known := Names()
	active := map[string]struct{}{}
	for _, name := range names {
		if !slices.Contains(known, name) {
			return Resolver{}, fmt.Errorf("unknown campus '%s'", name)
		}
		active[name] = struct{}{}
	}
	return Resolver{active: active}, nil
}

func (r Resolver) Of(unitCode int) string {
	name := Of(unitCode)
	if r.active == nil || name == Unknown {
		return name
	}
	if _, ok := r.active[name]; !ok {
		return Unknown
	}
	return name
}

// Active returns the names of the active campi, in the order of Names.
func (r Resolver) Active() []string {
	out := []string{}
	for _, name := range Names() {
		if _, ok := r.active[name]; ok || r.active == nil {
			out = append(out, name)
		}
	}
	return out
}
