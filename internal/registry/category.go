package registry

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Category groups capabilities by the kind of module that provides them.
type Category int

const (
	CategoryReading Category = iota + 1
	CategoryPersistence
	CategoryExport
	CategorySynchronize
	CategoryCommunication
	CategoryPackager
)

var categoryNames = map[Category]string{
	CategoryReading:       "reading",
	CategoryPersistence:   "persistence",
	CategoryExport:        "export",
	CategorySynchronize:   "synchronize",
	CategoryCommunication: "communication",
	CategoryPackager:      "packager",
}

// Categories lists every known category in declaration order.
func Categories() []Category {
	return []Category{
		CategoryReading,
		CategoryPersistence,
		CategoryExport,
		CategorySynchronize,
		CategoryCommunication,
		CategoryPackager,
	}
}

func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return fmt.Sprintf("category(%d)", int(c))
}

// DisplayName returns the title-cased name used in CLI output.
func (c Category) DisplayName() string {
	return cases.Title(language.English).String(c.String())
}

// Valid reports whether c is a declared category.
func (c Category) Valid() bool {
	_, ok := categoryNames[c]
	return ok
}

// ParseCategory maps a config or CLI value onto a Category.
func ParseCategory(value string) (Category, error) {
	key := strings.ToLower(strings.TrimSpace(value))
	for c, name := range categoryNames {
		if name == key {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown category %q", value)
}
