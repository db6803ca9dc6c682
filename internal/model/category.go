package model

import (
	"fmt"
	"strings"
)

// Category is one entry of the fixed epic taxonomy.
type Category string

// The closed taxonomy, in display order. Adding an entry requires a
// migration that seeds the new row in epic_categories.
const (
	CategoryProjectOversight Category = "Project Oversight"
	CategoryUX               Category = "UX"
	CategoryDesign           Category = "Design"
	CategoryFEDev            Category = "FE Dev"
	CategoryBEDev            Category = "BE Dev"
)

var allCategories = []Category{
	CategoryProjectOversight,
	CategoryUX,
	CategoryDesign,
	CategoryFEDev,
	CategoryBEDev,
}

// Categories returns the taxonomy in display order.
func Categories() []Category {
	out := make([]Category, len(allCategories))
	copy(out, allCategories)
	return out
}

// DisplayOrder returns the position of c in the taxonomy, or -1 if c
// is not a taxonomy entry.
func (c Category) DisplayOrder() int {
	for i, cat := range allCategories {
		if cat == c {
			return i
		}
	}
	return -1
}

// Valid reports whether c belongs to the taxonomy.
func (c Category) Valid() bool {
	return c.DisplayOrder() >= 0
}

// String implements fmt.Stringer.
func (c Category) String() string {
	return string(c)
}

// ParseCategory resolves a name to a taxonomy entry, case-insensitively.
func ParseCategory(name string) (Category, error) {
	trimmed := strings.TrimSpace(name)
	for _, cat := range allCategories {
		if strings.EqualFold(string(cat), trimmed) {
			return cat, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCategory, name)
}
