package model

import (
	"errors"
	"testing"
)

func TestParseCategory(t *testing.T) {
	tests := []struct {
		input string
		want  Category
	}{
		{"FE Dev", CategoryFEDev},
		{"fe dev", CategoryFEDev},
		{"  BE Dev  ", CategoryBEDev},
		{"ux", CategoryUX},
		{"DESIGN", CategoryDesign},
		{"project oversight", CategoryProjectOversight},
	}
	for _, tt := range tests {
		got, err := ParseCategory(tt.input)
		if err != nil {
			t.Errorf("ParseCategory(%q): %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseCategory(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestParseCategoryUnknown(t *testing.T) {
	for _, input := range []string{"", "Frontend", "QA", "fedev"} {
		if _, err := ParseCategory(input); !errors.Is(err, ErrUnknownCategory) {
			t.Errorf("ParseCategory(%q) error = %v, want ErrUnknownCategory", input, err)
		}
	}
}

func TestCategoryValid(t *testing.T) {
	for _, cat := range Categories() {
		if !cat.Valid() {
			t.Errorf("%v should be valid", cat)
		}
	}
	if Category("Frontend").Valid() {
		t.Error("a name outside the taxonomy must not be valid")
	}
	if Category("").Valid() {
		t.Error("the empty category must not be valid")
	}
}

func TestCategoriesDisplayOrder(t *testing.T) {
	cats := Categories()
	if len(cats) != 5 {
		t.Fatalf("taxonomy size = %d, want 5", len(cats))
	}
	if cats[0] != CategoryProjectOversight || cats[4] != CategoryBEDev {
		t.Errorf("unexpected display order: %v", cats)
	}
	for i, cat := range cats {
		if cat.DisplayOrder() != i {
			t.Errorf("DisplayOrder(%v) = %d, want %d", cat, cat.DisplayOrder(), i)
		}
	}

	// Mutating the returned slice must not corrupt the taxonomy.
	cats[0] = "Mutated"
	if Categories()[0] != CategoryProjectOversight {
		t.Error("Categories must return a copy")
	}
}
