package ingest

import (
	"errors"
	"reflect"
	"testing"
)

func TestMapColumnsByName(t *testing.T) {
	tests := []struct {
		name    string
		columns []string
		want    ColumnMapping
	}{
		{
			"english header",
			[]string{"number", "title", "description", "keywords", "rarity"},
			ColumnMapping{FieldNumber: 0, FieldTitle: 1, FieldDescription: 2, FieldKeywords: 3, FieldRarity: 4},
		},
		{
			"french header",
			[]string{"numero", "titre", "mots_cles", "rarete"},
			ColumnMapping{FieldNumber: 0, FieldTitle: 1, FieldKeywords: 2, FieldRarity: 3},
		},
		{
			"case and spacing",
			[]string{" Numero ", "TITRE"},
			ColumnMapping{FieldNumber: 0, FieldTitle: 1},
		},
		{
			"decorated names resolve by substring",
			[]string{"numero_carte", "titre_fr", "description_longue"},
			ColumnMapping{FieldNumber: 0, FieldTitle: 1, FieldDescription: 2},
		},
		{
			"shuffled order",
			[]string{"rarete", "titre", "numero"},
			ColumnMapping{FieldNumber: 2, FieldTitle: 1, FieldRarity: 0},
		},
	}
	for _, tt := range tests {
		got, err := MapColumns(tt.columns)
		if err != nil {
			t.Errorf("%s: MapColumns error: %v", tt.name, err)
			continue
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("%s: MapColumns(%q) = %v, want %v", tt.name, tt.columns, got, tt.want)
		}
	}
}

func TestMapColumnsFirstClaimedWins(t *testing.T) {
	// "id" exactly names the number column, so the title must take the
	// next candidate instead of reusing it.
	got, err := MapColumns([]string{"id", "name"})
	if err != nil {
		t.Fatalf("MapColumns error: %v", err)
	}
	want := ColumnMapping{FieldNumber: 0, FieldTitle: 1}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("MapColumns = %v, want %v", got, want)
	}
}

func TestMapColumnsShortSynonymsNeverSubstringMatch(t *testing.T) {
	// "no" is a number synonym but must not claim a "nom" column by
	// containment, that column is the title.
	got, err := MapColumns([]string{"nom", "description"})
	if err != nil {
		t.Fatalf("MapColumns error: %v", err)
	}
	want := ColumnMapping{FieldTitle: 0, FieldDescription: 1}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("MapColumns = %v, want %v", got, want)
	}
}

func TestMapColumnsPositionalFallback(t *testing.T) {
	got, err := MapColumns([]string{"col_0", "col_1", "col_2", "col_3", "col_4"})
	if err != nil {
		t.Fatalf("MapColumns error: %v", err)
	}
	want := ColumnMapping{FieldNumber: 0, FieldTitle: 1, FieldDescription: 2, FieldKeywords: 3}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("MapColumns = %v, want %v", got, want)
	}
}

func TestMapColumnsPositionalFallbackShortRow(t *testing.T) {
	got, err := MapColumns([]string{"col_0", "col_1"})
	if err != nil {
		t.Fatalf("MapColumns error: %v", err)
	}
	want := ColumnMapping{FieldNumber: 0, FieldTitle: 1}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("MapColumns = %v, want %v", got, want)
	}
}

func TestMapColumnsMissingRequiredField(t *testing.T) {
	tests := []struct {
		name    string
		columns []string
	}{
		{"no columns at all", nil},
		// rarete maps by name, so the positional fallback stays off and
		// neither number nor title resolves.
		{"only a rarity column", []string{"rarete"}},
	}
	for _, tt := range tests {
		_, err := MapColumns(tt.columns)
		var missing *MissingRequiredFieldError
		if !errors.As(err, &missing) {
			t.Errorf("%s: MapColumns error = %v, want MissingRequiredFieldError", tt.name, err)
		}
	}
}

func TestColumnMappingValidate(t *testing.T) {
	if err := (ColumnMapping{FieldNumber: 0, FieldTitle: 1}).Validate(); err != nil {
		t.Errorf("valid layout rejected: %v", err)
	}
	if err := (ColumnMapping{FieldNumber: -1}).Validate(); err == nil {
		t.Error("negative index accepted")
	}
	if err := (ColumnMapping{FieldNumber: 2, FieldTitle: 2}).Validate(); err == nil {
		t.Error("duplicate index accepted")
	}
	err := (ColumnMapping{FieldKeywords: 0}).Validate()
	var missing *MissingRequiredFieldError
	if !errors.As(err, &missing) {
		t.Errorf("layout without number or title: error = %v, want MissingRequiredFieldError", err)
	}
}

func TestColumnMappingExtract(t *testing.T) {
	m := ColumnMapping{FieldNumber: 0, FieldTitle: 1, FieldDescription: 5}
	raw := m.Extract([]string{"001", "Vue"})
	if raw[FieldNumber] != "001" || raw[FieldTitle] != "Vue" {
		t.Errorf("Extract = %v", raw)
	}
	if _, ok := raw[FieldDescription]; ok {
		t.Error("column beyond the row should be absent")
	}
}
