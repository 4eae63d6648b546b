package ingest

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Field names one canonical slot of a card record.
type Field string

const (
	FieldNumber      Field = "number"
	FieldTitle       Field = "title"
	FieldDescription Field = "description"
	FieldKeywords    Field = "keywords"
	FieldRarity      Field = "rarity"
)

// Claim priority. Once a source column is claimed by a field, later fields
// cannot reuse it.
var fieldOrder = []Field{FieldNumber, FieldTitle, FieldDescription, FieldKeywords, FieldRarity}

// Ranked name synonyms per field, gathered from every source format seen in
// the legacy exports.
var fieldSynonyms = map[Field][]string{
	FieldNumber:      {"number", "numero", "num", "id", "ref", "reference", "code", "n°", "no"},
	FieldTitle:       {"title", "titre", "name", "nom", "label", "libelle"},
	FieldDescription: {"description", "desc", "details", "notes", "comment"},
	FieldKeywords:    {"keywords", "tag", "tags", "mots-cles", "mots_cles", "categorie", "category", "theme"},
	FieldRarity:      {"rarity", "rarete", "rare"},
}

// ColumnMapping maps canonical fields to source column indices.
type ColumnMapping map[Field]int

// MapColumns resolves column names to canonical fields. Matching runs in two
// passes: exact names first, then substring containment so decorated headers
// like "numero_carte" still resolve. Two-letter synonyms are excluded from
// the substring pass, otherwise "no" would claim a "nom" column away from
// the title.
//
// When not a single column matches by name, columns map positionally:
// 0 number, 1 title, 2 description, 3 keywords. A mapping that resolves
// neither a number nor a title column fails with MissingRequiredFieldError.
func MapColumns(columns []string) (ColumnMapping, error) {
	norm := make([]string, len(columns))
	for i, c := range columns {
		norm[i] = strings.ToLower(strings.TrimSpace(c))
	}

	m := ColumnMapping{}
	claimed := make(map[int]bool)
	match := func(f Field, substring bool) int {
		for _, syn := range fieldSynonyms[f] {
			if substring && utf8.RuneCountInString(syn) < 3 {
				continue
			}
			for i, col := range norm {
				if claimed[i] {
					continue
				}
				if col == syn || (substring && strings.Contains(col, syn)) {
					return i
				}
			}
		}
		return -1
	}
	for _, pass := range []bool{false, true} {
		for _, f := range fieldOrder {
			if _, ok := m[f]; ok {
				continue
			}
			if i := match(f, pass); i >= 0 {
				m[f] = i
				claimed[i] = true
			}
		}
	}

	if len(m) == 0 {
		for i, f := range []Field{FieldNumber, FieldTitle, FieldDescription, FieldKeywords} {
			if i < len(columns) {
				m[f] = i
			}
		}
	}
	if err := m.requireKey(columns); err != nil {
		return nil, err
	}
	return m, nil
}

// Validate checks an explicitly configured layout before it is trusted.
func (m ColumnMapping) Validate() error {
	seen := make(map[int]Field, len(m))
	for f, idx := range m {
		if idx < 0 {
			return fmt.Errorf("column index for %s is negative", f)
		}
		if prev, dup := seen[idx]; dup {
			return fmt.Errorf("column %d mapped to both %s and %s", idx, prev, f)
		}
		seen[idx] = f
	}
	return m.requireKey(nil)
}

func (m ColumnMapping) requireKey(columns []string) error {
	if _, ok := m[FieldNumber]; ok {
		return nil
	}
	if _, ok := m[FieldTitle]; ok {
		return nil
	}
	return &MissingRequiredFieldError{Columns: columns}
}

// RawRow holds the raw string value of each mapped field for one source row.
type RawRow map[Field]string

// Extract pulls the mapped values out of one tokenized row. Fields whose
// column falls outside the row are simply absent.
func (m ColumnMapping) Extract(row []string) RawRow {
	raw := make(RawRow, len(m))
	for f, idx := range m {
		if idx < len(row) {
			raw[f] = row[idx]
		}
	}
	return raw
}
