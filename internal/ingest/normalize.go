package ingest

import (
	"strings"

	"postcardhub/pkg/models"
)

const (
	// DefaultNumberWidth is the canonical zero-padded width of card numbers.
	DefaultNumberWidth = 6
	// DefaultTitleLabel prefixes the fallback title of cards imported
	// without one.
	DefaultTitleLabel = "Carte Postale N°"
	// DefaultMaxTitle caps title length. Longer titles are cut silently,
	// which is what every legacy importer did.
	DefaultMaxTitle = 500
)

// Normalizer canonicalizes raw row values into a CardRecord. The zero value
// uses the catalog defaults.
type Normalizer struct {
	NumberWidth int
	TitleLabel  string
	MaxTitle    int
}

func (n Normalizer) withDefaults() Normalizer {
	if n.NumberWidth <= 0 {
		n.NumberWidth = DefaultNumberWidth
	}
	if n.TitleLabel == "" {
		n.TitleLabel = DefaultTitleLabel
	}
	if n.MaxTitle <= 0 {
		n.MaxTitle = DefaultMaxTitle
	}
	return n
}

// Normalize turns one raw row into a CardRecord, or reports why the row is
// skipped. Malformed but present values never fail: unknown rarities become
// common, oversized titles are truncated, non-numeric numbers pass through.
func (n Normalizer) Normalize(raw RawRow) (*models.CardRecord, string) {
	n = n.withDefaults()

	number := strings.TrimSpace(raw[FieldNumber])
	if number == "" {
		return nil, SkipNoNumber
	}
	number = n.CanonicalNumber(number)

	title := strings.TrimSpace(raw[FieldTitle])
	if title == "" {
		title = n.TitleLabel + " " + number
	}
	if r := []rune(title); len(r) > n.MaxTitle {
		title = string(r[:n.MaxTitle])
	}

	return &models.CardRecord{
		Number:      number,
		Title:       title,
		Description: strings.TrimSpace(raw[FieldDescription]),
		Keywords:    strings.TrimSpace(raw[FieldKeywords]),
		Rarity:      MapRarity(raw[FieldRarity]),
	}, ""
}

// CanonicalNumber strips every non-digit from a card number and zero-pads
// the rest to the canonical width. A value without any digit is kept as-is,
// the legacy data contains a handful of alphabetic identifiers.
func (n Normalizer) CanonicalNumber(s string) string {
	s = strings.TrimSpace(s)
	var digits strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	if digits.Len() == 0 {
		return s
	}
	d := digits.String()
	if pad := n.withDefaults().NumberWidth - len(d); pad > 0 {
		return strings.Repeat("0", pad) + d
	}
	return d
}

var rarityByName = map[string]string{
	"common":    models.RarityCommon,
	"commune":   models.RarityCommon,
	"c":         models.RarityCommon,
	"0":         models.RarityCommon,
	"1":         models.RarityCommon,
	"rare":      models.RarityRare,
	"r":         models.RarityRare,
	"2":         models.RarityRare,
	"very_rare": models.RarityVeryRare,
	"very rare": models.RarityVeryRare,
	"tres_rare": models.RarityVeryRare,
	"tres rare": models.RarityVeryRare,
	"très rare": models.RarityVeryRare,
	"très_rare": models.RarityVeryRare,
	"vr":        models.RarityVeryRare,
	"tr":        models.RarityVeryRare,
	"3":         models.RarityVeryRare,
}

// MapRarity maps a raw rarity value onto the catalog vocabulary. Anything
// unrecognized, including the empty string, is common.
func MapRarity(s string) string {
	if v, ok := rarityByName[strings.ToLower(strings.TrimSpace(s))]; ok {
		return v
	}
	return models.RarityCommon
}
