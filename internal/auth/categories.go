package auth

import (
	"strings"

	"postcardhub/pkg/models"
)

// Account categories, in ascending order of privilege. They gate which
// rarities a viewer sees in full and who may reach the admin surface.
const (
	CategoryBasic   = "basic"
	CategoryMember  = "member"
	CategoryPremium = "premium"
	CategoryAdmin   = "admin"
)

var categoryRank = map[string]int{
	CategoryBasic:   0,
	CategoryMember:  1,
	CategoryPremium: 2,
	CategoryAdmin:   3,
}

// NormalizeCategory lowercases and trims, mapping anything unknown to basic.
func NormalizeCategory(s string) string {
	c := strings.ToLower(strings.TrimSpace(s))
	if _, ok := categoryRank[c]; !ok {
		return CategoryBasic
	}
	return c
}

func ValidCategory(s string) bool {
	_, ok := categoryRank[strings.ToLower(strings.TrimSpace(s))]
	return ok
}

func CategoryAtLeast(category, required string) bool {
	return categoryRank[NormalizeCategory(category)] >= categoryRank[NormalizeCategory(required)]
}

// CanViewRarity reports whether a viewer of the given category sees the
// full data of a card of the given rarity. Rare cards need member or
// above, very rare needs premium or above.
func CanViewRarity(category, rarity string) bool {
	switch strings.ToLower(strings.TrimSpace(rarity)) {
	case models.RarityRare:
		return CategoryAtLeast(category, CategoryMember)
	case models.RarityVeryRare:
		return CategoryAtLeast(category, CategoryPremium)
	default:
		return true
	}
}
