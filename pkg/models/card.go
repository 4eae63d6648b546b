package models

// Rarity tiers a postcard can carry. Source files use many historical
// spellings; the importer maps them all onto these three values.
const (
	RarityCommon   = "common"
	RarityRare     = "rare"
	RarityVeryRare = "very_rare"
)

// CardRecord is the normalized, internal form of one imported catalog entry.
//
// Every source format (CSV, SQL dump, remote snapshot) is mapped into this
// structure first, then the reconciler writes to the DB from this
// representation.
type CardRecord struct {
	Number      string `json:"number"`      // canonical zero-padded identifier
	Title       string `json:"title"`       // caption, defaulted when the source has none
	Description string `json:"description"` // free text
	Keywords    string `json:"keywords"`    // comma-separated tag list, as stored
	Rarity      string `json:"rarity"`      // one of the Rarity* constants
}
