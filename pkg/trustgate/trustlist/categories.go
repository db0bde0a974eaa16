package trustlist

import "strings"

// Category labels for trusted accounts.
const (
	CategoryDeFi           = "DeFi Protocol"
	CategoryNFTGaming      = "NFT/Gaming"
	CategoryInfrastructure = "Infrastructure"
	CategoryMedia          = "Media/Community"
	CategoryKOL            = "Key Opinion Leader"
	CategoryMetaverse      = "Gaming/Metaverse"
	CategoryOther          = "Other"
)

type categoryRule struct {
	name     string
	keywords []string
}

// categoryRules is ordered: the first rule whose keyword list contains a
// substring of the lowercased handle wins, so a handle matching several
// rules is still assigned exactly one category. Matching is substring, not
// whole-word.
var categoryRules = []categoryRule{
	{CategoryDeFi, []string{
		"exchange", "protocol", "finance", "lending", "swap", "dex",
		"yield", "jupiter", "raydium", "orca", "kamino", "meteora",
		"drift", "solend", "marinade", "jito", "saber", "sunny",
	}},
	{CategoryNFTGaming, []string{
		"nft", "mad", "magic", "bears", "ape", "fox", "backpack",
		"tensor", "lifinity", "degen", "okay", "famous", "cets",
	}},
	{CategoryInfrastructure, []string{
		"solana", "phantom", "explorer", "wallet", "labs", "network",
		"wormhole", "helium", "pyth", "solflare", "beach", "fm",
	}},
	{CategoryMedia, []string{
		"media", "wordcel", "superteam", "dao", "community", "stellar",
		"bunkr", "candy", "bridge", "tourism", "meme", "truts",
	}},
	{CategoryKOL, []string{
		"aeyakovenko", "rajgokal", "vinnylingham", "tonyguoga", "austin_federa",
	}},
	{CategoryMetaverse, []string{
		"staratlas", "grape", "star", "atlas", "gaming", "metaverse",
	}},
}

// Categorize assigns a handle to a category by keyword pattern. The result
// is deterministic for a given handle.
func Categorize(handle string) string {
	lower := strings.ToLower(handle)
	for _, rule := range categoryRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.name
			}
		}
	}
	return CategoryOther
}
