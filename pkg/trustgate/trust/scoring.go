package trust

import (
	"math"

	"github.com/solwatch/trustgate/pkg/trustgate/trustlist"
)

// Trust level labels, ordered from strongest to weakest. Unverified is
// reserved for the no-data case: a score of zero earned from an empty
// follower set, as opposed to a low score earned by weights.
const (
	LevelHighlyTrusted     = "Highly Trusted"
	LevelWellTrusted       = "Well Trusted"
	LevelModeratelyTrusted = "Moderately Trusted"
	LevelLightlyTrusted    = "Lightly Trusted"
	LevelMinimallyTrusted  = "Minimally Trusted"
	LevelUnverified        = "Unverified"
)

// categoryWeights rates the signal value of each trusted-follower category.
var categoryWeights = map[string]int{
	trustlist.CategoryKOL:            30,
	trustlist.CategoryInfrastructure: 25,
	trustlist.CategoryDeFi:           20,
	trustlist.CategoryNFTGaming:      15,
	trustlist.CategoryMetaverse:      12,
	trustlist.CategoryMedia:          10,
	trustlist.CategoryOther:          5,
}

const maxCategoryWeight = 30

// Score is the weighted, normalized trust score for a set of trusted
// followers. MaxPossible is the ceiling if every follower were in the
// highest-weighted category.
type Score struct {
	OverallScore   float64        `json:"overall_score"`
	CategoryScores map[string]int `json:"category_scores"`
	TrustLevel     string         `json:"trust_level"`
	WeightedScore  int            `json:"weighted_score"`
	MaxPossible    int            `json:"max_possible"`
}

func emptyScore() *Score {
	return &Score{
		CategoryScores: map[string]int{},
		TrustLevel:     LevelUnverified,
	}
}

// CalculateScore turns categorized trusted followers into a 0-100 score and
// a discrete trust level.
func CalculateScore(followers []TrustedFollower) *Score {
	if len(followers) == 0 {
		return emptyScore()
	}

	weighted := 0
	categoryScores := make(map[string]int)
	for _, f := range followers {
		weight, ok := categoryWeights[f.Category]
		if !ok {
			weight = categoryWeights[trustlist.CategoryOther]
		}
		weighted += weight
		categoryScores[f.Category] += weight
	}

	maxPossible := len(followers) * maxCategoryWeight
	overall := math.Min(float64(weighted)/float64(maxPossible)*100, 100)

	return &Score{
		OverallScore:   round1(overall),
		CategoryScores: categoryScores,
		TrustLevel:     trustLevelFor(overall),
		WeightedScore:  weighted,
		MaxPossible:    maxPossible,
	}
}

func trustLevelFor(overall float64) string {
	switch {
	case overall >= 80:
		return LevelHighlyTrusted
	case overall >= 65:
		return LevelWellTrusted
	case overall >= 45:
		return LevelModeratelyTrusted
	case overall >= 25:
		return LevelLightlyTrusted
	default:
		return LevelMinimallyTrusted
	}
}

// validationStrength is the 0-100 heuristic rewarding raw count, category
// diversity, and the presence of the two highest-signal categories.
func validationStrength(count int, categories map[string]int) int {
	if count == 0 {
		return 0
	}

	base := minInt(count*15, 60)
	diversity := minInt(len(categories)*5, 25)

	bonus := 0
	if _, ok := categories[trustlist.CategoryKOL]; ok {
		bonus += 10
	}
	if _, ok := categories[trustlist.CategoryInfrastructure]; ok {
		bonus += 5
	}

	return minInt(base+diversity+bonus, 100)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
