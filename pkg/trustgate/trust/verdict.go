// Package trust implements the follower-overlap validation engine: it
// decides whether a target account is vouched for by enough trusted
// followers, scores the quality of that overlap, and blends the result into
// an externally computed credibility scorecard.
package trust

import "time"

// TrustedFollower is one trusted account found among a target's followers.
type TrustedFollower struct {
	Handle      string `json:"handle"`
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Category    string `json:"category"`
}

// Verdict is the result of one follower-overlap validation. When Error is
// set the verdict represents a failed attempt and every numeric field is
// zero. A verdict with Error set is still a normal input for downstream
// consumers, never an exceptional case.
type Verdict struct {
	TargetID             string            `json:"target_id"`
	IsValidated          bool              `json:"is_validated"`
	TrustedFollowerCount int               `json:"trusted_follower_count"`
	MinRequired          int               `json:"min_required"`
	TrustedFollowers     []TrustedFollower `json:"trusted_followers"`
	CategoryBreakdown    map[string]int    `json:"category_breakdown"`
	ValidationStrength   int               `json:"validation_strength"`
	TrustScore           *Score            `json:"trust_score"`
	CheckedFollowerCount int               `json:"checked_follower_count"`
	APICallsUsed         int               `json:"api_calls_used"`
	Error                string            `json:"error,omitempty"`
	Timestamp            time.Time         `json:"timestamp"`
}

// errorVerdict builds the zero-valued verdict used for every failed
// validation attempt.
func errorVerdict(targetID string, minRequired int, reason string) *Verdict {
	return &Verdict{
		TargetID:          targetID,
		MinRequired:       minRequired,
		CategoryBreakdown: map[string]int{},
		TrustScore:        emptyScore(),
		Error:             reason,
		Timestamp:         time.Now().UTC(),
	}
}
