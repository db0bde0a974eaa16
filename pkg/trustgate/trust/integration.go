package trust

import (
	"math"

	"github.com/rs/zerolog/log"
)

// DefaultBoostFactor scales validation strength into score boosts.
const DefaultBoostFactor = 0.3

// mitigatedPrefix annotates risk factors neutralized by a strong trust
// verdict. Factors are prefixed, never removed, to preserve the audit
// trail.
const mitigatedPrefix = "(Mitigated by trust validation) "

// Scorecard is the externally computed heuristic analysis of an account.
// The bridge reads and adjusts its numeric fields; it does not produce one.
type Scorecard struct {
	Handle            string   `json:"handle"`
	CredibilityScore  float64  `json:"credibility_score"`
	AuthenticityScore float64  `json:"authenticity_score"`
	InfluenceScore    float64  `json:"influence_score"`
	RiskFactors       []string `json:"risk_factors"`

	// Set by the bridge on augmented copies.
	TrustBoostApplied float64 `json:"trust_boost_applied"`
	TrustEnhanced     bool    `json:"trust_enhanced"`
	TrustTier         string  `json:"trust_tier,omitempty"`
}

// Bridge blends validation verdicts into heuristic scorecards.
type Bridge struct {
	boostFactor float64
}

// NewBridge creates a Bridge. A non-positive factor falls back to the
// default.
func NewBridge(boostFactor float64) *Bridge {
	if boostFactor <= 0 {
		boostFactor = DefaultBoostFactor
	}
	return &Bridge{boostFactor: boostFactor}
}

// Integrate returns a copy of the scorecard augmented with the verdict's
// trust signal. A non-validated verdict returns an unmodified copy. The
// input scorecard is never mutated.
//
// The three boosts derive from one trust_boost scalar with different
// multipliers: credibility is most sensitive to the trust signal,
// influence least.
func (b *Bridge) Integrate(card *Scorecard, v *Verdict) *Scorecard {
	out := *card
	out.RiskFactors = append([]string(nil), card.RiskFactors...)

	if v == nil || !v.IsValidated {
		return &out
	}

	boost := float64(v.ValidationStrength) / 100 * b.boostFactor

	out.CredibilityScore = round1(math.Min(card.CredibilityScore+boost*100, 100))
	out.AuthenticityScore = round1(math.Min(card.AuthenticityScore+boost*50, 100))
	out.InfluenceScore = round1(math.Min(card.InfluenceScore+boost*30, 100))
	out.TrustBoostApplied = round1(boost * 100)
	out.TrustEnhanced = true
	out.TrustTier = v.TrustScore.TrustLevel

	if v.TrustScore.TrustLevel == LevelHighlyTrusted || v.TrustScore.TrustLevel == LevelWellTrusted {
		for i, factor := range out.RiskFactors {
			out.RiskFactors[i] = mitigatedPrefix + factor
		}
	}

	log.Info().
		Str("handle", card.Handle).
		Float64("boost", boost).
		Str("trust_tier", out.TrustTier).
		Msg("Trust scores integrated into scorecard")
	return &out
}

// Integration tier labels for the combined trust metric.
const (
	TierPremiumTrust  = "Premium Trust"
	TierHighTrust     = "High Trust"
	TierModerateTrust = "Moderate Trust"
	TierBasicTrust    = "Basic Trust"
	TierLimitedTrust  = "Limited Trust"
)

// IntegrationScore carries secondary metrics describing how reliable and
// dense the trust signal behind a verdict is.
type IntegrationScore struct {
	TrustDensity     float64 `json:"trust_density"`
	TrustQuality     float64 `json:"trust_quality"`
	CombinedMetric   float64 `json:"combined_metric"`
	ReliabilityScore float64 `json:"reliability_score"`
	IntegrationTier  string  `json:"integration_tier"`
}

// IntegrationMetrics derives the secondary trust metrics from a verdict.
func IntegrationMetrics(v *Verdict) *IntegrationScore {
	checked := v.CheckedFollowerCount
	if checked < 1 {
		checked = 1
	}

	density := float64(v.TrustedFollowerCount) / float64(checked)
	quality := 0.0
	if v.TrustScore != nil {
		quality = v.TrustScore.OverallScore / 100
	}

	combined := float64(v.ValidationStrength)/100*0.4 +
		quality*0.4 +
		math.Min(density*10, 1)*0.2

	reliability := math.Min(float64(v.APICallsUsed)/10, 1.0)

	return &IntegrationScore{
		TrustDensity:     round4(density),
		TrustQuality:     round3(quality),
		CombinedMetric:   round3(combined),
		ReliabilityScore: round3(reliability),
		IntegrationTier:  integrationTierFor(combined),
	}
}

func integrationTierFor(combined float64) string {
	switch {
	case combined >= 0.8:
		return TierPremiumTrust
	case combined >= 0.6:
		return TierHighTrust
	case combined >= 0.4:
		return TierModerateTrust
	case combined >= 0.2:
		return TierBasicTrust
	default:
		return TierLimitedTrust
	}
}

func round3(v float64) float64 { return math.Round(v*1000) / 1000 }
func round4(v float64) float64 { return math.Round(v*10000) / 10000 }
