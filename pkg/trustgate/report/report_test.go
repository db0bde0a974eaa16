package report

import (
	"fmt"
	"strings"
	"testing"

	"github.com/solwatch/trustgate/pkg/trustgate/trust"
	"github.com/solwatch/trustgate/pkg/trustgate/trustlist"
)

func TestFormatVerdictValidated(t *testing.T) {
	v := &trust.Verdict{
		TargetID:             "target-1",
		IsValidated:          true,
		TrustedFollowerCount: 2,
		MinRequired:          2,
		ValidationStrength:   45,
		CheckedFollowerCount: 150,
		APICallsUsed:         1,
		TrustedFollowers: []trust.TrustedFollower{
			{Handle: "solana", Category: trustlist.CategoryInfrastructure},
			{Handle: "JupiterExchange", Category: trustlist.CategoryDeFi},
		},
		CategoryBreakdown: map[string]int{
			trustlist.CategoryInfrastructure: 1,
			trustlist.CategoryDeFi:           1,
		},
		TrustScore: &trust.Score{OverallScore: 75, TrustLevel: trust.LevelWellTrusted},
	}

	out := FormatVerdict(v, "someone")

	for _, want := range []string{
		"TRUSTED ACCOUNT VALIDATION - @someone",
		"Status: VALIDATED",
		"Trusted Followers: 2/2 minimum required",
		"Validation Strength: 45/100",
		"Trust Level: Well Trusted",
		"Trust Score: 75.0/100",
		"@solana (Infrastructure)",
		"@JupiterExchange (DeFi Protocol)",
		"Followers checked: 150",
		"API calls used: 1",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Report missing %q:\n%s", want, out)
		}
	}
}

func TestFormatVerdictErrorForm(t *testing.T) {
	v := &trust.Verdict{Error: "Target account is private"}

	out := FormatVerdict(v, "someone")
	if !strings.Contains(out, "Validation Error: Target account is private") {
		t.Errorf("Error form missing reason:\n%s", out)
	}
	if strings.Contains(out, "Status:") {
		t.Errorf("Error form should omit the status block:\n%s", out)
	}
}

func TestFormatVerdictNil(t *testing.T) {
	out := FormatVerdict(nil, "someone")
	if !strings.Contains(out, "No validation data available") {
		t.Errorf("Nil verdict should render the no-data form:\n%s", out)
	}
}

func TestFormatVerdictTruncatesFollowerList(t *testing.T) {
	v := &trust.Verdict{
		MinRequired: 2,
		TrustScore:  &trust.Score{TrustLevel: trust.LevelHighlyTrusted},
	}
	for i := 0; i < 14; i++ {
		v.TrustedFollowers = append(v.TrustedFollowers, trust.TrustedFollower{
			Handle:   fmt.Sprintf("acct%d", i),
			Category: trustlist.CategoryOther,
		})
	}

	out := FormatVerdict(v, "someone")
	if !strings.Contains(out, "... and 4 more") {
		t.Errorf("Expected truncation marker for 14 followers:\n%s", out)
	}
	if strings.Contains(out, "@acct10") {
		t.Errorf("Followers past the first 10 should not be listed:\n%s", out)
	}
}

func TestFormatVerdictBreakdownOrder(t *testing.T) {
	v := &trust.Verdict{
		MinRequired: 2,
		TrustScore:  &trust.Score{TrustLevel: trust.LevelWellTrusted},
		CategoryBreakdown: map[string]int{
			trustlist.CategoryDeFi:           1,
			trustlist.CategoryInfrastructure: 3,
			trustlist.CategoryKOL:            2,
		},
	}

	out := FormatVerdict(v, "someone")
	infra := strings.Index(out, "Infrastructure: 3")
	kol := strings.Index(out, "Key Opinion Leader: 2")
	defi := strings.Index(out, "DeFi Protocol: 1")
	if infra == -1 || kol == -1 || defi == -1 || !(infra < kol && kol < defi) {
		t.Errorf("Breakdown not sorted by count descending:\n%s", out)
	}
}
