package service

import (
	"context"
	"testing"
	"time"

	"github.com/referral-ledger/internal/constants"
	"github.com/referral-ledger/internal/repository"

	"github.com/shopspring/decimal"
)

func TestGetReferrerStatsZeroReferrals(t *testing.T) {
	env := setupReferralTestEnv(t)
	stats, err := env.stats.GetReferrerStats(context.Background(), "u-nobody")
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.TotalReferrals != 0 || stats.ConversionRate != 0 || !stats.TotalCommission.IsZero() {
		t.Fatalf("expected zeroed stats, got %+v", stats)
	}
	if stats.Tier != constants.ReferralTierBronze || stats.NextTier != constants.ReferralTierSilver {
		t.Fatalf("expected bronze tier, got %+v", stats)
	}
	if stats.AmountToNextTier.String() != "500.00" {
		t.Fatalf("unexpected gap to silver: %s", stats.AmountToNextTier.String())
	}
}

func TestGetReferrerStatsRollup(t *testing.T) {
	env := setupReferralTestEnv(t)
	ctx := context.Background()
	code := env.mustCode(t, "u-alice", "alice@example.com")

	bob := env.mustAttach(t, code.Code, "u-bob", "bob@gmail.com")
	env.mustAttach(t, code.Code, "u-carol", "carol@gmail.com")
	env.mustAttach(t, code.Code, "u-dave", "dave@gmail.com")
	env.mustAttach(t, code.Code, "u-erin", "erin@gmail.com")

	for _, user := range []string{"u-bob", "u-carol"} {
		if _, err := env.conversions.ConvertReferral(ctx, convertInput(code.Code, user, 1000)); err != nil {
			t.Fatalf("convert %s failed: %v", user, err)
		}
	}
	if _, err := env.payouts.ConfirmDuePayouts(ctx, time.Now().AddDate(0, 0, 30)); err != nil {
		t.Fatalf("confirm payouts failed: %v", err)
	}
	if _, err := env.payouts.MarkPaid(ctx, []uint{bob.ID}, "batch-1"); err != nil {
		t.Fatalf("mark paid failed: %v", err)
	}

	stats, err := env.stats.GetReferrerStats(ctx, "u-alice")
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.TotalReferrals != 4 || stats.PendingReferrals != 2 || stats.ConvertedReferrals != 2 {
		t.Fatalf("unexpected counts: %+v", stats)
	}
	if stats.TotalCommission.String() != "200.00" || stats.PaidCommission.String() != "100.00" {
		t.Fatalf("unexpected commission totals: %+v", stats)
	}
	if stats.PendingCommission.String() != "100.00" || stats.AvailableCommission.String() != "100.00" {
		t.Fatalf("unexpected pending/available commission: %+v", stats)
	}
	if stats.ConversionRate != 50 {
		t.Fatalf("expected 50%% conversion rate, got %v", stats.ConversionRate)
	}
	if stats.Tier != constants.ReferralTierBronze || stats.AmountToNextTier.String() != "300.00" {
		t.Fatalf("unexpected tier: %+v", stats)
	}
}

func TestResolveReferralTier(t *testing.T) {
	tiers := DefaultReferralSetting().Tiers
	cases := []struct {
		earned int64
		tier   string
		next   string
	}{
		{earned: 0, tier: constants.ReferralTierBronze, next: constants.ReferralTierSilver},
		{earned: 499, tier: constants.ReferralTierBronze, next: constants.ReferralTierSilver},
		{earned: 500, tier: constants.ReferralTierSilver, next: constants.ReferralTierGold},
		{earned: 2000, tier: constants.ReferralTierGold, next: ""},
	}
	for _, tc := range cases {
		tier, next, _ := resolveReferralTier(decimal.NewFromInt(tc.earned), tiers)
		if tier != tc.tier || next != tc.next {
			t.Fatalf("earned %d: want %s/%s got %s/%s", tc.earned, tc.tier, tc.next, tier, next)
		}
	}
}

func TestBuildReferralStatsConversionRateRounding(t *testing.T) {
	rows := []repository.ReferralAggregateRow{
		{Status: constants.ReferralStatusPending, Total: 2},
		{Status: constants.ReferralStatusConverted, PayoutStatus: constants.PayoutStatusPendingConfirm, Total: 1, CommissionAmount: decimal.NewFromInt(25)},
	}
	stats := buildReferralStats(rows, DefaultReferralSetting().Tiers)
	if stats.ConversionRate != 33.33 {
		t.Fatalf("expected 33.33, got %v", stats.ConversionRate)
	}
	if stats.PendingCommission.String() != "25.00" || !stats.PaidCommission.IsZero() {
		t.Fatalf("unexpected commission split: %+v", stats)
	}
}
