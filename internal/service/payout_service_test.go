package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/referral-ledger/internal/constants"
	"github.com/referral-ledger/internal/models"
)

type recordingNotifier struct {
	notified []uint
}

func (r *recordingNotifier) NotifyCommissionPayable(_ context.Context, referral *models.Referral) error {
	r.notified = append(r.notified, referral.ID)
	return nil
}

func TestPayoutLifecycle(t *testing.T) {
	env := setupReferralTestEnv(t)
	ctx := context.Background()
	code := env.mustCode(t, "u-alice", "alice@example.com")
	referral := env.mustAttach(t, code.Code, "u-bob", "bob@gmail.com")
	if _, err := env.conversions.ConvertReferral(ctx, convertInput(code.Code, "u-bob", 500)); err != nil {
		t.Fatalf("convert failed: %v", err)
	}

	// 确认期内不可结算
	if n, err := env.payouts.ConfirmDuePayouts(ctx, time.Now().Add(time.Hour)); err != nil || n != 0 {
		t.Fatalf("payout should still be confirming, n=%d err=%v", n, err)
	}
	if result, err := env.payouts.MarkPaid(ctx, []uint{referral.ID}, ""); err != nil || result.Updated != 0 {
		t.Fatalf("confirming payout must not be paid, result=%+v err=%v", result, err)
	}

	if n, err := env.payouts.ConfirmDuePayouts(ctx, time.Now().AddDate(0, 0, 8)); err != nil || n != 1 {
		t.Fatalf("expected 1 confirmed payout, n=%d err=%v", n, err)
	}
	stored := env.reload(t, referral.ID)
	if stored.PayoutStatus != constants.PayoutStatusAvailable || stored.AvailableAt == nil {
		t.Fatalf("payout should be available: %+v", stored)
	}

	result, err := env.payouts.MarkPaid(ctx, []uint{referral.ID, referral.ID, 0}, "")
	if err != nil {
		t.Fatalf("mark paid failed: %v", err)
	}
	if result.Updated != 1 || result.Reference == "" {
		t.Fatalf("unexpected mark paid result: %+v", result)
	}
	stored = env.reload(t, referral.ID)
	if stored.PayoutStatus != constants.PayoutStatusPaid || stored.PayoutReference != result.Reference || stored.PaidAt == nil {
		t.Fatalf("payout should be paid: %+v", stored)
	}
	if stored.CommissionAmount.String() != "50.00" {
		t.Fatalf("payout transitions must not change commission, got %s", stored.CommissionAmount.String())
	}

	again, err := env.payouts.MarkPaid(ctx, []uint{referral.ID}, "batch-2")
	if err != nil || again.Updated != 0 {
		t.Fatalf("paid payout must not be paid twice, result=%+v err=%v", again, err)
	}
}

func TestMarkPaidRequiresIDs(t *testing.T) {
	env := setupReferralTestEnv(t)
	if _, err := env.payouts.MarkPaid(context.Background(), []uint{0}, "x"); !errors.Is(err, ErrPayoutIDsRequired) {
		t.Fatalf("expected ErrPayoutIDsRequired, got %v", err)
	}
}

func TestHandleReferralConvertedNotifies(t *testing.T) {
	env := setupReferralTestEnv(t)
	ctx := context.Background()
	notifier := &recordingNotifier{}
	payouts := NewPayoutService(env.referralRepo, notifier)

	code := env.mustCode(t, "u-alice", "alice@example.com")
	pending := env.mustAttach(t, code.Code, "u-carol", "carol@gmail.com")
	converted := env.mustAttach(t, code.Code, "u-bob", "bob@gmail.com")
	if _, err := env.conversions.ConvertReferral(ctx, convertInput(code.Code, "u-bob", 200)); err != nil {
		t.Fatalf("convert failed: %v", err)
	}

	if err := payouts.HandleReferralConverted(ctx, pending.ID); err != nil {
		t.Fatalf("pending referral should be skipped quietly: %v", err)
	}
	if err := payouts.HandleReferralConverted(ctx, converted.ID); err != nil {
		t.Fatalf("handle converted failed: %v", err)
	}
	if len(notifier.notified) != 1 || notifier.notified[0] != converted.ID {
		t.Fatalf("unexpected notifications: %v", notifier.notified)
	}
}
