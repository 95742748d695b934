package service

import (
	"context"
	"errors"
	"testing"

	"github.com/referral-ledger/internal/constants"
)

func TestAttachReferralFirstAssociationWins(t *testing.T) {
	env := setupReferralTestEnv(t)
	ctx := context.Background()
	alice := env.mustCode(t, "u-alice", "alice@example.com")
	mallory := env.mustCode(t, "u-mallory", "mallory@example.com")

	first := env.mustAttach(t, alice.Code, "u-bob", "Bob@Gmail.com")
	if first.Status != constants.ReferralStatusPending || first.ReferrerUserID != "u-alice" || first.ReferredEmail != "bob@gmail.com" {
		t.Fatalf("unexpected attached referral: %+v", first)
	}

	again := env.mustAttach(t, alice.Code, "u-bob", "bob@gmail.com")
	if again.ID != first.ID {
		t.Fatalf("re-attach to the same code should be idempotent")
	}

	_, err := env.referrals.AttachReferral(ctx, AttachReferralInput{
		ReferralCode:   mallory.Code,
		ReferredUserID: "u-bob",
		ReferredEmail:  "bob@gmail.com",
	})
	if !errors.Is(err, ErrReferralAlreadyAttached) {
		t.Fatalf("expected ErrReferralAlreadyAttached, got %v", err)
	}
}

func TestAttachReferralSameUserDifferentEmailConflicts(t *testing.T) {
	env := setupReferralTestEnv(t)
	ctx := context.Background()
	alice := env.mustCode(t, "u-alice", "alice@example.com")
	carol := env.mustCode(t, "u-carol", "carol@example.com")

	first := env.mustAttach(t, alice.Code, "u-bob", "bob@gmail.com")
	if first.ReferredKey != constants.ReferredKeyUserIDPrefix+"u-bob" {
		t.Fatalf("referred key should be bound to the user id, got %s", first.ReferredKey)
	}

	_, err := env.referrals.AttachReferral(ctx, AttachReferralInput{
		ReferralCode:   carol.Code,
		ReferredUserID: "u-bob",
		ReferredEmail:  "bob2@gmail.com",
	})
	if !errors.Is(err, ErrReferralAlreadyAttached) {
		t.Fatalf("expected ErrReferralAlreadyAttached for a second code, got %v", err)
	}

	// 其他用户复用已绑定的邮箱同样冲突
	_, err = env.referrals.AttachReferral(ctx, AttachReferralInput{
		ReferralCode:   carol.Code,
		ReferredUserID: "u-bob-alt",
		ReferredEmail:  "Bob@Gmail.com",
	})
	if !errors.Is(err, ErrReferralAlreadyAttached) {
		t.Fatalf("expected ErrReferralAlreadyAttached for a reused email, got %v", err)
	}

	if _, err := env.conversions.ConvertReferral(ctx, convertInput(alice.Code, "u-bob", 500)); err != nil {
		t.Fatalf("convert via first code failed: %v", err)
	}
	if _, err := env.conversions.ConvertReferral(ctx, convertInput(carol.Code, "u-bob", 500)); !errors.Is(err, ErrReferralNotFound) {
		t.Fatalf("second code must not pay a commission, got %v", err)
	}
}

func TestAttachReferralValidation(t *testing.T) {
	env := setupReferralTestEnv(t)
	ctx := context.Background()
	code := env.mustCode(t, "u-alice", "alice@example.com")

	if _, err := env.referrals.AttachReferral(ctx, AttachReferralInput{ReferralCode: code.Code}); !errors.Is(err, ErrUserIDRequired) {
		t.Fatalf("expected ErrUserIDRequired, got %v", err)
	}
	if _, err := env.referrals.AttachReferral(ctx, AttachReferralInput{ReferralCode: code.Code, ReferredUserID: "u-1", ReferredEmail: "bad"}); !errors.Is(err, ErrInvalidEmail) {
		t.Fatalf("expected ErrInvalidEmail, got %v", err)
	}
	if _, err := env.referrals.AttachReferral(ctx, AttachReferralInput{ReferralCode: "NOPE", ReferredUserID: "u-1"}); !errors.Is(err, ErrReferralCodeNotFound) {
		t.Fatalf("expected ErrReferralCodeNotFound, got %v", err)
	}

	byUser, err := env.referrals.AttachReferral(ctx, AttachReferralInput{ReferralCode: code.Code, ReferredUserID: "u-2"})
	if err != nil {
		t.Fatalf("attach without email failed: %v", err)
	}
	if byUser.ReferredKey != constants.ReferredKeyUserIDPrefix+"u-2" {
		t.Fatalf("unexpected referred key: %s", byUser.ReferredKey)
	}
}

func TestGetOverview(t *testing.T) {
	env := setupReferralTestEnv(t)
	ctx := context.Background()

	if _, err := env.referrals.GetOverview(ctx, "u-alice", "", 1, 20); !errors.Is(err, ErrReferralCodeNotFound) {
		t.Fatalf("expected ErrReferralCodeNotFound without email, got %v", err)
	}

	overview, err := env.referrals.GetOverview(ctx, "u-alice", "alice@example.com", 1, 20)
	if err != nil {
		t.Fatalf("overview failed: %v", err)
	}
	if overview.Code == nil || overview.Stats == nil || len(overview.Referrals) != 0 {
		t.Fatalf("unexpected overview: %+v", overview)
	}

	env.mustAttach(t, overview.Code.Code, "u-bob", "bob@gmail.com")
	overview, err = env.referrals.GetOverview(ctx, "u-alice", "", 1, 20)
	if err != nil {
		t.Fatalf("overview failed: %v", err)
	}
	if len(overview.Referrals) != 1 || overview.Stats.TotalReferrals != 1 || overview.Stats.PendingReferrals != 1 {
		t.Fatalf("unexpected overview after attach: %+v", overview)
	}
}
