package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/referral-ledger/internal/models"
)

func TestGetOrCreateReferralCodeIsIdempotent(t *testing.T) {
	env := setupReferralTestEnv(t)

	first := env.mustCode(t, "u-alice", "Alice.Smith@Example.com")
	second := env.mustCode(t, "u-alice", "alice.smith@example.com")
	if first.ID != second.ID || first.Code != second.Code {
		t.Fatalf("expected same code, got %s and %s", first.Code, second.Code)
	}
	if !strings.HasPrefix(first.Code, "ALICES-") {
		t.Fatalf("unexpected code prefix: %s", first.Code)
	}
	if len(first.Code) != len("ALICES-")+6 {
		t.Fatalf("unexpected code length: %s", first.Code)
	}
	if first.Email != "alice.smith@example.com" {
		t.Fatalf("email should be normalized, got %s", first.Email)
	}

	var count int64
	if err := env.db.Model(&models.ReferralCode{}).Where("user_id = ?", "u-alice").Count(&count).Error; err != nil {
		t.Fatalf("count codes failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 code row, got %d", count)
	}
}

func TestGetOrCreateReferralCodeValidatesInput(t *testing.T) {
	env := setupReferralTestEnv(t)
	ctx := context.Background()

	if _, err := env.codes.GetOrCreateReferralCode(ctx, "", "a@example.com"); !errors.Is(err, ErrUserIDRequired) {
		t.Fatalf("expected ErrUserIDRequired, got %v", err)
	}
	for _, email := range []string{"", "not-an-email", "a@b", "Bob <bob@example.com>"} {
		_, err := env.codes.GetOrCreateReferralCode(ctx, "u-1", email)
		if !errors.Is(err, ErrInvalidEmail) {
			t.Fatalf("email %q: expected ErrInvalidEmail, got %v", email, err)
		}
		if !errors.Is(err, ErrValidation) {
			t.Fatalf("email %q: expected validation class", email)
		}
	}
}

func TestGetOrCreateReferralCodeRetriesOnCollision(t *testing.T) {
	env := setupReferralTestEnv(t)
	ctx := context.Background()

	if err := env.codeRepo.Create(ctx, &models.ReferralCode{UserID: "u-other", Email: "other@example.com", Code: "BOB-AAAAAA"}); err != nil {
		t.Fatalf("seed code failed: %v", err)
	}
	suffixes := []string{"AAAAAA", "BBBBBB"}
	calls := 0
	env.codes.suffixFn = func(int) (string, error) {
		s := suffixes[calls]
		calls++
		return s, nil
	}

	code, err := env.codes.GetOrCreateReferralCode(ctx, "u-bob", "bob@example.com")
	if err != nil {
		t.Fatalf("create code failed: %v", err)
	}
	if code.Code != "BOB-BBBBBB" || calls != 2 {
		t.Fatalf("expected retry to BOB-BBBBBB, got %s after %d calls", code.Code, calls)
	}
}

func TestGetOrCreateReferralCodeGivesUpAfterMaxAttempts(t *testing.T) {
	env := setupReferralTestEnv(t)
	ctx := context.Background()

	if err := env.codeRepo.Create(ctx, &models.ReferralCode{UserID: "u-other", Email: "other@example.com", Code: "BOB-AAAAAA"}); err != nil {
		t.Fatalf("seed code failed: %v", err)
	}
	calls := 0
	env.codes.suffixFn = func(int) (string, error) {
		calls++
		return "AAAAAA", nil
	}

	_, err := env.codes.GetOrCreateReferralCode(ctx, "u-bob", "bob@example.com")
	if !errors.Is(err, ErrReferralCodeConflict) {
		t.Fatalf("expected ErrReferralCodeConflict, got %v", err)
	}
	if calls != DefaultReferralSetting().Code.MaxAttempts {
		t.Fatalf("expected %d attempts, got %d", DefaultReferralSetting().Code.MaxAttempts, calls)
	}
}

func TestBuildReferralCodePrefix(t *testing.T) {
	cases := map[string]string{
		"jo.hn-doe+x@example.com": "JOHNDO",
		"ab@example.com":          "AB",
		"..@example.com":          "REF",
		"名字@example.com":          "REF",
	}
	for email, want := range cases {
		if got := buildReferralCodePrefix(email, 6); got != want {
			t.Fatalf("prefix for %q: want %s got %s", email, want, got)
		}
	}
}

func TestGenerateReferralSuffixUsesAlphabet(t *testing.T) {
	suffix, err := generateReferralSuffix(12)
	if err != nil {
		t.Fatalf("generate suffix failed: %v", err)
	}
	if len(suffix) != 12 {
		t.Fatalf("unexpected suffix length: %d", len(suffix))
	}
	if strings.ContainsAny(suffix, "01IO") {
		t.Fatalf("suffix contains ambiguous characters: %s", suffix)
	}
}
