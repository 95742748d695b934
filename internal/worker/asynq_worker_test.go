package worker

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/referral-ledger/internal/constants"
	"github.com/referral-ledger/internal/models"
	"github.com/referral-ledger/internal/provider"
	"github.com/referral-ledger/internal/queue"

	"github.com/glebarez/sqlite"
	"github.com/hibiken/asynq"
	"gorm.io/gorm"
)

func setupWorkerTest(t *testing.T) (*Consumer, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:worker_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db failed: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := models.MigrateSchema(db); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	return NewConsumer(provider.Build(nil, db, nil, nil)), db
}

func seedConvertedReferral(t *testing.T, db *gorm.DB, key string, confirmAt time.Time) *models.Referral {
	t.Helper()
	convertedAt := confirmAt.Add(-7 * 24 * time.Hour)
	referral := &models.Referral{
		ReferralCodeID:   1,
		Code:             "ALICE-ABC234",
		ReferrerUserID:   "u-alice",
		ReferredKey:      key,
		ReferredEmail:    key,
		ReferredUserID:   "u-" + key,
		Status:           constants.ReferralStatusConverted,
		PurchaseValue:    models.NewMoneyFromFloat(500),
		CommissionRate:   models.NewMoneyFromFloat(10),
		CommissionAmount: models.NewMoneyFromFloat(50),
		PayoutStatus:     constants.PayoutStatusPendingConfirm,
		ConvertedAt:      &convertedAt,
		ConfirmAt:        &confirmAt,
	}
	if err := db.Create(referral).Error; err != nil {
		t.Fatalf("seed referral failed: %v", err)
	}
	return referral
}

func TestHandleReferralConverted(t *testing.T) {
	consumer, db := setupWorkerTest(t)
	referral := seedConvertedReferral(t, db, "bob@globex.com", time.Now().UTC().Add(time.Hour))

	task, err := queue.NewReferralConvertedTask(queue.ReferralConvertedPayload{ReferralID: referral.ID})
	if err != nil {
		t.Fatalf("build task failed: %v", err)
	}
	if err := consumer.handleReferralConverted(context.Background(), task); err != nil {
		t.Fatalf("handle converted failed: %v", err)
	}

	missing, _ := queue.NewReferralConvertedTask(queue.ReferralConvertedPayload{ReferralID: 9999})
	if err := consumer.handleReferralConverted(context.Background(), missing); err != nil {
		t.Fatalf("missing referral should be skipped, got %v", err)
	}

	bad := asynq.NewTask(queue.TaskReferralConverted, []byte("{"))
	if err := consumer.handleReferralConverted(context.Background(), bad); !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("malformed payload should skip retry, got %v", err)
	}
}

func TestHandleReferralFraudReview(t *testing.T) {
	consumer, _ := setupWorkerTest(t)
	task, err := queue.NewReferralFraudReviewTask(queue.ReferralFraudReviewPayload{
		ReferralID: 7,
		Score:      40,
		Signals:    []string{constants.FraudSignalIPVelocity},
	})
	if err != nil {
		t.Fatalf("build task failed: %v", err)
	}
	if err := consumer.handleReferralFraudReview(context.Background(), task); err != nil {
		t.Fatalf("handle fraud review failed: %v", err)
	}
	bad := asynq.NewTask(queue.TaskReferralFraudReview, []byte("nope"))
	if err := consumer.handleReferralFraudReview(context.Background(), bad); !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("malformed payload should skip retry, got %v", err)
	}
}

func TestRunPayoutConfirmLoopConfirmsDueRows(t *testing.T) {
	consumer, db := setupWorkerTest(t)
	due := seedConvertedReferral(t, db, "due@globex.com", time.Now().UTC().Add(-time.Hour))
	notDue := seedConvertedReferral(t, db, "later@globex.com", time.Now().UTC().Add(48*time.Hour))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	RunPayoutConfirmLoop(ctx, consumer, time.Hour)

	var got models.Referral
	if err := db.First(&got, due.ID).Error; err != nil {
		t.Fatalf("reload due referral failed: %v", err)
	}
	if got.PayoutStatus != constants.PayoutStatusAvailable {
		t.Fatalf("due payout status want available got %s", got.PayoutStatus)
	}
	if got.CommissionAmount.String() != "50.00" {
		t.Fatalf("commission must not change, got %s", got.CommissionAmount.String())
	}

	if err := db.First(&got, notDue.ID).Error; err != nil {
		t.Fatalf("reload pending referral failed: %v", err)
	}
	if got.PayoutStatus != constants.PayoutStatusPendingConfirm {
		t.Fatalf("future payout status want pending_confirm got %s", got.PayoutStatus)
	}
}

func TestRegisterNilSafe(t *testing.T) {
	var consumer *Consumer
	consumer.Register(asynq.NewServeMux())
	NewConsumer(nil).Register(nil)
}
