package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/referral-ledger/internal/logger"
	"github.com/referral-ledger/internal/provider"
	"github.com/referral-ledger/internal/queue"

	"github.com/hibiken/asynq"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskReferralConverted, c.handleReferralConverted)
	mux.HandleFunc(queue.TaskReferralFraudReview, c.handleReferralFraudReview)
}

func (c *Consumer) handleReferralConverted(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_referral_converted_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.ReferralConvertedPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_referral_converted_unmarshal_failed", "error", err)
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	if payload.ReferralID == 0 {
		logger.Debugw("worker_referral_converted_skip_invalid_payload", "referral_id", payload.ReferralID)
		return nil
	}
	if c.PayoutService == nil {
		logger.Warnw("worker_referral_converted_skip_payout_service_nil", "referral_id", payload.ReferralID)
		return nil
	}
	if err := c.PayoutService.HandleReferralConverted(ctx, payload.ReferralID); err != nil {
		logger.Warnw("worker_referral_converted_failed", "referral_id", payload.ReferralID, "error", err)
		return err
	}
	return nil
}

func (c *Consumer) handleReferralFraudReview(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_referral_fraud_review_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.ReferralFraudReviewPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_referral_fraud_review_unmarshal_failed", "error", err)
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	// 复核由运营在后台处理，这里只留审计日志
	logger.Warnw("referral_fraud_review_required",
		"referral_id", payload.ReferralID,
		"score", payload.Score,
		"signals", payload.Signals,
	)
	return nil
}
