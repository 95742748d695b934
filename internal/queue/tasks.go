package queue

import (
	"encoding/json"

	"github.com/referral-ledger/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskReferralConverted 推荐转化完成，佣金进入可结算流程
	TaskReferralConverted = constants.TaskReferralConverted
	// TaskReferralFraudReview 风控复核任务
	TaskReferralFraudReview = constants.TaskReferralFraudReview
)

// ReferralConvertedPayload 转化任务载荷
type ReferralConvertedPayload struct {
	ReferralID uint `json:"referral_id"`
}

// ReferralFraudReviewPayload 风控复核任务载荷
type ReferralFraudReviewPayload struct {
	ReferralID uint     `json:"referral_id"`
	Score      int      `json:"score"`
	Signals    []string `json:"signals"`
}

// NewReferralConvertedTask 创建转化任务
func NewReferralConvertedTask(payload ReferralConvertedPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReferralConverted, body), nil
}

// NewReferralFraudReviewTask 创建风控复核任务
func NewReferralFraudReviewTask(payload ReferralFraudReviewPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReferralFraudReview, body), nil
}
