package service

import (
	"context"
	"strings"
	"time"

	"github.com/referral-ledger/internal/constants"
	"github.com/referral-ledger/internal/logger"
	"github.com/referral-ledger/internal/models"
	"github.com/referral-ledger/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PayoutNotifier 佣金可结算通知（结算渠道由外部实现）
type PayoutNotifier interface {
	NotifyCommissionPayable(ctx context.Context, referral *models.Referral) error
}

// LogPayoutNotifier 仅记录日志的默认通知实现
type LogPayoutNotifier struct{}

// NotifyCommissionPayable 记录可结算佣金
func (LogPayoutNotifier) NotifyCommissionPayable(ctx context.Context, referral *models.Referral) error {
	logger.Ctx(ctx).Infow("referral_commission_payable",
		"referral_id", referral.ID,
		"referrer_user_id", referral.ReferrerUserID,
		"commission_amount", referral.CommissionAmount.String(),
		"payout_status", referral.PayoutStatus,
	)
	return nil
}

// MarkPaidResult 结算结果
type MarkPaidResult struct {
	Updated   int64  `json:"updated"`
	Reference string `json:"reference"`
}

// PayoutService 佣金结算台账服务
type PayoutService struct {
	referralRepo repository.ReferralRepository
	notifier     PayoutNotifier
	now          func() time.Time
}

// NewPayoutService 创建结算服务
func NewPayoutService(referralRepo repository.ReferralRepository, notifier PayoutNotifier) *PayoutService {
	if notifier == nil {
		notifier = LogPayoutNotifier{}
	}
	return &PayoutService{referralRepo: referralRepo, notifier: notifier, now: time.Now}
}

// ConfirmDuePayouts 将确认期已过的佣金转为可结算
func (s *PayoutService) ConfirmDuePayouts(ctx context.Context, now time.Time) (int64, error) {
	if now.IsZero() {
		now = s.now()
	}
	now = now.UTC()
	affected, err := s.referralRepo.MarkPayoutsAvailable(ctx, now, now)
	if err != nil {
		return 0, err
	}
	if affected > 0 {
		logger.Ctx(ctx).Infow("referral_payouts_confirmed", "count", affected)
	}
	return affected, nil
}

// MarkPaid 将可结算佣金标记为已支付，只处理当前为 available 的记录
func (s *PayoutService) MarkPaid(ctx context.Context, ids []uint, reference string) (*MarkPaidResult, error) {
	ids = normalizePayoutIDs(ids)
	if len(ids) == 0 {
		return nil, ErrPayoutIDsRequired
	}
	reference = strings.TrimSpace(reference)
	if reference == "" {
		reference = uuid.NewString()
	}

	result := &MarkPaidResult{Reference: reference}
	err := s.referralRepo.Transaction(ctx, func(tx *gorm.DB) error {
		repo := s.referralRepo.WithTx(tx)
		rows, err := repo.ListAvailablePayoutsForUpdate(ctx, ids)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		locked := make([]uint, 0, len(rows))
		for _, row := range rows {
			locked = append(locked, row.ID)
		}
		now := s.now().UTC()
		affected, err := repo.UpdatePayouts(ctx, locked, constants.PayoutStatusAvailable, repository.ReferralPatch{
			PayoutStatus:    repository.Set(constants.PayoutStatusPaid),
			PayoutReference: repository.Set(reference),
			PaidAt:          repository.Set(&now),
			UpdatedAt:       repository.Set(now),
		})
		if err != nil {
			return err
		}
		result.Updated = affected
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Ctx(ctx).Infow("referral_payouts_marked_paid",
		"requested", len(ids),
		"updated", result.Updated,
		"reference", reference,
	)
	return result, nil
}

// HandleReferralConverted 处理转化完成事件，通知结算方
func (s *PayoutService) HandleReferralConverted(ctx context.Context, referralID uint) error {
	referral, err := s.referralRepo.GetByID(ctx, referralID)
	if err != nil {
		return err
	}
	if referral == nil || referral.Status != constants.ReferralStatusConverted {
		logger.Ctx(ctx).Warnw("referral_converted_event_skipped", "referral_id", referralID)
		return nil
	}
	return s.notifier.NotifyCommissionPayable(ctx, referral)
}

func normalizePayoutIDs(ids []uint) []uint {
	result := make([]uint, 0, len(ids))
	seen := make(map[uint]struct{}, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		result = append(result, id)
	}
	return result
}
