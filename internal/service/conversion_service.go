package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/referral-ledger/internal/constants"
	"github.com/referral-ledger/internal/logger"
	"github.com/referral-ledger/internal/models"
	"github.com/referral-ledger/internal/queue"
	"github.com/referral-ledger/internal/repository"

	"github.com/shopspring/decimal"
)

// ConvertReferralInput 转化请求；ReferralCode 与 ReferredEmail 至少提供一个，同时提供时以推荐码为准
type ConvertReferralInput struct {
	ReferralCode   string
	ReferredEmail  string
	ReferredUserID string
	PurchaseValue  decimal.Decimal
	OrderID        string
	IP             string
	UserAgent      string
	Fraud          *FraudCheckResult
}

// ConversionResult 转化结果
type ConversionResult struct {
	ReferralID       uint         `json:"referralId"`
	CommissionAmount models.Money `json:"commissionAmount"`
}

// ConversionService 推荐转化与计佣
type ConversionService struct {
	codeRepo     repository.ReferralCodeRepository
	referralRepo repository.ReferralRepository
	settings     ReferralSettingProvider
	queueClient  *queue.Client
	fraud        *FraudService
	now          func() time.Time
}

// NewConversionService 创建转化服务
func NewConversionService(
	codeRepo repository.ReferralCodeRepository,
	referralRepo repository.ReferralRepository,
	settings ReferralSettingProvider,
	queueClient *queue.Client,
	fraud *FraudService,
) *ConversionService {
	return &ConversionService{
		codeRepo:     codeRepo,
		referralRepo: referralRepo,
		settings:     settings,
		queueClient:  queueClient,
		fraud:        fraud,
		now:          time.Now,
	}
}

// ConvertReferral 将待转化推荐记录标记为已转化并计算佣金，同一记录只会成功一次
func (s *ConversionService) ConvertReferral(ctx context.Context, input ConvertReferralInput) (*ConversionResult, error) {
	if !input.PurchaseValue.IsPositive() {
		return nil, ErrInvalidPurchaseValue
	}
	referredUserID := strings.TrimSpace(input.ReferredUserID)
	if referredUserID == "" {
		return nil, ErrUserIDRequired
	}
	if input.Fraud != nil && input.Fraud.Action == constants.FraudActionBlock {
		logger.Ctx(ctx).Warnw("referral_conversion_blocked",
			"referral_code", input.ReferralCode,
			"referred_user_id", referredUserID,
			"score", input.Fraud.RiskScore,
			"signals", input.Fraud.Signals,
		)
		return nil, ErrConversionBlocked
	}

	referral, err := s.resolvePendingReferral(ctx, input)
	if err != nil {
		return nil, err
	}

	setting, err := s.loadSetting(ctx)
	if err != nil {
		return nil, err
	}
	rule := setting.Commission
	if !rule.Eligible(input.PurchaseValue) {
		return nil, ErrBelowMinimumPurchase
	}
	commission := rule.Commission(input.PurchaseValue)

	now := s.now().UTC()
	patch := repository.ReferralPatch{
		Status:           repository.Set(constants.ReferralStatusConverted),
		PurchaseValue:    repository.Set(models.NewMoneyFromDecimal(input.PurchaseValue)),
		CommissionRate:   repository.Set(models.NewMoneyFromDecimal(rule.RatePercent)),
		CommissionAmount: repository.Set(models.NewMoneyFromDecimal(commission)),
		ConvertedAt:      repository.Set(&now),
		UpdatedAt:        repository.Set(now),
	}
	if strings.TrimSpace(referral.ReferredUserID) == "" {
		patch.ReferredUserID = repository.Set(referredUserID)
	}
	if orderID := strings.TrimSpace(input.OrderID); orderID != "" {
		patch.OrderID = repository.Set(&orderID)
	}
	if ip := strings.TrimSpace(input.IP); ip != "" {
		patch.ConversionIP = repository.Set(ip)
	}
	fingerprint := DeviceFingerprint(input.IP, input.UserAgent)
	if fingerprint != "" {
		patch.DeviceFingerprint = repository.Set(fingerprint)
	}
	if input.Fraud != nil {
		patch.FraudAction = repository.Set(input.Fraud.Action)
		patch.FraudScore = repository.Set(input.Fraud.RiskScore)
		patch.FraudSignals = repository.Set(models.StringArray(input.Fraud.SignalTypes()))
	}
	if setting.ConfirmDays > 0 {
		confirmAt := now.AddDate(0, 0, setting.ConfirmDays)
		patch.PayoutStatus = repository.Set(constants.PayoutStatusPendingConfirm)
		patch.ConfirmAt = repository.Set(&confirmAt)
	} else {
		patch.PayoutStatus = repository.Set(constants.PayoutStatusAvailable)
		patch.ConfirmAt = repository.Set(&now)
		patch.AvailableAt = repository.Set(&now)
	}

	affected, err := s.referralRepo.UpdateIfStatus(ctx, referral.ID, constants.ReferralStatusPending, patch)
	if err != nil {
		if repository.IsUniqueViolationOn(err, "referrals", "order_id") {
			return nil, ErrOrderAlreadyConverted
		}
		return nil, err
	}
	if affected == 0 {
		logger.Ctx(ctx).Infow("referral_conversion_lost_race",
			"referral_id", referral.ID,
			"referred_user_id", referredUserID,
		)
		return nil, ErrReferralAlreadyConverted
	}

	logger.Ctx(ctx).Infow("referral_converted",
		"referral_id", referral.ID,
		"referrer_user_id", referral.ReferrerUserID,
		"referred_user_id", referredUserID,
		"purchase_value", input.PurchaseValue.StringFixed(2),
		"commission_amount", commission.StringFixed(2),
		"order_id", input.OrderID,
	)
	s.afterConversion(ctx, referral.ID, input, fingerprint)

	return &ConversionResult{
		ReferralID:       referral.ID,
		CommissionAmount: models.NewMoneyFromDecimal(commission),
	}, nil
}

// resolvePendingReferral 找到可转化的推荐记录；只有已转化记录时返回冲突
func (s *ConversionService) resolvePendingReferral(ctx context.Context, input ConvertReferralInput) (*models.Referral, error) {
	lookup := repository.ReferralLookup{}
	code := strings.TrimSpace(input.ReferralCode)
	rawEmail := strings.TrimSpace(input.ReferredEmail)

	switch {
	case code != "":
		codeRow, err := s.codeRepo.GetByCode(ctx, code)
		if err != nil {
			return nil, err
		}
		if codeRow == nil {
			return nil, ErrReferralNotFound
		}
		lookup.ReferralCodeID = codeRow.ID
		lookup.ReferredUserID = strings.TrimSpace(input.ReferredUserID)
		if rawEmail != "" {
			email, err := normalizeEmail(rawEmail)
			if err != nil {
				return nil, err
			}
			lookup.ReferredEmail = email
		}
	case rawEmail != "":
		email, err := normalizeEmail(rawEmail)
		if err != nil {
			return nil, err
		}
		lookup.ReferredEmail = email
	default:
		return nil, ErrReferralTargetRequired
	}

	rows, err := s.referralRepo.FindByReferred(ctx, lookup)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrReferralNotFound
	}
	if rows[0].Status != constants.ReferralStatusPending {
		return nil, ErrReferralAlreadyConverted
	}
	referral := rows[0]
	return &referral, nil
}

func (s *ConversionService) afterConversion(ctx context.Context, referralID uint, input ConvertReferralInput, fingerprint string) {
	if err := s.queueClient.EnqueueReferralConverted(queue.ReferralConvertedPayload{ReferralID: referralID}); err != nil {
		logger.Ctx(ctx).Warnw("referral_converted_enqueue_failed", "referral_id", referralID, "error", err)
	}
	if input.Fraud != nil && input.Fraud.Action == constants.FraudActionReview {
		payload := queue.ReferralFraudReviewPayload{
			ReferralID: referralID,
			Score:      input.Fraud.RiskScore,
			Signals:    input.Fraud.SignalTypes(),
		}
		if err := s.queueClient.EnqueueReferralFraudReview(payload); err != nil {
			logger.Ctx(ctx).Warnw("referral_fraud_review_enqueue_failed", "referral_id", referralID, "error", err)
		}
	}
	s.fraud.RecordConversion(ctx, input.IP, fingerprint)
}

func (s *ConversionService) loadSetting(ctx context.Context) (ReferralSetting, error) {
	if s.settings == nil {
		return DefaultReferralSetting(), nil
	}
	setting, err := s.settings.GetReferralSetting(ctx)
	if err != nil {
		if errors.Is(err, ErrReferralConfigInvalid) {
			return ReferralSetting{}, err
		}
		logger.Ctx(ctx).Warnw("referral_conversion_setting_fallback", "error", err)
		if setting.Code.MaxAttempts == 0 {
			return DefaultReferralSetting(), nil
		}
	}
	return setting, nil
}
