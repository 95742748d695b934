package service

import (
	"context"
	"strings"

	"github.com/referral-ledger/internal/constants"
	"github.com/referral-ledger/internal/logger"
	"github.com/referral-ledger/internal/models"
	"github.com/referral-ledger/internal/repository"

	"github.com/shopspring/decimal"
)

// ReferralStats 推荐人统计
type ReferralStats struct {
	TotalReferrals      int64        `json:"totalReferrals"`
	PendingReferrals    int64        `json:"pendingReferrals"`
	ConvertedReferrals  int64        `json:"convertedReferrals"`
	TotalCommission     models.Money `json:"totalCommission"`
	PendingCommission   models.Money `json:"pendingCommission"`
	AvailableCommission models.Money `json:"availableCommission"`
	PaidCommission      models.Money `json:"paidCommission"`
	ConversionRate      float64      `json:"conversionRate"`
	Tier                string       `json:"tier"`
	NextTier            string       `json:"nextTier,omitempty"`
	AmountToNextTier    models.Money `json:"amountToNextTier"`
}

// ReferralStatsService 推荐统计（只读）
type ReferralStatsService struct {
	referralRepo repository.ReferralRepository
	settings     ReferralSettingProvider
}

// NewReferralStatsService 创建统计服务
func NewReferralStatsService(referralRepo repository.ReferralRepository, settings ReferralSettingProvider) *ReferralStatsService {
	return &ReferralStatsService{referralRepo: referralRepo, settings: settings}
}

// GetReferrerStats 汇总推荐人的推荐数、佣金与等级；没有推荐记录时返回零值
func (s *ReferralStatsService) GetReferrerStats(ctx context.Context, referrerUserID string) (*ReferralStats, error) {
	referrerUserID = strings.TrimSpace(referrerUserID)
	if referrerUserID == "" {
		return nil, ErrUserIDRequired
	}
	rows, err := s.referralRepo.AggregateByReferrer(ctx, referrerUserID)
	if err != nil {
		return nil, err
	}

	tiers := DefaultReferralSetting().Tiers
	if s.settings != nil {
		setting, err := s.settings.GetReferralSetting(ctx)
		if err != nil {
			logger.Ctx(ctx).Warnw("referral_stats_setting_fallback", "error", err)
		} else {
			tiers = setting.Tiers
		}
	}
	return buildReferralStats(rows, tiers), nil
}

func buildReferralStats(rows []repository.ReferralAggregateRow, tiers ReferralTierSetting) *ReferralStats {
	var total, pending, converted int64
	totalCommission := decimal.Zero
	pendingCommission := decimal.Zero
	availableCommission := decimal.Zero
	paidCommission := decimal.Zero

	for _, row := range rows {
		total += row.Total
		switch row.Status {
		case constants.ReferralStatusPending:
			pending += row.Total
		case constants.ReferralStatusConverted:
			converted += row.Total
			totalCommission = totalCommission.Add(row.CommissionAmount)
			switch row.PayoutStatus {
			case constants.PayoutStatusPaid:
				paidCommission = paidCommission.Add(row.CommissionAmount)
			case constants.PayoutStatusAvailable:
				availableCommission = availableCommission.Add(row.CommissionAmount)
				pendingCommission = pendingCommission.Add(row.CommissionAmount)
			default:
				pendingCommission = pendingCommission.Add(row.CommissionAmount)
			}
		}
	}

	rate := 0.0
	if total > 0 {
		rate = decimal.NewFromInt(converted).Mul(hundred).Div(decimal.NewFromInt(total)).Round(2).InexactFloat64()
	}
	tier, nextTier, gap := resolveReferralTier(totalCommission, tiers)
	return &ReferralStats{
		TotalReferrals:      total,
		PendingReferrals:    pending,
		ConvertedReferrals:  converted,
		TotalCommission:     models.NewMoneyFromDecimal(totalCommission),
		PendingCommission:   models.NewMoneyFromDecimal(pendingCommission),
		AvailableCommission: models.NewMoneyFromDecimal(availableCommission),
		PaidCommission:      models.NewMoneyFromDecimal(paidCommission),
		ConversionRate:      rate,
		Tier:                tier,
		NextTier:            nextTier,
		AmountToNextTier:    models.NewMoneyFromDecimal(gap),
	}
}

// resolveReferralTier 按累计佣金判定等级，并给出下一等级及差额
func resolveReferralTier(earned decimal.Decimal, tiers ReferralTierSetting) (string, string, decimal.Decimal) {
	switch {
	case earned.GreaterThanOrEqual(tiers.Gold):
		return constants.ReferralTierGold, "", decimal.Zero
	case earned.GreaterThanOrEqual(tiers.Silver):
		return constants.ReferralTierSilver, constants.ReferralTierGold, tiers.Gold.Sub(earned)
	default:
		return constants.ReferralTierBronze, constants.ReferralTierSilver, tiers.Silver.Sub(earned)
	}
}
