package service

import (
	"context"
	"time"

	"github.com/referral-ledger/internal/cache"
	"github.com/referral-ledger/internal/constants"
	"github.com/referral-ledger/internal/logger"
	"github.com/referral-ledger/internal/models"
	"github.com/referral-ledger/internal/repository"
)

const referralSettingCacheTTL = time.Minute

// SettingService 设置业务服务
type SettingService struct {
	repo     repository.SettingRepository
	defaults ReferralSetting
}

// NewSettingService 创建设置服务，defaults 为 settings 表缺省时的推荐配置
func NewSettingService(repo repository.SettingRepository, defaults ReferralSetting) *SettingService {
	return &SettingService{repo: repo, defaults: NormalizeReferralSetting(defaults)}
}

// GetByKey 获取设置
func (s *SettingService) GetByKey(ctx context.Context, key string) (models.JSON, error) {
	setting, err := s.repo.GetByKey(ctx, key)
	if err != nil {
		return nil, err
	}
	if setting == nil {
		return nil, nil
	}
	return setting.ValueJSON, nil
}

// GetReferralSetting 获取推荐配置，读取失败时返回默认值与错误
func (s *SettingService) GetReferralSetting(ctx context.Context) (ReferralSetting, error) {
	if s == nil {
		return DefaultReferralSetting(), nil
	}
	var cached ReferralSetting
	if hit, err := cache.GetJSON(ctx, constants.ReferralSettingCacheKey, &cached); err == nil && hit {
		return NormalizeReferralSetting(cached), nil
	} else if err != nil {
		logger.Ctx(ctx).Warnw("referral_setting_cache_read_failed", "error", err)
	}

	raw, err := s.GetByKey(ctx, constants.SettingKeyReferralConfig)
	if err != nil {
		return s.defaults, err
	}
	setting, err := referralSettingFromJSON(raw, s.defaults)
	if err != nil {
		logger.Ctx(ctx).Warnw("referral_setting_decode_failed", "error", err)
		return s.defaults, err
	}
	if err := cache.SetJSON(ctx, constants.ReferralSettingCacheKey, setting, referralSettingCacheTTL); err != nil {
		logger.Ctx(ctx).Warnw("referral_setting_cache_write_failed", "error", err)
	}
	return setting, nil
}

// UpdateReferralSetting 校验并保存推荐配置
func (s *SettingService) UpdateReferralSetting(ctx context.Context, setting ReferralSetting) (ReferralSetting, error) {
	if err := ValidateReferralSetting(setting); err != nil {
		return ReferralSetting{}, err
	}
	normalized := NormalizeReferralSetting(setting)
	value, err := ReferralSettingToMap(normalized)
	if err != nil {
		return ReferralSetting{}, err
	}
	if _, err := s.repo.Upsert(ctx, constants.SettingKeyReferralConfig, models.JSON(value)); err != nil {
		return ReferralSetting{}, err
	}
	if err := cache.Del(ctx, constants.ReferralSettingCacheKey); err != nil {
		logger.Ctx(ctx).Warnw("referral_setting_cache_evict_failed", "error", err)
	}
	logger.Ctx(ctx).Infow("referral_setting_updated",
		"rate_percent", normalized.Commission.RatePercent.String(),
		"minimum_purchase", normalized.Commission.MinimumPurchase.String(),
		"confirm_days", normalized.ConfirmDays,
	)
	return normalized, nil
}
