package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/referral-ledger/internal/config"
	"github.com/referral-ledger/internal/models"

	"github.com/shopspring/decimal"
)

const (
	referralCommissionRateMax   = 100
	referralConfirmDaysMax      = 3650
	referralCodePrefixLengthMax = 12
	referralCodeSuffixLengthMin = 4
	referralCodeSuffixLengthMax = 16
	referralCodeAttemptsMax     = 32
	referralDisposableListMax   = 500
)

var hundred = decimal.NewFromInt(100)

// ReferralSettingProvider 提供当前生效的推荐配置
type ReferralSettingProvider interface {
	GetReferralSetting(ctx context.Context) (ReferralSetting, error)
}

// ReferralSetting 推荐返佣运行时配置
type ReferralSetting struct {
	Commission  CommissionRule      `json:"commission"`
	Fraud       FraudSetting        `json:"fraud"`
	Tiers       ReferralTierSetting `json:"tiers"`
	ConfirmDays int                 `json:"confirm_days"`
	Code        ReferralCodeSetting `json:"code"`
}

// CommissionRule 佣金规则：max(比例 × 金额, 保底)，金额低于门槛不计佣
type CommissionRule struct {
	RatePercent     decimal.Decimal `json:"rate_percent"`
	FlatFloor       decimal.Decimal `json:"flat_floor"`
	MinimumPurchase decimal.Decimal `json:"minimum_purchase"`
}

// FraudSetting 风控权重与阈值
type FraudSetting struct {
	ReviewThreshold       int      `json:"review_threshold"`
	BlockThreshold        int      `json:"block_threshold"`
	SelfReferralWeight    int      `json:"self_referral_weight"`
	IPVelocityWeight      int      `json:"ip_velocity_weight"`
	DeviceVelocityWeight  int      `json:"device_velocity_weight"`
	DisposableEmailWeight int      `json:"disposable_email_weight"`
	SimilarEmailWeight    int      `json:"similar_email_weight"`
	SameDomainWeight      int      `json:"same_domain_weight"`
	VelocityWindowMinutes int      `json:"velocity_window_minutes"`
	VelocityMaxPerIP      int      `json:"velocity_max_per_ip"`
	SimilarityMaxDistance int      `json:"similarity_max_distance"`
	DisposableDomains     []string `json:"disposable_domains"`
}

// ReferralTierSetting 等级门槛（累计佣金）
type ReferralTierSetting struct {
	Silver decimal.Decimal `json:"silver"`
	Gold   decimal.Decimal `json:"gold"`
}

// ReferralCodeSetting 推荐码生成参数
type ReferralCodeSetting struct {
	PrefixLength int `json:"prefix_length"`
	SuffixLength int `json:"suffix_length"`
	MaxAttempts  int `json:"max_attempts"`
}

// Eligible 判断金额是否达到计佣门槛
func (r CommissionRule) Eligible(purchaseValue decimal.Decimal) bool {
	return purchaseValue.GreaterThanOrEqual(r.MinimumPurchase)
}

// Commission 计算佣金，保留 2 位小数
func (r CommissionRule) Commission(purchaseValue decimal.Decimal) decimal.Decimal {
	byRate := purchaseValue.Mul(r.RatePercent).Div(hundred)
	return decimal.Max(byRate, r.FlatFloor).Round(2)
}

// ReferralSettingFromConfig 由配置文件生成默认推荐配置
func ReferralSettingFromConfig(cfg config.ReferralConfig) ReferralSetting {
	return NormalizeReferralSetting(ReferralSetting{
		Commission: CommissionRule{
			RatePercent:     decimal.NewFromFloat(cfg.CommissionRate),
			FlatFloor:       decimal.NewFromFloat(cfg.CommissionFlatFloor),
			MinimumPurchase: decimal.NewFromFloat(cfg.MinimumPurchase),
		},
		Fraud: FraudSetting{
			ReviewThreshold:       cfg.Fraud.ReviewThreshold,
			BlockThreshold:        cfg.Fraud.BlockThreshold,
			SelfReferralWeight:    cfg.Fraud.SelfReferralWeight,
			IPVelocityWeight:      cfg.Fraud.IPVelocityWeight,
			DeviceVelocityWeight:  cfg.Fraud.DeviceVelocityWeight,
			DisposableEmailWeight: cfg.Fraud.DisposableEmailWeight,
			SimilarEmailWeight:    cfg.Fraud.SimilarEmailWeight,
			SameDomainWeight:      cfg.Fraud.SameDomainWeight,
			VelocityWindowMinutes: cfg.Fraud.VelocityWindowMinutes,
			VelocityMaxPerIP:      cfg.Fraud.VelocityMaxPerIP,
			SimilarityMaxDistance: cfg.Fraud.SimilarityMaxDistance,
			DisposableDomains:     cfg.Fraud.DisposableDomains,
		},
		Tiers: ReferralTierSetting{
			Silver: decimal.NewFromFloat(cfg.Tiers.Silver),
			Gold:   decimal.NewFromFloat(cfg.Tiers.Gold),
		},
		ConfirmDays: cfg.ConfirmDays,
		Code: ReferralCodeSetting{
			PrefixLength: cfg.Code.PrefixLength,
			SuffixLength: cfg.Code.SuffixLength,
			MaxAttempts:  cfg.Code.MaxAttempts,
		},
	})
}

// DefaultReferralSetting 内置默认值：10% / 保底 25 / 门槛 100
func DefaultReferralSetting() ReferralSetting {
	return ReferralSettingFromConfig(config.ReferralConfig{
		CommissionRate:      10,
		CommissionFlatFloor: 25,
		MinimumPurchase:     100,
		ConfirmDays:         7,
		Code:                config.ReferralCodeConfig{PrefixLength: 6, SuffixLength: 6, MaxAttempts: 8},
		Fraud: config.FraudConfig{
			ReviewThreshold:       30,
			BlockThreshold:        70,
			SelfReferralWeight:    100,
			IPVelocityWeight:      40,
			DeviceVelocityWeight:  40,
			DisposableEmailWeight: 30,
			SimilarEmailWeight:    35,
			SameDomainWeight:      20,
			VelocityWindowMinutes: 60,
			VelocityMaxPerIP:      3,
			SimilarityMaxDistance: 2,
		},
		Tiers: config.ReferralTiersConfig{Silver: 500, Gold: 2000},
	})
}

// NormalizeReferralSetting 归一化推荐配置
func NormalizeReferralSetting(setting ReferralSetting) ReferralSetting {
	setting.Commission.RatePercent = clampDecimal(setting.Commission.RatePercent.Round(2), decimal.Zero, hundred)
	setting.Commission.FlatFloor = clampDecimal(setting.Commission.FlatFloor.Round(2), decimal.Zero, decimal.Zero)
	setting.Commission.MinimumPurchase = clampDecimal(setting.Commission.MinimumPurchase.Round(2), decimal.Zero, decimal.Zero)

	fraud := &setting.Fraud
	fraud.ReviewThreshold = clampInt(fraud.ReviewThreshold, 0, 0)
	fraud.BlockThreshold = clampInt(fraud.BlockThreshold, 0, 0)
	fraud.SelfReferralWeight = clampInt(fraud.SelfReferralWeight, 0, 0)
	fraud.IPVelocityWeight = clampInt(fraud.IPVelocityWeight, 0, 0)
	fraud.DeviceVelocityWeight = clampInt(fraud.DeviceVelocityWeight, 0, 0)
	fraud.DisposableEmailWeight = clampInt(fraud.DisposableEmailWeight, 0, 0)
	fraud.SimilarEmailWeight = clampInt(fraud.SimilarEmailWeight, 0, 0)
	fraud.SameDomainWeight = clampInt(fraud.SameDomainWeight, 0, 0)
	if fraud.VelocityWindowMinutes <= 0 {
		fraud.VelocityWindowMinutes = 60
	}
	if fraud.VelocityMaxPerIP <= 0 {
		fraud.VelocityMaxPerIP = 3
	}
	fraud.SimilarityMaxDistance = clampInt(fraud.SimilarityMaxDistance, 0, 0)
	fraud.DisposableDomains = normalizeDomainList(fraud.DisposableDomains)

	setting.Tiers.Silver = clampDecimal(setting.Tiers.Silver.Round(2), decimal.Zero, decimal.Zero)
	setting.Tiers.Gold = clampDecimal(setting.Tiers.Gold.Round(2), decimal.Zero, decimal.Zero)
	setting.ConfirmDays = clampInt(setting.ConfirmDays, 0, referralConfirmDaysMax)

	if setting.Code.PrefixLength <= 0 {
		setting.Code.PrefixLength = 6
	}
	if setting.Code.SuffixLength <= 0 {
		setting.Code.SuffixLength = 6
	}
	setting.Code.PrefixLength = clampInt(setting.Code.PrefixLength, 1, referralCodePrefixLengthMax)
	setting.Code.SuffixLength = clampInt(setting.Code.SuffixLength, referralCodeSuffixLengthMin, referralCodeSuffixLengthMax)
	if setting.Code.MaxAttempts <= 0 {
		setting.Code.MaxAttempts = 8
	}
	setting.Code.MaxAttempts = clampInt(setting.Code.MaxAttempts, 1, referralCodeAttemptsMax)
	return setting
}

// ValidateReferralSetting 校验推荐配置
func ValidateReferralSetting(setting ReferralSetting) error {
	if setting.Commission.RatePercent.IsNegative() || setting.Commission.RatePercent.GreaterThan(decimal.NewFromInt(referralCommissionRateMax)) {
		return fmt.Errorf("%w: 佣金比例必须在 0-100 之间", ErrReferralConfigInvalid)
	}
	if setting.Commission.FlatFloor.IsNegative() || setting.Commission.MinimumPurchase.IsNegative() {
		return fmt.Errorf("%w: 保底佣金与计佣门槛不能小于 0", ErrReferralConfigInvalid)
	}
	if setting.Fraud.ReviewThreshold <= 0 || setting.Fraud.BlockThreshold <= 0 {
		return fmt.Errorf("%w: 风控阈值必须大于 0", ErrReferralConfigInvalid)
	}
	if setting.Fraud.ReviewThreshold > setting.Fraud.BlockThreshold {
		return fmt.Errorf("%w: 复核阈值不能高于拦截阈值", ErrReferralConfigInvalid)
	}
	if setting.Tiers.Gold.LessThan(setting.Tiers.Silver) {
		return fmt.Errorf("%w: 金牌门槛不能低于银牌门槛", ErrReferralConfigInvalid)
	}
	if setting.ConfirmDays < 0 || setting.ConfirmDays > referralConfirmDaysMax {
		return fmt.Errorf("%w: 佣金确认天数必须在 0-3650 之间", ErrReferralConfigInvalid)
	}
	return nil
}

// ReferralSettingToMap 转换为 settings 存储结构
func ReferralSettingToMap(setting ReferralSetting) (map[string]interface{}, error) {
	body, err := json.Marshal(NormalizeReferralSetting(setting))
	if err != nil {
		return nil, err
	}
	result := make(map[string]interface{})
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// referralSettingFromJSON 以 fallback 为底合并存储值，缺省字段保持 fallback
func referralSettingFromJSON(raw models.JSON, fallback ReferralSetting) (ReferralSetting, error) {
	if len(raw) == 0 {
		return fallback, nil
	}
	body, err := json.Marshal(raw)
	if err != nil {
		return fallback, err
	}
	result := fallback
	result.Fraud.DisposableDomains = append([]string(nil), fallback.Fraud.DisposableDomains...)
	if err := json.Unmarshal(body, &result); err != nil {
		return fallback, err
	}
	return NormalizeReferralSetting(result), nil
}

func clampInt(value, min, max int) int {
	if value < min {
		return min
	}
	if max > min && value > max {
		return max
	}
	return value
}

// clampDecimal max 不大于 min 时表示不设上限
func clampDecimal(value, min, max decimal.Decimal) decimal.Decimal {
	if value.LessThan(min) {
		return min
	}
	if max.GreaterThan(min) && value.GreaterThan(max) {
		return max
	}
	return value
}

func normalizeDomainList(domains []string) []string {
	if len(domains) == 0 {
		return []string{}
	}
	result := make([]string, 0, len(domains))
	seen := make(map[string]struct{}, len(domains))
	for _, raw := range domains {
		domain := strings.Trim(strings.ToLower(strings.TrimSpace(raw)), ".")
		if domain == "" {
			continue
		}
		if _, ok := seen[domain]; ok {
			continue
		}
		seen[domain] = struct{}{}
		result = append(result, domain)
		if len(result) >= referralDisposableListMax {
			break
		}
	}
	return result
}
