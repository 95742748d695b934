package service

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/referral-ledger/internal/constants"
	"github.com/referral-ledger/internal/logger"
	"github.com/referral-ledger/internal/models"
	"github.com/referral-ledger/internal/repository"

	"github.com/shopspring/decimal"
)

var errFraudSubjectNotFound = errors.New("fraud subject not found")

// VelocityStore 滑动窗口计数存储
type VelocityStore interface {
	Count(ctx context.Context, key string, window time.Duration, now time.Time) (int64, error)
	Record(ctx context.Context, key string, window time.Duration, now time.Time) (int64, error)
}

// FraudCheckInput 风控检查输入
type FraudCheckInput struct {
	ReferralCode   string
	ReferredEmail  string
	ReferredUserID string
	PurchaseValue  decimal.Decimal
	IP             string
	UserAgent      string
}

// FraudSignal 单个风险信号
type FraudSignal struct {
	Type        string `json:"type"`
	Severity    string `json:"severity"`
	Weight      int    `json:"weight"`
	Description string `json:"description"`
}

// FraudCheckResult 风控结论
type FraudCheckResult struct {
	RiskScore int           `json:"riskScore"`
	Action    string        `json:"action"`
	Signals   []FraudSignal `json:"signals"`
	Degraded  bool          `json:"degraded"`
}

// SignalTypes 返回信号类型列表
func (r FraudCheckResult) SignalTypes() []string {
	types := make([]string, 0, len(r.Signals))
	for _, signal := range r.Signals {
		types = append(types, signal.Type)
	}
	return types
}

// HasSignal 是否包含指定类型的信号
func (r FraudCheckResult) HasSignal(signalType string) bool {
	for _, signal := range r.Signals {
		if signal.Type == signalType {
			return true
		}
	}
	return false
}

type fraudEvaluation struct {
	input         FraudCheckInput
	setting       FraudSetting
	referrer      *models.ReferralCode
	referredEmail string
	fingerprint   string
	now           time.Time
}

type fraudRule struct {
	name string
	eval func(ctx context.Context, e *fraudEvaluation) (*FraudSignal, error)
}

// FraudService 推荐转化风控
type FraudService struct {
	codeRepo     repository.ReferralCodeRepository
	referralRepo repository.ReferralRepository
	settings     ReferralSettingProvider
	velocity     VelocityStore
	now          func() time.Time
	rules        []fraudRule
}

// NewFraudService 创建风控服务，velocity 为空时只使用数据库计数
func NewFraudService(
	codeRepo repository.ReferralCodeRepository,
	referralRepo repository.ReferralRepository,
	settings ReferralSettingProvider,
	velocity VelocityStore,
) *FraudService {
	s := &FraudService{
		codeRepo:     codeRepo,
		referralRepo: referralRepo,
		settings:     settings,
		velocity:     velocity,
		now:          time.Now,
	}
	s.rules = []fraudRule{
		{name: constants.FraudSignalSelfReferral, eval: s.checkSelfReferral},
		{name: constants.FraudSignalIPVelocity, eval: s.checkIPVelocity},
		{name: constants.FraudSignalDeviceVelocity, eval: s.checkDeviceVelocity},
		{name: constants.FraudSignalDisposableEmail, eval: s.checkDisposableEmail},
		{name: constants.FraudSignalEmailSimilarity, eval: s.checkEmailSimilarity},
	}
	return s
}

// Evaluate 计算风险分与处置动作；内部异常不会向外抛出，降级为人工复核
func (s *FraudService) Evaluate(ctx context.Context, input FraudCheckInput) (result FraudCheckResult) {
	defer func() {
		if r := recover(); r != nil {
			logger.Ctx(ctx).Errorw("referral_fraud_engine_panic",
				"panic", r,
				"stack", string(debug.Stack()),
			)
			result = failOpenFraudResult()
		}
	}()

	now := s.now().UTC()
	degraded := false
	setting := DefaultReferralSetting()
	if s.settings != nil {
		loaded, err := s.settings.GetReferralSetting(ctx)
		switch {
		case err == nil:
			setting = loaded
		default:
			degraded = true
			logger.Ctx(ctx).Warnw("referral_fraud_setting_load_failed", "error", err)
			if loaded.Fraud.BlockThreshold > 0 {
				setting = loaded
			}
		}
	}

	eval := &fraudEvaluation{
		input:       input,
		setting:     setting.Fraud,
		fingerprint: DeviceFingerprint(input.IP, input.UserAgent),
		now:         now,
	}
	referrer, referredEmail, err := s.resolveSubject(ctx, input)
	if err != nil {
		degraded = true
		logger.Ctx(ctx).Warnw("referral_fraud_subject_unresolved",
			"referral_code", input.ReferralCode,
			"error", err,
		)
	}
	eval.referrer = referrer
	eval.referredEmail = referredEmail

	signals := make([]FraudSignal, 0, len(s.rules))
	for _, rule := range s.rules {
		signal, err := runFraudRule(ctx, rule, eval)
		if err != nil {
			degraded = true
			logger.Ctx(ctx).Warnw("referral_fraud_rule_failed",
				"rule", rule.name,
				"error", err,
			)
			continue
		}
		if signal != nil {
			signals = append(signals, *signal)
		}
	}

	score := 0
	selfReferral := false
	for _, signal := range signals {
		score += signal.Weight
		if signal.Type == constants.FraudSignalSelfReferral {
			selfReferral = true
		}
	}
	if degraded {
		signals = append(signals, FraudSignal{
			Type:        constants.FraudSignalEngineDegraded,
			Severity:    constants.FraudSeverityLow,
			Description: "one or more fraud checks could not be completed",
		})
	}

	result = FraudCheckResult{
		RiskScore: score,
		Action:    decideFraudAction(score, setting.Fraud, selfReferral, degraded),
		Signals:   signals,
		Degraded:  degraded,
	}
	logger.Ctx(ctx).Infow("referral_fraud_evaluated",
		"referral_code", input.ReferralCode,
		"referred_user_id", input.ReferredUserID,
		"score", result.RiskScore,
		"action", result.Action,
		"signals", result.Signals,
		"degraded", degraded,
	)
	return result
}

// RecordConversion 转化成功后计入 IP 与设备的速率窗口
func (s *FraudService) RecordConversion(ctx context.Context, ip, fingerprint string) {
	if s == nil || s.velocity == nil {
		return
	}
	setting := DefaultReferralSetting()
	if s.settings != nil {
		if loaded, err := s.settings.GetReferralSetting(ctx); err == nil {
			setting = loaded
		}
	}
	window := velocityWindow(setting.Fraud)
	now := s.now().UTC()
	for _, key := range []string{velocityKey("ip", ip), velocityKey("device", fingerprint)} {
		if key == "" {
			continue
		}
		if _, err := s.velocity.Record(ctx, key, window, now); err != nil {
			logger.Ctx(ctx).Warnw("referral_velocity_record_failed", "key", key, "error", err)
		}
	}
}

// resolveSubject 找到推荐人与被推荐人邮箱
func (s *FraudService) resolveSubject(ctx context.Context, input FraudCheckInput) (*models.ReferralCode, string, error) {
	referredEmail := ""
	if strings.TrimSpace(input.ReferredEmail) != "" {
		if normalized, err := normalizeEmail(input.ReferredEmail); err == nil {
			referredEmail = normalized
		}
	}

	if code := strings.TrimSpace(input.ReferralCode); code != "" {
		referrer, err := s.codeRepo.GetByCode(ctx, code)
		if err != nil {
			return nil, referredEmail, err
		}
		if referrer == nil {
			return nil, referredEmail, errFraudSubjectNotFound
		}
		if referredEmail == "" && strings.TrimSpace(input.ReferredUserID) != "" {
			rows, err := s.referralRepo.FindByReferred(ctx, repository.ReferralLookup{
				ReferralCodeID: referrer.ID,
				ReferredUserID: input.ReferredUserID,
			})
			if err != nil {
				return referrer, referredEmail, err
			}
			if len(rows) > 0 {
				referredEmail = rows[0].ReferredEmail
			}
		}
		return referrer, referredEmail, nil
	}

	if referredEmail == "" {
		return nil, "", errFraudSubjectNotFound
	}
	rows, err := s.referralRepo.FindByReferred(ctx, repository.ReferralLookup{ReferredEmail: referredEmail})
	if err != nil {
		return nil, referredEmail, err
	}
	if len(rows) == 0 {
		return nil, referredEmail, errFraudSubjectNotFound
	}
	referrer, err := s.codeRepo.GetByID(ctx, rows[0].ReferralCodeID)
	if err != nil {
		return nil, referredEmail, err
	}
	if referrer == nil {
		return nil, referredEmail, errFraudSubjectNotFound
	}
	return referrer, referredEmail, nil
}

func (s *FraudService) checkSelfReferral(_ context.Context, e *fraudEvaluation) (*FraudSignal, error) {
	if e.referrer == nil {
		return nil, nil
	}
	referredUserID := strings.TrimSpace(e.input.ReferredUserID)
	sameUser := referredUserID != "" && referredUserID == e.referrer.UserID
	sameInbox := e.referredEmail != "" && canonicalEmail(e.referredEmail) == canonicalEmail(e.referrer.Email)
	if !sameUser && !sameInbox {
		return nil, nil
	}
	return &FraudSignal{
		Type:        constants.FraudSignalSelfReferral,
		Severity:    constants.FraudSeverityHigh,
		Weight:      e.setting.SelfReferralWeight,
		Description: "referred user matches the referrer",
	}, nil
}

func (s *FraudService) checkIPVelocity(ctx context.Context, e *fraudEvaluation) (*FraudSignal, error) {
	ip := strings.TrimSpace(e.input.IP)
	if ip == "" {
		return nil, nil
	}
	count, err := s.velocityCount(ctx, velocityKey("ip", ip), repository.VelocityFilter{ConversionIP: ip}, e)
	if err != nil {
		return nil, err
	}
	if count < int64(e.setting.VelocityMaxPerIP) {
		return nil, nil
	}
	return &FraudSignal{
		Type:        constants.FraudSignalIPVelocity,
		Severity:    constants.FraudSeverityHigh,
		Weight:      e.setting.IPVelocityWeight,
		Description: fmt.Sprintf("%d conversions from this IP in the last %d minutes", count, e.setting.VelocityWindowMinutes),
	}, nil
}

func (s *FraudService) checkDeviceVelocity(ctx context.Context, e *fraudEvaluation) (*FraudSignal, error) {
	if e.fingerprint == "" {
		return nil, nil
	}
	count, err := s.velocityCount(ctx, velocityKey("device", e.fingerprint), repository.VelocityFilter{DeviceFingerprint: e.fingerprint}, e)
	if err != nil {
		return nil, err
	}
	if count < int64(e.setting.VelocityMaxPerIP) {
		return nil, nil
	}
	return &FraudSignal{
		Type:        constants.FraudSignalDeviceVelocity,
		Severity:    constants.FraudSeverityHigh,
		Weight:      e.setting.DeviceVelocityWeight,
		Description: fmt.Sprintf("%d conversions from this device in the last %d minutes", count, e.setting.VelocityWindowMinutes),
	}, nil
}

func (s *FraudService) checkDisposableEmail(_ context.Context, e *fraudEvaluation) (*FraudSignal, error) {
	_, domain, ok := splitEmail(e.referredEmail)
	if !ok || !isDisposableDomain(domain, e.setting.DisposableDomains) {
		return nil, nil
	}
	return &FraudSignal{
		Type:        constants.FraudSignalDisposableEmail,
		Severity:    constants.FraudSeverityMedium,
		Weight:      e.setting.DisposableEmailWeight,
		Description: "referred email uses a disposable domain",
	}, nil
}

func (s *FraudService) checkEmailSimilarity(_ context.Context, e *fraudEvaluation) (*FraudSignal, error) {
	if e.referrer == nil || e.referredEmail == "" {
		return nil, nil
	}
	referrerCanonical := canonicalEmail(e.referrer.Email)
	referredCanonical := canonicalEmail(e.referredEmail)
	if referrerCanonical == "" || referredCanonical == "" || referrerCanonical == referredCanonical {
		return nil, nil
	}
	referrerLocal, referrerDomain, _ := splitEmail(referrerCanonical)
	referredLocal, referredDomain, _ := splitEmail(referredCanonical)

	if len(referrerLocal) >= 3 && len(referredLocal) >= 3 &&
		levenshtein(referrerLocal, referredLocal) <= e.setting.SimilarityMaxDistance {
		return &FraudSignal{
			Type:        constants.FraudSignalEmailSimilarity,
			Severity:    constants.FraudSeverityMedium,
			Weight:      e.setting.SimilarEmailWeight,
			Description: "referred email is nearly identical to the referrer email",
		}, nil
	}
	if referrerDomain == referredDomain && !isPublicEmailDomain(referrerDomain) {
		return &FraudSignal{
			Type:        constants.FraudSignalEmailSimilarity,
			Severity:    constants.FraudSeverityLow,
			Weight:      e.setting.SameDomainWeight,
			Description: "referred email shares a private domain with the referrer",
		}, nil
	}
	return nil, nil
}

// velocityCount 取 Redis 窗口计数与数据库计数的较大值，两者都失败才报错
func (s *FraudService) velocityCount(ctx context.Context, key string, filter repository.VelocityFilter, e *fraudEvaluation) (int64, error) {
	window := velocityWindow(e.setting)
	filter.Since = e.now.Add(-window)

	var cacheCount int64
	var cacheErr error
	if s.velocity != nil {
		cacheCount, cacheErr = s.velocity.Count(ctx, key, window, e.now)
		if cacheErr != nil {
			logger.Ctx(ctx).Warnw("referral_velocity_count_failed", "key", key, "error", cacheErr)
		}
	}
	dbCount, dbErr := s.referralRepo.CountConversionsSince(ctx, filter)
	if dbErr != nil {
		if s.velocity == nil || cacheErr != nil {
			return 0, dbErr
		}
		return cacheCount, nil
	}
	return max(cacheCount, dbCount), nil
}

func runFraudRule(ctx context.Context, rule fraudRule, e *fraudEvaluation) (signal *FraudSignal, err error) {
	defer func() {
		if r := recover(); r != nil {
			signal = nil
			err = fmt.Errorf("fraud rule %s panicked: %v", rule.name, r)
		}
	}()
	return rule.eval(ctx, e)
}

// decideFraudAction 自推荐一律拦截；检查不完整时不会放行
func decideFraudAction(score int, setting FraudSetting, selfReferral, degraded bool) string {
	if selfReferral {
		return constants.FraudActionBlock
	}
	action := constants.FraudActionAllow
	switch {
	case score >= setting.BlockThreshold:
		action = constants.FraudActionBlock
	case score >= setting.ReviewThreshold:
		action = constants.FraudActionReview
	}
	if degraded && action == constants.FraudActionAllow {
		action = constants.FraudActionReview
	}
	return action
}

func failOpenFraudResult() FraudCheckResult {
	return FraudCheckResult{
		Action: constants.FraudActionReview,
		Signals: []FraudSignal{{
			Type:        constants.FraudSignalEngineDegraded,
			Severity:    constants.FraudSeverityLow,
			Description: "fraud engine failed, routed to manual review",
		}},
		Degraded: true,
	}
}

func velocityWindow(setting FraudSetting) time.Duration {
	minutes := setting.VelocityWindowMinutes
	if minutes <= 0 {
		minutes = 60
	}
	return time.Duration(minutes) * time.Minute
}

func velocityKey(kind, value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	return constants.ReferralVelocityKeyPrefix + ":" + kind + ":" + value
}
