package constants

// 推荐记录状态常量
const (
	ReferralStatusPending   = "pending"
	ReferralStatusConverted = "converted"
)

// 佣金结算状态常量
const (
	PayoutStatusNone           = ""
	PayoutStatusPendingConfirm = "pending_confirm"
	PayoutStatusAvailable      = "available"
	PayoutStatusPaid           = "paid"
)

// 风控处置动作
const (
	FraudActionAllow  = "allow"
	FraudActionReview = "review"
	FraudActionBlock  = "block"
)

// 风控信号类型
const (
	FraudSignalSelfReferral    = "self_referral"
	FraudSignalIPVelocity      = "ip_velocity"
	FraudSignalDeviceVelocity  = "device_velocity"
	FraudSignalDisposableEmail = "disposable_email"
	FraudSignalEmailSimilarity = "email_similarity"
	FraudSignalEngineDegraded  = "engine_degraded"
)

// 风控信号严重程度
const (
	FraudSeverityLow    = "low"
	FraudSeverityMedium = "medium"
	FraudSeverityHigh   = "high"
)

// 推荐等级
const (
	ReferralTierBronze = "bronze"
	ReferralTierSilver = "silver"
	ReferralTierGold   = "gold"
)

// 推荐码参数
const (
	ReferralCodeAlphabet       = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	ReferralCodeFallbackPrefix = "REF"
	ReferralCodeSeparator      = "-"
	ReferredKeyUserIDPrefix    = "uid:"
)

// 设置键常量
const (
	SettingKeyReferralConfig = "referral_config"
)

// 队列与任务常量
const (
	QueueDefault              = "default"
	QueueCritical             = "critical"
	TaskReferralConverted     = "referral:converted"
	TaskReferralFraudReview   = "referral:fraud_review"
	ReferralSettingCacheKey   = "setting:referral_config"
	ReferralVelocityKeyPrefix = "velocity"
)

// 鉴权上下文键
const (
	ContextKeyUserID    = "user_id"
	ContextKeyUserEmail = "user_email"
	ContextKeyRequestID = "request_id"
)
