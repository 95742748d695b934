package repository

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReferralListFilter 查询推荐记录列表的过滤条件
type ReferralListFilter struct {
	Page           int
	PageSize       int
	ReferrerUserID string
	Status         string
	PayoutStatus   string
	Keyword        string
	CreatedFrom    *time.Time
	CreatedTo      *time.Time
}

// ReferralLookup 按被推荐人身份查找推荐记录
type ReferralLookup struct {
	ReferralCodeID uint
	ReferredUserID string
	ReferredEmail  string
}

// VelocityFilter 按 IP 或设备指纹统计时间窗口内的转化
type VelocityFilter struct {
	ConversionIP      string
	DeviceFingerprint string
	Since             time.Time
}

// ReferralAggregateRow 按状态分组的推荐汇总
type ReferralAggregateRow struct {
	Status           string          `gorm:"column:status"`
	PayoutStatus     string          `gorm:"column:payout_status"`
	Total            int64           `gorm:"column:total"`
	CommissionAmount decimal.Decimal `gorm:"column:commission_amount"`
}
