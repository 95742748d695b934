package models

import "time"

// Referral 推荐记录，同时作为佣金台账条目，只追加不删除
type Referral struct {
	ID                uint        `gorm:"primarykey" json:"id"`
	ReferralCodeID    uint        `gorm:"not null;index" json:"referralCodeId"`
	Code              string      `gorm:"type:varchar(32);not null;index" json:"referralCode"`
	ReferrerUserID    string      `gorm:"type:varchar(128);not null;index" json:"referrerUserId"`
	ReferredKey       string      `gorm:"type:varchar(255);not null;uniqueIndex" json:"-"`
	ReferredEmail     string      `gorm:"type:varchar(255);index" json:"referredEmail"`
	ReferredUserID    string      `gorm:"type:varchar(128);index" json:"referredUserId"`
	Status            string      `gorm:"type:varchar(20);not null;index" json:"status"`
	PurchaseValue     Money       `gorm:"type:decimal(20,2);not null;default:0" json:"purchaseValue"`
	CommissionRate    Money       `gorm:"type:decimal(6,2);not null;default:0" json:"commissionRate"`
	CommissionAmount  Money       `gorm:"type:decimal(20,2);not null;default:0" json:"commissionAmount"`
	OrderID           *string     `gorm:"type:varchar(128);uniqueIndex" json:"orderId,omitempty"`
	FraudAction       string      `gorm:"type:varchar(20)" json:"-"`
	FraudScore        int         `gorm:"not null;default:0" json:"-"`
	FraudSignals      StringArray `gorm:"type:json" json:"-"`
	ConversionIP      string      `gorm:"type:varchar(64);index" json:"-"`
	DeviceFingerprint string      `gorm:"type:varchar(64);index" json:"-"`
	PayoutStatus      string      `gorm:"type:varchar(32);index" json:"payoutStatus,omitempty"`
	PayoutReference   string      `gorm:"type:varchar(64)" json:"payoutReference,omitempty"`
	ConvertedAt       *time.Time  `gorm:"index" json:"convertedAt,omitempty"`
	ConfirmAt         *time.Time  `gorm:"index" json:"confirmAt,omitempty"`
	AvailableAt       *time.Time  `json:"availableAt,omitempty"`
	PaidAt            *time.Time  `json:"paidAt,omitempty"`
	CreatedAt         time.Time   `gorm:"index" json:"createdAt"`
	UpdatedAt         time.Time   `json:"updatedAt"`
}

// TableName 指定表名
func (Referral) TableName() string {
	return "referrals"
}
