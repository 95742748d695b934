package models

import "time"

// ReferralCode 用户推荐码，每个用户唯一且创建后不再变更
type ReferralCode struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	UserID    string    `gorm:"type:varchar(128);not null;uniqueIndex" json:"userId"`
	Email     string    `gorm:"type:varchar(255);not null" json:"email"`
	Code      string    `gorm:"type:varchar(32);not null;uniqueIndex" json:"code"`
	CreatedAt time.Time `gorm:"index" json:"createdAt"`
}

// TableName 指定表名
func (ReferralCode) TableName() string {
	return "referral_codes"
}
