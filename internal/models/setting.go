package models

import "time"

// Setting 系统设置表（键值对存储）
type Setting struct {
	Key       string    `gorm:"primarykey;type:varchar(64)" json:"key"`
	ValueJSON JSON      `gorm:"type:json" json:"value"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName 指定表名
func (Setting) TableName() string {
	return "settings"
}
