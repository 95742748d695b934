package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/referral-ledger/internal/models"

	"gorm.io/gorm"
)

// ReferralCodeRepository 推荐码数据访问接口
type ReferralCodeRepository interface {
	GetByID(ctx context.Context, id uint) (*models.ReferralCode, error)
	GetByUserID(ctx context.Context, userID string) (*models.ReferralCode, error)
	GetByCode(ctx context.Context, code string) (*models.ReferralCode, error)
	Create(ctx context.Context, code *models.ReferralCode) error
}

// GormReferralCodeRepository GORM 实现
type GormReferralCodeRepository struct {
	db *gorm.DB
}

// NewReferralCodeRepository 创建推荐码仓库
func NewReferralCodeRepository(db *gorm.DB) *GormReferralCodeRepository {
	return &GormReferralCodeRepository{db: db}
}

// GetByID 按 ID 获取推荐码
func (r *GormReferralCodeRepository) GetByID(ctx context.Context, id uint) (*models.ReferralCode, error) {
	if id == 0 {
		return nil, nil
	}
	var code models.ReferralCode
	if err := r.db.WithContext(ctx).First(&code, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &code, nil
}

// GetByUserID 按用户获取推荐码
func (r *GormReferralCodeRepository) GetByUserID(ctx context.Context, userID string) (*models.ReferralCode, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, nil
	}
	var code models.ReferralCode
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&code).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &code, nil
}

// GetByCode 按推荐码获取（不区分大小写）
func (r *GormReferralCodeRepository) GetByCode(ctx context.Context, code string) (*models.ReferralCode, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if normalized == "" {
		return nil, nil
	}
	var row models.ReferralCode
	if err := r.db.WithContext(ctx).Where("code = ?", normalized).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// Create 创建推荐码
func (r *GormReferralCodeRepository) Create(ctx context.Context, code *models.ReferralCode) error {
	return r.db.WithContext(ctx).Create(code).Error
}
