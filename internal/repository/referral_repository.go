package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/referral-ledger/internal/constants"
	"github.com/referral-ledger/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReferralRepository 推荐记录（佣金台账）数据访问接口
type ReferralRepository interface {
	Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) ReferralRepository

	Create(ctx context.Context, referral *models.Referral) error
	GetByID(ctx context.Context, id uint) (*models.Referral, error)
	GetByReferredKey(ctx context.Context, key string) (*models.Referral, error)
	FindByReferred(ctx context.Context, lookup ReferralLookup) ([]models.Referral, error)
	List(ctx context.Context, filter ReferralListFilter) ([]models.Referral, int64, error)
	AggregateByReferrer(ctx context.Context, referrerUserID string) ([]ReferralAggregateRow, error)
	CountConversionsSince(ctx context.Context, filter VelocityFilter) (int64, error)

	UpdateIfStatus(ctx context.Context, id uint, expectedStatus string, patch ReferralPatch) (int64, error)
	MarkPayoutsAvailable(ctx context.Context, before, now time.Time) (int64, error)
	ListAvailablePayoutsForUpdate(ctx context.Context, ids []uint) ([]models.Referral, error)
	UpdatePayouts(ctx context.Context, ids []uint, expectedPayoutStatus string, patch ReferralPatch) (int64, error)
}

const pendingFirstOrder = "CASE WHEN status = '" + constants.ReferralStatusPending + "' THEN 0 ELSE 1 END, id asc"

// GormReferralRepository GORM 推荐记录仓储
type GormReferralRepository struct {
	db *gorm.DB
}

// NewReferralRepository 创建推荐记录仓储
func NewReferralRepository(db *gorm.DB) *GormReferralRepository {
	return &GormReferralRepository{db: db}
}

// WithTx 绑定事务
func (r *GormReferralRepository) WithTx(tx *gorm.DB) ReferralRepository {
	if tx == nil {
		return r
	}
	return &GormReferralRepository{db: tx}
}

// Transaction 执行事务
func (r *GormReferralRepository) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(fn)
}

// Create 创建推荐记录
func (r *GormReferralRepository) Create(ctx context.Context, referral *models.Referral) error {
	return r.db.WithContext(ctx).Create(referral).Error
}

// GetByID 按 ID 获取推荐记录
func (r *GormReferralRepository) GetByID(ctx context.Context, id uint) (*models.Referral, error) {
	if id == 0 {
		return nil, nil
	}
	var referral models.Referral
	if err := r.db.WithContext(ctx).First(&referral, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &referral, nil
}

// GetByReferredKey 按被推荐人唯一键获取
func (r *GormReferralRepository) GetByReferredKey(ctx context.Context, key string) (*models.Referral, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, nil
	}
	var referral models.Referral
	if err := r.db.WithContext(ctx).Where("referred_key = ?", key).First(&referral).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &referral, nil
}

// FindByReferred 按被推荐人身份查询，待转化记录排在前面
func (r *GormReferralRepository) FindByReferred(ctx context.Context, lookup ReferralLookup) ([]models.Referral, error) {
	userID := strings.TrimSpace(lookup.ReferredUserID)
	email := strings.TrimSpace(lookup.ReferredEmail)
	if userID == "" && email == "" {
		return []models.Referral{}, nil
	}

	query := r.db.WithContext(ctx).Model(&models.Referral{})
	if lookup.ReferralCodeID != 0 {
		query = query.Where("referral_code_id = ?", lookup.ReferralCodeID)
	}
	switch {
	case userID != "" && email != "":
		query = query.Where("(referred_user_id = ? OR referred_email = ?)", userID, email)
	case userID != "":
		query = query.Where("referred_user_id = ?", userID)
	default:
		query = query.Where("referred_email = ?", email)
	}

	var rows []models.Referral
	if err := query.
		Order(pendingFirstOrder).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// List 查询推荐记录列表
func (r *GormReferralRepository) List(ctx context.Context, filter ReferralListFilter) ([]models.Referral, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Referral{})
	if referrer := strings.TrimSpace(filter.ReferrerUserID); referrer != "" {
		query = query.Where("referrer_user_id = ?", referrer)
	}
	if status := strings.TrimSpace(filter.Status); status != "" {
		query = query.Where("status = ?", status)
	}
	if payoutStatus := strings.TrimSpace(filter.PayoutStatus); payoutStatus != "" {
		query = query.Where("payout_status = ?", payoutStatus)
	}
	if keyword := strings.TrimSpace(filter.Keyword); keyword != "" {
		condition, argCount := buildKeywordLikeCondition(r.db, []string{"code", "referred_email", "referred_user_id", "order_id"})
		query = query.Where(condition, repeatLikeArgs(escapeLikeKeyword(keyword), argCount)...)
	}
	if filter.CreatedFrom != nil {
		query = query.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		query = query.Where("created_at <= ?", *filter.CreatedTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = applyPagination(query, filter.Page, filter.PageSize)

	var rows []models.Referral
	if err := query.Order("id desc").Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// AggregateByReferrer 按状态汇总推荐人的记录数与佣金
func (r *GormReferralRepository) AggregateByReferrer(ctx context.Context, referrerUserID string) ([]ReferralAggregateRow, error) {
	referrerUserID = strings.TrimSpace(referrerUserID)
	if referrerUserID == "" {
		return []ReferralAggregateRow{}, nil
	}
	var rows []ReferralAggregateRow
	if err := r.db.WithContext(ctx).Model(&models.Referral{}).
		Select("status, COALESCE(payout_status, '') AS payout_status, COUNT(*) AS total, COALESCE(SUM(commission_amount), 0) AS commission_amount").
		Where("referrer_user_id = ?", referrerUserID).
		Group("status, payout_status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// CountConversionsSince 统计时间窗口内同 IP 或同设备的转化数
func (r *GormReferralRepository) CountConversionsSince(ctx context.Context, filter VelocityFilter) (int64, error) {
	ip := strings.TrimSpace(filter.ConversionIP)
	fingerprint := strings.TrimSpace(filter.DeviceFingerprint)
	if ip == "" && fingerprint == "" {
		return 0, nil
	}
	query := r.db.WithContext(ctx).Model(&models.Referral{}).
		Where("status = ? AND converted_at >= ?", constants.ReferralStatusConverted, filter.Since)
	if ip != "" {
		query = query.Where("conversion_ip = ?", ip)
	}
	if fingerprint != "" {
		query = query.Where("device_fingerprint = ?", fingerprint)
	}
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

// UpdateIfStatus 仅当当前状态等于 expectedStatus 时写入，返回受影响行数
func (r *GormReferralRepository) UpdateIfStatus(ctx context.Context, id uint, expectedStatus string, patch ReferralPatch) (int64, error) {
	if id == 0 || patch.Empty() {
		return 0, nil
	}
	result := r.db.WithContext(ctx).Model(&models.Referral{}).
		Where("id = ? AND status = ?", id, expectedStatus).
		Updates(patch.columns())
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// MarkPayoutsAvailable 将到期的待确认佣金转为可结算
func (r *GormReferralRepository) MarkPayoutsAvailable(ctx context.Context, before, now time.Time) (int64, error) {
	patch := ReferralPatch{
		PayoutStatus: Set(constants.PayoutStatusAvailable),
		AvailableAt:  Set(&now),
		UpdatedAt:    Set(now),
	}
	result := r.db.WithContext(ctx).Model(&models.Referral{}).
		Where("status = ? AND payout_status = ? AND confirm_at IS NOT NULL AND confirm_at <= ?",
			constants.ReferralStatusConverted, constants.PayoutStatusPendingConfirm, before).
		Updates(patch.columns())
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// ListAvailablePayoutsForUpdate 查询并锁定可结算的记录
func (r *GormReferralRepository) ListAvailablePayoutsForUpdate(ctx context.Context, ids []uint) ([]models.Referral, error) {
	if len(ids) == 0 {
		return []models.Referral{}, nil
	}
	var rows []models.Referral
	if err := r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ? AND status = ? AND payout_status = ?",
			ids, constants.ReferralStatusConverted, constants.PayoutStatusAvailable).
		Order("id asc").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// UpdatePayouts 仅更新结算状态等于 expectedPayoutStatus 的记录
func (r *GormReferralRepository) UpdatePayouts(ctx context.Context, ids []uint, expectedPayoutStatus string, patch ReferralPatch) (int64, error) {
	if len(ids) == 0 || patch.Empty() {
		return 0, nil
	}
	result := r.db.WithContext(ctx).Model(&models.Referral{}).
		Where("id IN ? AND status = ? AND payout_status = ?",
			ids, constants.ReferralStatusConverted, expectedPayoutStatus).
		Updates(patch.columns())
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
