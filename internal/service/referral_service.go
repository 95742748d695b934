package service

import (
	"context"
	"strings"

	"github.com/referral-ledger/internal/constants"
	"github.com/referral-ledger/internal/logger"
	"github.com/referral-ledger/internal/models"
	"github.com/referral-ledger/internal/repository"
)

// AttachReferralInput 注册时绑定推荐关系
type AttachReferralInput struct {
	ReferralCode   string
	ReferredUserID string
	ReferredEmail  string
}

// ReferralOverview 用户推荐概览
type ReferralOverview struct {
	Code      *models.ReferralCode `json:"code"`
	Referrals []models.Referral    `json:"referrals"`
	Stats     *ReferralStats       `json:"stats"`
}

// ReferralService 推荐关系服务
type ReferralService struct {
	codeRepo     repository.ReferralCodeRepository
	referralRepo repository.ReferralRepository
	codes        *ReferralCodeService
	stats        *ReferralStatsService
}

// NewReferralService 创建推荐关系服务
func NewReferralService(
	codeRepo repository.ReferralCodeRepository,
	referralRepo repository.ReferralRepository,
	codes *ReferralCodeService,
	stats *ReferralStatsService,
) *ReferralService {
	return &ReferralService{
		codeRepo:     codeRepo,
		referralRepo: referralRepo,
		codes:        codes,
		stats:        stats,
	}
}

// AttachReferral 建立待转化的推荐记录；同一被推荐人只能归属一个推荐码
func (s *ReferralService) AttachReferral(ctx context.Context, input AttachReferralInput) (*models.Referral, error) {
	referredUserID := strings.TrimSpace(input.ReferredUserID)
	if referredUserID == "" {
		return nil, ErrUserIDRequired
	}
	email := ""
	if strings.TrimSpace(input.ReferredEmail) != "" {
		normalized, err := normalizeEmail(input.ReferredEmail)
		if err != nil {
			return nil, err
		}
		email = normalized
	}

	code, err := s.codes.ResolveCode(ctx, input.ReferralCode)
	if err != nil {
		return nil, err
	}

	referredKey := buildReferredKey(referredUserID)
	existing, err := s.referralRepo.GetByReferredKey(ctx, referredKey)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return resolveExistingAttachment(existing, code)
	}
	if email != "" {
		// 邮箱已被其他用户的推荐记录占用
		claimed, err := s.referralRepo.FindByReferred(ctx, repository.ReferralLookup{ReferredEmail: email})
		if err != nil {
			return nil, err
		}
		if len(claimed) > 0 {
			return nil, ErrReferralAlreadyAttached
		}
	}

	referral := &models.Referral{
		ReferralCodeID: code.ID,
		Code:           code.Code,
		ReferrerUserID: code.UserID,
		ReferredKey:    referredKey,
		ReferredEmail:  email,
		ReferredUserID: referredUserID,
		Status:         constants.ReferralStatusPending,
	}
	if err := s.referralRepo.Create(ctx, referral); err != nil {
		if !repository.IsUniqueViolation(err) {
			return nil, err
		}
		winner, getErr := s.referralRepo.GetByReferredKey(ctx, referredKey)
		if getErr != nil {
			return nil, getErr
		}
		if winner == nil {
			return nil, err
		}
		return resolveExistingAttachment(winner, code)
	}
	logger.Ctx(ctx).Infow("referral_attached",
		"referral_id", referral.ID,
		"referral_code", code.Code,
		"referrer_user_id", code.UserID,
		"referred_user_id", referredUserID,
	)
	return referral, nil
}

// ListReferrerReferrals 分页查询推荐人的推荐记录，最新在前
func (s *ReferralService) ListReferrerReferrals(ctx context.Context, referrerUserID string, page, pageSize int) ([]models.Referral, int64, error) {
	referrerUserID = strings.TrimSpace(referrerUserID)
	if referrerUserID == "" {
		return nil, 0, ErrUserIDRequired
	}
	return s.referralRepo.List(ctx, repository.ReferralListFilter{
		Page:           page,
		PageSize:       pageSize,
		ReferrerUserID: referrerUserID,
	})
}

// ListReferrals 后台查询推荐记录
func (s *ReferralService) ListReferrals(ctx context.Context, filter repository.ReferralListFilter) ([]models.Referral, int64, error) {
	return s.referralRepo.List(ctx, filter)
}

// GetOverview 返回推荐码、推荐记录与统计；提供邮箱时按需创建推荐码
func (s *ReferralService) GetOverview(ctx context.Context, userID, email string, page, pageSize int) (*ReferralOverview, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrUserIDRequired
	}
	var code *models.ReferralCode
	var err error
	if strings.TrimSpace(email) != "" {
		code, err = s.codes.GetOrCreateReferralCode(ctx, userID, email)
	} else {
		code, err = s.codes.GetReferralCode(ctx, userID)
	}
	if err != nil {
		return nil, err
	}
	if code == nil {
		return nil, ErrReferralCodeNotFound
	}

	referrals, _, err := s.ListReferrerReferrals(ctx, userID, page, pageSize)
	if err != nil {
		return nil, err
	}
	stats, err := s.stats.GetReferrerStats(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &ReferralOverview{Code: code, Referrals: referrals, Stats: stats}, nil
}

func resolveExistingAttachment(existing *models.Referral, code *models.ReferralCode) (*models.Referral, error) {
	if existing.ReferralCodeID == code.ID {
		return existing, nil
	}
	return nil, ErrReferralAlreadyAttached
}

// buildReferredKey 被推荐人唯一键始终取用户 ID，换邮箱不能重复绑定
func buildReferredKey(userID string) string {
	return constants.ReferredKeyUserIDPrefix + userID
}
