package service

import (
	"context"
	"crypto/rand"
	"math/big"
	"strings"
	"unicode"

	"github.com/referral-ledger/internal/constants"
	"github.com/referral-ledger/internal/logger"
	"github.com/referral-ledger/internal/models"
	"github.com/referral-ledger/internal/repository"
)

// ReferralCodeService 推荐码服务
type ReferralCodeService struct {
	repo     repository.ReferralCodeRepository
	settings ReferralSettingProvider
	suffixFn func(length int) (string, error)
}

// NewReferralCodeService 创建推荐码服务
func NewReferralCodeService(repo repository.ReferralCodeRepository, settings ReferralSettingProvider) *ReferralCodeService {
	return &ReferralCodeService{
		repo:     repo,
		settings: settings,
		suffixFn: generateReferralSuffix,
	}
}

// GetOrCreateReferralCode 获取用户推荐码，不存在时生成；同一用户多次调用返回同一个码
func (s *ReferralCodeService) GetOrCreateReferralCode(ctx context.Context, userID, email string) (*models.ReferralCode, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrUserIDRequired
	}
	normalizedEmail, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	setting := DefaultReferralSetting()
	if s.settings != nil {
		if loaded, loadErr := s.settings.GetReferralSetting(ctx); loadErr == nil {
			setting = loaded
		} else {
			logger.Ctx(ctx).Warnw("referral_code_setting_load_failed", "error", loadErr)
		}
	}

	prefix := buildReferralCodePrefix(normalizedEmail, setting.Code.PrefixLength)
	for attempt := 1; attempt <= setting.Code.MaxAttempts; attempt++ {
		suffix, err := s.suffixFn(setting.Code.SuffixLength)
		if err != nil {
			return nil, err
		}
		row := &models.ReferralCode{
			UserID: userID,
			Email:  normalizedEmail,
			Code:   prefix + constants.ReferralCodeSeparator + suffix,
		}
		err = s.repo.Create(ctx, row)
		if err == nil {
			logger.Ctx(ctx).Infow("referral_code_created",
				"user_id", userID,
				"code", row.Code,
				"attempt", attempt,
			)
			return row, nil
		}
		if !repository.IsUniqueViolation(err) {
			return nil, err
		}
		// 并发创建时以先写入者为准
		winner, getErr := s.repo.GetByUserID(ctx, userID)
		if getErr != nil {
			return nil, getErr
		}
		if winner != nil {
			return winner, nil
		}
		logger.Ctx(ctx).Debugw("referral_code_collision_retry",
			"user_id", userID,
			"code", row.Code,
			"attempt", attempt,
		)
	}
	logger.Ctx(ctx).Warnw("referral_code_attempts_exhausted",
		"user_id", userID,
		"max_attempts", setting.Code.MaxAttempts,
	)
	return nil, ErrReferralCodeConflict
}

// GetReferralCode 获取用户推荐码，不存在时返回 nil
func (s *ReferralCodeService) GetReferralCode(ctx context.Context, userID string) (*models.ReferralCode, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrUserIDRequired
	}
	return s.repo.GetByUserID(ctx, userID)
}

// ResolveCode 按推荐码查找，不存在返回 ErrReferralCodeNotFound
func (s *ReferralCodeService) ResolveCode(ctx context.Context, code string) (*models.ReferralCode, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrReferralCodeNotFound
	}
	row, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, ErrReferralCodeNotFound
	}
	return row, nil
}

// buildReferralCodePrefix 取邮箱本地部分的字母数字，大写后截断
func buildReferralCodePrefix(email string, length int) string {
	local, _, _ := splitEmail(email)
	var builder strings.Builder
	for _, r := range strings.ToUpper(local) {
		if r > unicode.MaxASCII {
			continue
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			builder.WriteRune(r)
		}
		if builder.Len() >= length {
			break
		}
	}
	if builder.Len() == 0 {
		return constants.ReferralCodeFallbackPrefix
	}
	return builder.String()
}

func generateReferralSuffix(length int) (string, error) {
	alphabet := constants.ReferralCodeAlphabet
	var builder strings.Builder
	builder.Grow(length)
	max := big.NewInt(int64(len(alphabet)))
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		builder.WriteByte(alphabet[n.Int64()])
	}
	return builder.String(), nil
}
