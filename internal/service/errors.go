package service

import (
	"errors"
	"fmt"
)

// 错误分类，具体错误通过 %w 归属到其中一类
var (
	ErrValidation = errors.New("validation error")
	ErrForbidden  = errors.New("forbidden")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
)

// 推荐码
var (
	ErrUserIDRequired       = fmt.Errorf("%w: user id is required", ErrValidation)
	ErrInvalidEmail         = fmt.Errorf("%w: email is invalid", ErrValidation)
	ErrReferralCodeNotFound = fmt.Errorf("%w: referral code not found", ErrNotFound)
	ErrReferralCodeConflict = fmt.Errorf("%w: referral code collision retries exhausted", ErrConflict)
)

// 推荐关联与转化
var (
	ErrInvalidPurchaseValue     = fmt.Errorf("%w: purchase value must be positive", ErrValidation)
	ErrBelowMinimumPurchase     = fmt.Errorf("%w: purchase value does not meet minimum", ErrValidation)
	ErrReferralTargetRequired   = fmt.Errorf("%w: referral code or referred email is required", ErrValidation)
	ErrReferralNotFound         = fmt.Errorf("%w: referral not found or already converted", ErrNotFound)
	ErrReferralAlreadyConverted = fmt.Errorf("%w: Referral has already been converted", ErrConflict)
	ErrOrderAlreadyConverted    = fmt.Errorf("%w: order has already been used for a conversion", ErrConflict)
	ErrReferralAlreadyAttached  = fmt.Errorf("%w: referred user already belongs to another referral", ErrConflict)
	ErrConversionBlocked        = fmt.Errorf("%w: could not be processed due to suspicious activity", ErrForbidden)
)

// 结算与配置
var (
	ErrPayoutIDsRequired     = fmt.Errorf("%w: payout ids are required", ErrValidation)
	ErrReferralConfigInvalid = fmt.Errorf("%w: referral config is invalid", ErrValidation)
)
