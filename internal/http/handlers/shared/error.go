package shared

import (
	"errors"

	"github.com/referral-ledger/internal/http/response"
	"github.com/referral-ledger/internal/i18n"
	"github.com/referral-ledger/internal/logger"
	"github.com/referral-ledger/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// MappedHandlerError 业务错误到接口错误响应的映射
type MappedHandlerError struct {
	Target error
	Code   int
	Key    string
}

// ReferralErrorRules 推荐业务错误映射，先匹配具体错误再匹配分类
var ReferralErrorRules = []MappedHandlerError{
	{Target: service.ErrUserIDRequired, Code: response.CodeBadRequest, Key: "error.user_id_required"},
	{Target: service.ErrInvalidEmail, Code: response.CodeBadRequest, Key: "error.email_invalid"},
	{Target: service.ErrInvalidPurchaseValue, Code: response.CodeBadRequest, Key: "error.purchase_value_invalid"},
	{Target: service.ErrBelowMinimumPurchase, Code: response.CodeBadRequest, Key: "error.purchase_below_minimum"},
	{Target: service.ErrReferralTargetRequired, Code: response.CodeBadRequest, Key: "error.referral_target_required"},
	{Target: service.ErrPayoutIDsRequired, Code: response.CodeBadRequest, Key: "error.payout_ids_required"},
	{Target: service.ErrReferralConfigInvalid, Code: response.CodeBadRequest, Key: "error.referral_config_invalid"},
	{Target: service.ErrReferralCodeNotFound, Code: response.CodeNotFound, Key: "error.referral_code_not_found"},
	{Target: service.ErrReferralNotFound, Code: response.CodeNotFound, Key: "error.referral_not_found"},
	{Target: service.ErrReferralAlreadyConverted, Code: response.CodeConflict, Key: "error.referral_already_converted"},
	{Target: service.ErrOrderAlreadyConverted, Code: response.CodeConflict, Key: "error.order_already_converted"},
	{Target: service.ErrReferralAlreadyAttached, Code: response.CodeConflict, Key: "error.referral_already_attached"},
	{Target: service.ErrReferralCodeConflict, Code: response.CodeConflict, Key: "error.referral_code_conflict"},
	{Target: service.ErrConversionBlocked, Code: response.CodeForbidden, Key: "error.conversion_blocked"},
	{Target: service.ErrValidation, Code: response.CodeBadRequest, Key: "error.bad_request"},
	{Target: service.ErrNotFound, Code: response.CodeNotFound, Key: "error.not_found"},
	{Target: service.ErrConflict, Code: response.CodeConflict, Key: "error.referral_already_converted"},
	{Target: service.ErrForbidden, Code: response.CodeForbidden, Key: "error.forbidden"},
}

// RequestLog 提供携带 request_id 的日志实例。
func RequestLog(c *gin.Context) *zap.SugaredLogger {
	if c == nil {
		return logger.S()
	}
	if requestID, ok := c.Get("request_id"); ok {
		if id, ok := requestID.(string); ok && id != "" {
			return logger.SW("request_id", id)
		}
	}
	return logger.S()
}

// RespondError 返回国际化错误响应，并在有原始错误时记录日志。
func RespondError(c *gin.Context, code int, key string, err error) {
	locale := i18n.ResolveLocale(c)
	msg := i18n.T(locale, key)
	appErr := response.WrapError(code, msg, err)
	if err != nil {
		RequestLog(c).Errorw("handler_error",
			"code", appErr.Code,
			"message", appErr.Message,
			"error", err,
		)
	}
	response.Error(c, appErr.Code, appErr.Message)
}

// RespondWithMappedError 按映射表返回错误，未命中时记录原始错误并返回兜底响应。
func RespondWithMappedError(c *gin.Context, err error, rules []MappedHandlerError, fallbackCode int, fallbackKey string) {
	for _, rule := range rules {
		if errors.Is(err, rule.Target) {
			RequestLog(c).Debugw("handler_business_error",
				"code", rule.Code,
				"key", rule.Key,
				"error", err,
			)
			RespondError(c, rule.Code, rule.Key, nil)
			return
		}
	}
	RespondError(c, fallbackCode, fallbackKey, err)
}

// RespondSuccess 返回国际化成功响应。
func RespondSuccess(c *gin.Context, key string, payload gin.H) {
	response.Success(c, i18n.T(i18n.ResolveLocale(c), key), payload)
}

// RespondPage 返回国际化分页响应。
func RespondPage(c *gin.Context, listKey string, items interface{}, pagination response.Pagination) {
	response.SuccessWithPage(c, i18n.T(i18n.ResolveLocale(c), "message.ok"), listKey, items, pagination)
}
