package public

import (
	"strconv"
	"strings"

	handlershared "github.com/referral-ledger/internal/http/handlers/shared"
	"github.com/referral-ledger/internal/http/response"
	"github.com/referral-ledger/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

const (
	referralCodeObject    = "/referral/code"
	referralConvertObject = "/referral/convert"
)

// CreateReferralCodeRequest 创建推荐码请求
type CreateReferralCodeRequest struct {
	UserID string `json:"userId"`
	Email  string `json:"email" binding:"omitempty,email"`
}

// SignupReferralRequest 注册绑定推荐码请求
type SignupReferralRequest struct {
	ReferralCode string `json:"referralCode" binding:"required"`
	UserID       string `json:"userId"`
	Email        string `json:"email" binding:"omitempty,email"`
}

// ConvertReferralRequest 推荐转化请求
type ConvertReferralRequest struct {
	ReferralCode   string          `json:"referralCode"`
	ReferredEmail  string          `json:"referredEmail" binding:"omitempty,email"`
	ReferredUserID string          `json:"referredUserId"`
	PurchaseValue  decimal.Decimal `json:"purchaseValue"`
	OrderID        string          `json:"orderId"`
}

// GetReferralCode 获取推荐概览（推荐码、推荐记录、统计）
func (h *Handler) GetReferralCode(c *gin.Context) {
	callerID, ok := handlershared.GetCallerID(c)
	if !ok {
		return
	}
	userID := strings.TrimSpace(c.Query("userId"))
	if userID == "" {
		userID = callerID
	}
	if !h.authorizeCaller(c, callerID, userID, referralCodeObject, "GET") {
		return
	}
	// 只允许为本人按需创建推荐码
	email := ""
	if userID == callerID {
		email = callerEmailOr(c, c.Query("email"))
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = handlershared.NormalizePagination(page, pageSize)

	overview, err := h.ReferralService.GetOverview(c.Request.Context(), userID, email, page, pageSize)
	if err != nil {
		handlershared.RespondWithMappedError(c, err, handlershared.ReferralErrorRules, response.CodeInternal, "error.referral_fetch_failed")
		return
	}
	handlershared.RespondSuccess(c, "message.ok", gin.H{
		"code":      overview.Code,
		"referrals": overview.Referrals,
		"stats":     overview.Stats,
	})
}

// CreateReferralCode 幂等创建推荐码，只能为本人创建
func (h *Handler) CreateReferralCode(c *gin.Context) {
	callerID, ok := handlershared.GetCallerID(c)
	if !ok {
		return
	}
	var req CreateReferralCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handlershared.RespondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		userID = callerID
	}
	if userID != callerID {
		handlershared.RespondError(c, response.CodeForbidden, "error.forbidden", nil)
		return
	}
	email := callerEmailOr(c, req.Email)

	code, err := h.ReferralCodeService.GetOrCreateReferralCode(c.Request.Context(), userID, email)
	if err != nil {
		handlershared.RespondWithMappedError(c, err, handlershared.ReferralErrorRules, response.CodeInternal, "error.referral_code_create_failed")
		return
	}
	handlershared.RespondSuccess(c, "message.referral_code_ready", gin.H{"code": code})
}

// SignupReferral 注册时绑定推荐码
func (h *Handler) SignupReferral(c *gin.Context) {
	callerID, ok := handlershared.GetCallerID(c)
	if !ok {
		return
	}
	var req SignupReferralRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handlershared.RespondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		userID = callerID
	}
	if userID != callerID {
		handlershared.RespondError(c, response.CodeForbidden, "error.forbidden", nil)
		return
	}
	email := callerEmailOr(c, req.Email)

	referral, err := h.ReferralService.AttachReferral(c.Request.Context(), service.AttachReferralInput{
		ReferralCode:   req.ReferralCode,
		ReferredUserID: userID,
		ReferredEmail:  email,
	})
	if err != nil {
		handlershared.RespondWithMappedError(c, err, handlershared.ReferralErrorRules, response.CodeInternal, "error.referral_fetch_failed")
		return
	}
	handlershared.RespondSuccess(c, "message.referral_attached", gin.H{"referral": referral})
}

// ConvertReferral 完成购买后的推荐转化：先风控，再计佣
func (h *Handler) ConvertReferral(c *gin.Context) {
	callerID, ok := handlershared.GetCallerID(c)
	if !ok {
		return
	}
	var req ConvertReferralRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handlershared.RespondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	referredUserID := strings.TrimSpace(req.ReferredUserID)
	if referredUserID == "" {
		referredUserID = callerID
	}
	if !h.authorizeCaller(c, callerID, referredUserID, referralConvertObject, "POST") {
		return
	}
	if !req.PurchaseValue.IsPositive() {
		handlershared.RespondWithMappedError(c, service.ErrInvalidPurchaseValue, handlershared.ReferralErrorRules, response.CodeBadRequest, "error.bad_request")
		return
	}

	ctx := c.Request.Context()
	ip := c.ClientIP()
	userAgent := c.GetHeader("User-Agent")
	fraud := h.FraudService.Evaluate(ctx, service.FraudCheckInput{
		ReferralCode:   req.ReferralCode,
		ReferredEmail:  req.ReferredEmail,
		ReferredUserID: referredUserID,
		PurchaseValue:  req.PurchaseValue,
		IP:             ip,
		UserAgent:      userAgent,
	})

	result, err := h.ConversionService.ConvertReferral(ctx, service.ConvertReferralInput{
		ReferralCode:   req.ReferralCode,
		ReferredEmail:  req.ReferredEmail,
		ReferredUserID: referredUserID,
		PurchaseValue:  req.PurchaseValue,
		OrderID:        req.OrderID,
		IP:             ip,
		UserAgent:      userAgent,
		Fraud:          &fraud,
	})
	if err != nil {
		handlershared.RespondWithMappedError(c, err, handlershared.ReferralErrorRules, response.CodeInternal, "error.referral_conversion_failed")
		return
	}
	handlershared.RespondSuccess(c, "message.referral_converted", gin.H{
		"referralId":       result.ReferralID,
		"commissionAmount": result.CommissionAmount,
	})
}
