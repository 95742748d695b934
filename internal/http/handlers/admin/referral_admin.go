package admin

import (
	"strconv"
	"strings"
	"time"

	handlershared "github.com/referral-ledger/internal/http/handlers/shared"
	"github.com/referral-ledger/internal/http/response"
	"github.com/referral-ledger/internal/repository"

	"github.com/gin-gonic/gin"
)

type markPayoutsPaidPayload struct {
	IDs       []uint `json:"ids"`
	Reference string `json:"reference"`
}

// ListReferrals 推荐台账列表
func (h *Handler) ListReferrals(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = handlershared.NormalizePagination(page, pageSize)

	filter := repository.ReferralListFilter{
		Page:           page,
		PageSize:       pageSize,
		ReferrerUserID: strings.TrimSpace(c.Query("referrer")),
		Status:         strings.TrimSpace(c.Query("status")),
		PayoutStatus:   strings.TrimSpace(c.Query("payout_status")),
		Keyword:        strings.TrimSpace(c.Query("q")),
	}
	from, ok := parseQueryTime(c, "created_from")
	if !ok {
		return
	}
	to, ok := parseQueryTime(c, "created_to")
	if !ok {
		return
	}
	filter.CreatedFrom = from
	filter.CreatedTo = to

	referrals, total, err := h.ReferralService.ListReferrals(c.Request.Context(), filter)
	if err != nil {
		respondError(c, response.CodeInternal, "error.referral_fetch_failed", err)
		return
	}
	handlershared.RespondPage(c, "referrals", referrals, response.NewPagination(page, pageSize, total))
}

// GetReferrerStats 推荐人统计
func (h *Handler) GetReferrerStats(c *gin.Context) {
	userID := strings.TrimSpace(c.Param("userId"))
	stats, err := h.ReferralStatsService.GetReferrerStats(c.Request.Context(), userID)
	if err != nil {
		respondMapped(c, err, "error.referral_fetch_failed")
		return
	}
	handlershared.RespondSuccess(c, "message.ok", gin.H{"stats": stats})
}

// MarkPayoutsPaid 将可结算佣金标记为已支付
func (h *Handler) MarkPayoutsPaid(c *gin.Context) {
	var req markPayoutsPaidPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	result, err := h.PayoutService.MarkPaid(c.Request.Context(), req.IDs, req.Reference)
	if err != nil {
		respondMapped(c, err, "error.payout_update_failed")
		return
	}
	requestLog(c).Infow("admin_payouts_marked_paid",
		"operator_id", c.GetString("user_id"),
		"requested", len(req.IDs),
		"updated", result.Updated,
		"reference", result.Reference,
	)
	handlershared.RespondSuccess(c, "message.payouts_marked_paid", gin.H{
		"updated":   result.Updated,
		"reference": result.Reference,
	})
}

func parseQueryTime(c *gin.Context, key string) (*time.Time, bool) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, true
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return nil, false
	}
	value := parsed.UTC()
	return &value, true
}
