package admin

import (
	handlershared "github.com/referral-ledger/internal/http/handlers/shared"
	"github.com/referral-ledger/internal/http/response"

	"github.com/gin-gonic/gin"
)

// GetReferralSetting 获取推荐返佣配置
func (h *Handler) GetReferralSetting(c *gin.Context) {
	setting, err := h.SettingService.GetReferralSetting(c.Request.Context())
	if err != nil {
		respondError(c, response.CodeInternal, "error.setting_fetch_failed", err)
		return
	}
	handlershared.RespondSuccess(c, "message.ok", gin.H{"setting": setting})
}

// UpdateReferralSetting 更新推荐返佣配置
func (h *Handler) UpdateReferralSetting(c *gin.Context) {
	current, err := h.SettingService.GetReferralSetting(c.Request.Context())
	if err != nil {
		respondError(c, response.CodeInternal, "error.setting_fetch_failed", err)
		return
	}
	// 在当前配置上合并，未提交的字段保持不变
	req := current
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}

	setting, err := h.SettingService.UpdateReferralSetting(c.Request.Context(), req)
	if err != nil {
		respondMapped(c, err, "error.setting_save_failed")
		return
	}
	handlershared.RespondSuccess(c, "message.setting_updated", gin.H{"setting": setting})
}

