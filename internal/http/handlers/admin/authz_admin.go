package admin

import (
	"strings"

	handlershared "github.com/referral-ledger/internal/http/handlers/shared"
	"github.com/referral-ledger/internal/http/response"

	"github.com/gin-gonic/gin"
)

type authzSetUserRolesPayload struct {
	Roles []string `json:"roles"`
}

// ListAuthzRoles 获取角色及其策略
func (h *Handler) ListAuthzRoles(c *gin.Context) {
	roles, err := h.AuthzService.ListRoles()
	if err != nil {
		respondError(c, response.CodeInternal, "error.internal", err)
		return
	}
	items := make([]gin.H, 0, len(roles))
	for _, role := range roles {
		policies, policyErr := h.AuthzService.GetRolePolicies(role)
		if policyErr != nil {
			respondError(c, response.CodeInternal, "error.internal", policyErr)
			return
		}
		items = append(items, gin.H{"role": role, "policies": policies})
	}
	handlershared.RespondSuccess(c, "message.ok", gin.H{"roles": items})
}

// GetUserRoles 查询用户角色
func (h *Handler) GetUserRoles(c *gin.Context) {
	userID := strings.TrimSpace(c.Param("userId"))
	roles, err := h.AuthzService.GetUserRoles(userID)
	if err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	handlershared.RespondSuccess(c, "message.ok", gin.H{"userId": userID, "roles": roles})
}

// SetUserRoles 覆盖设置用户角色
func (h *Handler) SetUserRoles(c *gin.Context) {
	userID := strings.TrimSpace(c.Param("userId"))
	var req authzSetUserRolesPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	if err := h.AuthzService.SetUserRoles(userID, req.Roles); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	roles, err := h.AuthzService.GetUserRoles(userID)
	if err != nil {
		respondError(c, response.CodeInternal, "error.internal", err)
		return
	}
	requestLog(c).Infow("admin_user_roles_updated",
		"operator_id", c.GetString("user_id"),
		"user_id", userID,
		"roles", roles,
	)
	handlershared.RespondSuccess(c, "message.roles_updated", gin.H{"userId": userID, "roles": roles})
}
