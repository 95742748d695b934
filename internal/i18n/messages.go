package i18n

var messages = map[string]map[string]string{
	LocaleENUS: {
		"message.ok":                        "success",
		"message.referral_code_ready":       "Referral code ready",
		"message.referral_attached":         "Referral attached",
		"message.referral_converted":        "Referral converted successfully",
		"message.payouts_marked_paid":       "Payouts marked as paid",
		"message.setting_updated":           "Settings updated",
		"message.roles_updated":             "Roles updated",
		"error.setting_save_failed":         "Failed to save settings",
		"error.bad_request":                 "Invalid request",
		"error.unauthorized":                "Authentication required",
		"error.token_invalid":               "Invalid or expired token",
		"error.forbidden":                   "You are not allowed to perform this action",
		"error.not_found":                   "Resource not found",
		"error.too_many_requests":           "Too many requests, please try again later",
		"error.internal":                    "Internal server error",
		"error.user_id_required":            "userId is required",
		"error.email_invalid":               "A valid email is required",
		"error.purchase_value_invalid":      "purchaseValue must be greater than 0",
		"error.purchase_below_minimum":      "Purchase value does not meet minimum for referral commission",
		"error.referral_target_required":    "Referral code or referred email is required",
		"error.referral_code_not_found":     "Referral code not found",
		"error.referral_code_conflict":      "Could not allocate a referral code, please retry",
		"error.referral_not_found":          "Referral not found or already converted",
		"error.referral_already_converted":  "Referral has already been converted",
		"error.order_already_converted":     "This order has already been used for a referral conversion",
		"error.referral_already_attached":   "This user is already linked to another referral",
		"error.conversion_blocked":          "Referral could not be processed due to suspicious activity",
		"error.referral_config_invalid":     "Referral settings are invalid",
		"error.payout_ids_required":         "At least one payout id is required",
		"error.setting_fetch_failed":        "Failed to load settings",
		"error.referral_fetch_failed":       "Failed to load referrals",
		"error.referral_conversion_failed":  "Failed to convert referral",
		"error.referral_code_create_failed": "Failed to create referral code",
		"error.payout_update_failed":        "Failed to update payouts",
	},
	LocaleZHCN: {
		"message.ok":                        "成功",
		"message.referral_code_ready":       "推荐码已就绪",
		"message.referral_attached":         "推荐关系已绑定",
		"message.referral_converted":        "推荐转化成功",
		"message.payouts_marked_paid":       "佣金已标记为已结算",
		"message.setting_updated":           "设置已更新",
		"message.roles_updated":             "角色已更新",
		"error.setting_save_failed":         "保存设置失败",
		"error.bad_request":                 "请求参数错误",
		"error.unauthorized":                "请先登录",
		"error.token_invalid":               "登录凭证无效或已过期",
		"error.forbidden":                   "无权执行该操作",
		"error.not_found":                   "资源不存在",
		"error.too_many_requests":           "请求过于频繁，请稍后再试",
		"error.internal":                    "服务器内部错误",
		"error.user_id_required":            "缺少用户 ID",
		"error.email_invalid":               "邮箱格式不正确",
		"error.purchase_value_invalid":      "消费金额必须大于 0",
		"error.purchase_below_minimum":      "消费金额未达到计佣门槛",
		"error.referral_target_required":    "推荐码或被推荐人邮箱必须提供其一",
		"error.referral_code_not_found":     "推荐码不存在",
		"error.referral_code_conflict":      "推荐码分配失败，请重试",
		"error.referral_not_found":          "推荐记录不存在或已转化",
		"error.referral_already_converted":  "该推荐已完成转化",
		"error.order_already_converted":     "该订单已用于推荐转化",
		"error.referral_already_attached":   "该用户已绑定其他推荐关系",
		"error.conversion_blocked":          "由于存在可疑行为，该推荐无法处理",
		"error.referral_config_invalid":     "推荐配置不合法",
		"error.payout_ids_required":         "请至少选择一条佣金记录",
		"error.setting_fetch_failed":        "获取设置失败",
		"error.referral_fetch_failed":       "获取推荐记录失败",
		"error.referral_conversion_failed":  "推荐转化失败",
		"error.referral_code_create_failed": "创建推荐码失败",
		"error.payout_update_failed":        "更新佣金结算状态失败",
	},
}
