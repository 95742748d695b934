package public

import "github.com/referral-ledger/internal/provider"

// Handler 推荐接口处理器入口
// 说明：调用方身份来自外部身份服务签发的令牌。
type Handler struct {
	*provider.Container
}

// New 创建推荐接口处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}
