package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	fieldSuccess   = "success"
	fieldMessage   = "message"
	fieldRequestID = "request_id"
)

// Pagination 分页信息
type Pagination struct {
	Page      int   `json:"page"`
	PageSize  int   `json:"pageSize"`
	Total     int64 `json:"total"`
	TotalPage int64 `json:"totalPage"`
}

// NewPagination 计算总页数
func NewPagination(page, pageSize int, total int64) Pagination {
	totalPage := int64(0)
	if pageSize > 0 {
		totalPage = (total + int64(pageSize) - 1) / int64(pageSize)
	}
	return Pagination{Page: page, PageSize: pageSize, Total: total, TotalPage: totalPage}
}

// Success 成功响应，payload 字段平铺到顶层
func Success(c *gin.Context, msg string, payload gin.H) {
	JSON(c, http.StatusOK, true, msg, payload)
}

// SuccessWithPage 分页成功响应
func SuccessWithPage(c *gin.Context, msg, listKey string, items interface{}, pagination Pagination) {
	JSON(c, http.StatusOK, true, msg, gin.H{
		listKey:      items,
		"pagination": pagination,
	})
}

// Error 错误响应，使用真实的 HTTP 状态码
func Error(c *gin.Context, statusCode int, msg string) {
	JSON(c, statusCode, false, msg, nil)
}

// AbortWithError 终止中间件链并返回错误
func AbortWithError(c *gin.Context, statusCode int, msg string) {
	c.AbortWithStatusJSON(statusCode, envelope(c, false, msg, nil))
}

// JSON 输出 {success, message, ...payload}
func JSON(c *gin.Context, statusCode int, success bool, msg string, payload gin.H) {
	c.JSON(statusCode, envelope(c, success, msg, payload))
}

func envelope(c *gin.Context, success bool, msg string, payload gin.H) gin.H {
	body := gin.H{}
	for key, value := range payload {
		body[key] = value
	}
	body[fieldSuccess] = success
	body[fieldMessage] = msg
	if requestID := requestIDFrom(c); requestID != "" {
		if _, ok := body[fieldRequestID]; !ok {
			body[fieldRequestID] = requestID
		}
	}
	return body
}

func requestIDFrom(c *gin.Context) string {
	if c == nil {
		return ""
	}
	if value, ok := c.Get(fieldRequestID); ok {
		if id, ok := value.(string); ok {
			return id
		}
	}
	return ""
}
