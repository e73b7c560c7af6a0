// internal/api/response.go
package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Corphon/NovelForgeMCP/internal/services"
)

// APIResponse 统一响应格式
type APIResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     *APIError   `json:"error,omitempty"`
	Message   string      `json:"message,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	RequestID string      `json:"request_id,omitempty"` // 用于调试和追踪
}

// APIError 标准错误格式
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// 错误代码
const (
	CodeValidation   = "validation_error"
	CodeNotFound     = "not_found"
	CodeBusy         = "generation_busy"
	CodeConfig       = "config_error"
	CodeUpstream     = "upstream_error"
	CodeStale        = "stale_response"
	CodeNeedsConfirm = "needs_confirmation"
	CodeInternal     = "internal_error"
)

func requestID(c *gin.Context) string {
	if id := c.GetHeader("X-Request-ID"); id != "" {
		return id
	}
	return uuid.NewString()
}

// respondSuccess 成功响应
func respondSuccess(c *gin.Context, data interface{}, message ...string) {
	resp := &APIResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now(),
		RequestID: requestID(c),
	}
	if len(message) > 0 {
		resp.Message = message[0]
	}
	c.JSON(http.StatusOK, resp)
}

// respondCreated 创建成功响应
func respondCreated(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, &APIResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now(),
		RequestID: requestID(c),
	})
}

// respondError 将服务层错误映射为HTTP状态与错误代码
// 所有错误在这里收口为单条用户可见信息，不向上抛。
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	code := CodeInternal

	switch {
	case errors.Is(err, services.ErrProjectNotFound):
		status, code = http.StatusNotFound, CodeNotFound
	case errors.Is(err, services.ErrGenerationBusy):
		status, code = http.StatusConflict, CodeBusy
	case errors.Is(err, services.ErrCredentialMissing):
		status, code = http.StatusBadRequest, CodeConfig
	case errors.Is(err, services.ErrNoSourceMaterial),
		errors.Is(err, services.ErrNoChapters):
		status, code = http.StatusBadRequest, CodeValidation
	case errors.Is(err, services.ErrNoStructuredData):
		status, code = http.StatusBadGateway, CodeUpstream
	case errors.Is(err, services.ErrEpilogueUnconfirmed):
		status, code = http.StatusConflict, CodeNeedsConfirm
	case errors.Is(err, services.ErrStaleResponse):
		status, code = http.StatusConflict, CodeStale
	}

	c.JSON(status, &APIResponse{
		Success:   false,
		Error:     &APIError{Code: code, Message: err.Error()},
		Timestamp: time.Now(),
		RequestID: requestID(c),
	})
}

// respondValidation 请求参数校验失败
func respondValidation(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, &APIResponse{
		Success:   false,
		Error:     &APIError{Code: CodeValidation, Message: message},
		Timestamp: time.Now(),
		RequestID: requestID(c),
	})
}
