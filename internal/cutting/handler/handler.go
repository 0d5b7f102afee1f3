package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/XM-LEES/cutrix/internal/cutting/export"
	"github.com/XM-LEES/cutrix/internal/cutting/lifecycle"
	"github.com/XM-LEES/cutrix/internal/cutting/policy"
	"github.com/XM-LEES/cutrix/internal/cutting/service"
	"github.com/XM-LEES/cutrix/internal/cutting/sse"
	"github.com/XM-LEES/cutrix/internal/middleware"
)

// Handlers 处理器集合
type Handlers struct {
	Auth  *AuthHandler
	Order *OrderHandler
	Plan  *PlanHandler
	User  *UserHandler
	SSE   *SSEHandler
}

// Options 处理器配置
type Options struct {
	JWTSecret string
	Logger    *zap.Logger
}

// NewHandlers 创建处理器集合
func NewHandlers(svc *service.Services, hub *sse.Hub, opts Options) *Handlers {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		Auth:  NewAuthHandler(svc.User, opts.JWTSecret),
		Order: NewOrderHandler(svc.Order),
		Plan:  NewPlanHandler(svc.Plan),
		User:  NewUserHandler(svc.User),
		SSE:   NewSSEHandler(hub, logger),
	}
}

// Response 通用响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ListResponse 列表响应结构
type ListResponse struct {
	Items      interface{} `json:"items"`
	Pagination *Pagination `json:"pagination"`
}

// Pagination 分页信息
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

func newList(items interface{}, page, pageSize int, total int64) ListResponse {
	pages := 0
	if pageSize > 0 {
		pages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}
	return ListResponse{
		Items:      items,
		Pagination: &Pagination{Page: page, PageSize: pageSize, Total: int(total), TotalPages: pages},
	}
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(200, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Created 创建成功响应
func Created(c *gin.Context, data interface{}) {
	c.JSON(201, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Error 错误响应，code/100 为 HTTP 状态码
func Error(c *gin.Context, code int, message string) {
	statusCode := code / 100
	if statusCode < 100 || statusCode > 599 {
		statusCode = 500
	}
	c.JSON(statusCode, Response{
		Code:    code,
		Message: message,
	})
}

// errorWithData 错误响应附带数据（如校验问题列表）
func errorWithData(c *gin.Context, code int, message string, data interface{}) {
	c.JSON(code/100, Response{Code: code, Message: message, Data: data})
}

// BadRequest 参数错误响应
func BadRequest(c *gin.Context, message string) {
	Error(c, 40000, message)
}

// Unauthorized 未授权响应
func Unauthorized(c *gin.Context, message string) {
	Error(c, 40100, message)
}

// Forbidden 禁止访问响应
func Forbidden(c *gin.Context, message string) {
	Error(c, 40300, message)
}

// NotFound 资源不存在响应
func NotFound(c *gin.Context, message string) {
	Error(c, 40400, message)
}

// InternalError 服务器错误响应
func InternalError(c *gin.Context, message string) {
	Error(c, 50000, message)
}

// Fail 按错误类型映射响应
func Fail(c *gin.Context, err error) {
	var (
		pe *service.PermissionDeniedError
		te *lifecycle.TransitionError
		ve *service.ValidationError
	)
	switch {
	case errors.As(err, &pe):
		Forbidden(c, pe.Error())
	case errors.As(err, &te):
		errorWithData(c, 40900, te.Error(), gin.H{"action": te.Action, "status": te.From})
	case errors.Is(err, service.ErrLocked):
		Error(c, 40901, err.Error())
	case errors.Is(err, service.ErrConflict):
		Error(c, 40902, err.Error())
	case errors.As(err, &ve):
		errorWithData(c, 42200, ve.Error(), gin.H{"problems": ve.Problems})
	case errors.Is(err, export.ErrBadItems):
		Error(c, 42201, err.Error())
	case errors.Is(err, service.ErrNotFound):
		NotFound(c, "资源不存在")
	case errors.Is(err, service.ErrBadCredentials):
		Unauthorized(c, err.Error())
	default:
		_ = c.Error(err)
		InternalError(c, err.Error())
	}
}

// GetUserID 从上下文获取用户ID
func GetUserID(c *gin.Context) string {
	return c.GetString(middleware.KeyUserID)
}

// GetActor 当前操作用户
func GetActor(c *gin.Context) service.Actor {
	role, _ := policy.ParseRole(c.GetString(middleware.KeyRole))
	return service.Actor{
		ID:   c.GetString(middleware.KeyUserID),
		Name: c.GetString(middleware.KeyUserName),
		Role: role,
	}
}

// GetPagination 从请求获取分页参数
func GetPagination(c *gin.Context) (page, pageSize int) {
	page = 1
	pageSize = 20

	if p := c.Query("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = v
		}
	}

	if ps := c.Query("page_size"); ps != "" {
		if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 200 {
			pageSize = v
		}
	}

	return page, pageSize
}

func queryBool(c *gin.Context, key string) *bool {
	v := c.Query(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil
	}
	return &b
}
