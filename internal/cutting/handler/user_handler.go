package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/XM-LEES/cutrix/internal/cutting/entity"
	"github.com/XM-LEES/cutrix/internal/cutting/policy"
	"github.com/XM-LEES/cutrix/internal/cutting/service"
	"github.com/XM-LEES/cutrix/internal/middleware"
)

// ============================================================
// Auth Handler
// ============================================================

type AuthHandler struct {
	users    *service.UserService
	secret   string
	tokenTTL time.Duration
}

func NewAuthHandler(users *service.UserService, secret string) *AuthHandler {
	return &AuthHandler{users: users, secret: secret, tokenTTL: 12 * time.Hour}
}

// WithTokenTTL 设置 token 有效期
func (h *AuthHandler) WithTokenTTL(ttl time.Duration) *AuthHandler {
	if ttl > 0 {
		h.tokenTTL = ttl
	}
	return h
}

type loginRequest struct {
	Name     string `json:"name" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login 用户名密码登录
// POST /api/v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	user, err := h.users.VerifyPassword(c.Request.Context(), req.Name, req.Password)
	if err != nil {
		Fail(c, err)
		return
	}
	token, err := middleware.IssueToken(h.secret, user.ID, user.Name, user.Role, h.tokenTTL)
	if err != nil {
		InternalError(c, "签发token失败: "+err.Error())
		return
	}
	Success(c, gin.H{
		"access_token": token,
		"expires_in":   int(h.tokenTTL.Seconds()),
		"user":         user,
	})
}

// Permissions 当前用户的角色与权限
// GET /api/v1/auth/permissions
func (h *AuthHandler) Permissions(c *gin.Context) {
	actor := GetActor(c)
	Success(c, gin.H{
		"user_id":     actor.ID,
		"role":        actor.Role,
		"permissions": policy.PermissionsOf(actor.Role).Tokens(),
	})
}

// CheckPermission 检查单个权限
// GET /api/v1/auth/permissions/:token
func (h *AuthHandler) CheckPermission(c *gin.Context) {
	token := c.Param("token")
	if _, ok := policy.ParsePermission(token); !ok {
		BadRequest(c, "未知权限: "+token)
		return
	}
	actor := GetActor(c)
	Success(c, gin.H{
		"permission": token,
		"allowed":    policy.AllowedToken(string(actor.Role), token),
	})
}

// ============================================================
// User Handler
// ============================================================

type UserHandler struct {
	svc *service.UserService
}

func NewUserHandler(svc *service.UserService) *UserHandler {
	return &UserHandler{svc: svc}
}

// List 用户列表
// GET /api/v1/users?keyword=&role=&active=&group=
func (h *UserHandler) List(c *gin.Context) {
	users, err := h.svc.List(c.Request.Context(), GetActor(c), entity.UserFilter{
		Keyword: c.Query("keyword"),
		Role:    c.Query("role"),
		Active:  queryBool(c, "active"),
		Group:   c.Query("group"),
	})
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, gin.H{"items": users})
}

// Get 用户详情
// GET /api/v1/users/:id
func (h *UserHandler) Get(c *gin.Context) {
	user, err := h.svc.Get(c.Request.Context(), GetActor(c), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, user)
}

// Create 创建用户
// POST /api/v1/users
func (h *UserHandler) Create(c *gin.Context) {
	var req service.CreateUserInput
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	user, err := h.svc.Create(c.Request.Context(), GetActor(c), req)
	if err != nil {
		Fail(c, err)
		return
	}
	Created(c, user)
}

// Update 修改资料
// PUT /api/v1/users/:id
func (h *UserHandler) Update(c *gin.Context) {
	var req service.UpdateProfileInput
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	user, err := h.svc.UpdateProfile(c.Request.Context(), GetActor(c), c.Param("id"), req)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, user)
}

type roleRequest struct {
	Role string `json:"role" binding:"required"`
}

// AssignRole 修改角色
// PUT /api/v1/users/:id/role
func (h *UserHandler) AssignRole(c *gin.Context) {
	var req roleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	user, err := h.svc.AssignRole(c.Request.Context(), GetActor(c), c.Param("id"), req.Role)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, user)
}

type activeRequest struct {
	IsActive *bool `json:"is_active" binding:"required"`
}

// SetActive 启用/停用
// PUT /api/v1/users/:id/active
func (h *UserHandler) SetActive(c *gin.Context) {
	var req activeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	user, err := h.svc.SetActive(c.Request.Context(), GetActor(c), c.Param("id"), *req.IsActive)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, user)
}

type passwordRequest struct {
	Password string `json:"password" binding:"required"`
}

// ResetPassword 重置密码
// PUT /api/v1/users/:id/password
func (h *UserHandler) ResetPassword(c *gin.Context) {
	var req passwordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	if err := h.svc.ResetPassword(c.Request.Context(), GetActor(c), c.Param("id"), req.Password); err != nil {
		Fail(c, err)
		return
	}
	Success(c, nil)
}

// Delete 删除用户
// DELETE /api/v1/users/:id
func (h *UserHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), GetActor(c), c.Param("id")); err != nil {
		Fail(c, err)
		return
	}
	Success(c, nil)
}
