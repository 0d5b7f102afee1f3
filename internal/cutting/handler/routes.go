package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/XM-LEES/cutrix/internal/cutting/policy"
	"github.com/XM-LEES/cutrix/internal/middleware"
)

// RegisterRoutes 注册 API 路由
func RegisterRoutes(r *gin.Engine, h *Handlers, jwtSecret string) {
	r.GET("/health/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"code": 40400, "message": "Not found"})
	})

	v1 := r.Group("/api/v1")
	v1.POST("/auth/login", h.Auth.Login)

	authed := v1.Group("", middleware.JWTAuth(jwtSecret))
	perm := middleware.RequirePermission

	auth := authed.Group("/auth")
	{
		auth.GET("/permissions", h.Auth.Permissions)
		auth.GET("/permissions/:token", h.Auth.CheckPermission)
	}

	orders := authed.Group("/orders")
	{
		orders.GET("", perm(policy.OrderRead), h.Order.List)
		orders.POST("", perm(policy.OrderCreate), h.Order.Create)
		orders.POST("/import", perm(policy.OrderCreate), h.Order.Import)
		orders.GET("/by-number/:number", perm(policy.OrderRead), h.Order.GetByNumber)
		orders.GET("/:id", perm(policy.OrderRead), h.Order.Get)
		orders.PATCH("/:id", perm(policy.OrderUpdate), h.Order.Update)
		orders.DELETE("/:id", perm(policy.OrderDelete), h.Order.Delete)
		orders.GET("/:id/plans", perm(policy.PlanRead), h.Plan.ListByOrder)
	}

	plans := authed.Group("/plans")
	{
		plans.GET("", perm(policy.PlanRead), h.Plan.List)
		plans.POST("", perm(policy.PlanCreate), h.Plan.Create)
		plans.GET("/:id", perm(policy.PlanRead), h.Plan.Get)
		plans.DELETE("/:id", perm(policy.PlanDelete), h.Plan.Delete)
		plans.PUT("/:id/layouts", perm(policy.PlanUpdate), h.Plan.Edit)
		plans.PATCH("/:id/note", perm(policy.PlanUpdate), h.Plan.UpdateNote)
		plans.POST("/:id/publish", perm(policy.PlanPublish), h.Plan.Publish)
		plans.POST("/:id/freeze", perm(policy.PlanFreeze), h.Plan.Freeze)
		plans.GET("/:id/tasks", perm(policy.TaskRead), h.Plan.Tasks)
		plans.GET("/:id/matrix", perm(policy.PlanRead), h.Plan.Matrix)
		plans.GET("/:id/matrix/export", perm(policy.PlanRead), h.Plan.ExportMatrix)
	}

	authed.POST("/tasks/:id/progress", perm(policy.LogCreate), h.Plan.RecordProgress)

	users := authed.Group("/users")
	{
		users.GET("", perm(policy.UserRead), h.User.List)
		users.POST("", perm(policy.UserCreate), h.User.Create)
		users.GET("/:id", perm(policy.UserRead), h.User.Get)
		users.PUT("/:id", perm(policy.UserUpdate), h.User.Update)
		users.PUT("/:id/role", perm(policy.UserUpdate), h.User.AssignRole)
		users.PUT("/:id/active", perm(policy.UserUpdate), h.User.SetActive)
		users.PUT("/:id/password", perm(policy.UserUpdate), h.User.ResetPassword)
		users.DELETE("/:id", perm(policy.UserDelete), h.User.Delete)
	}

	authed.GET("/sse/events", h.SSE.Stream)
}
