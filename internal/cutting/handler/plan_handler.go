package handler

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/XM-LEES/cutrix/internal/cutting/entity"
	"github.com/XM-LEES/cutrix/internal/cutting/export"
	"github.com/XM-LEES/cutrix/internal/cutting/reconcile"
	"github.com/XM-LEES/cutrix/internal/cutting/service"
)

type PlanHandler struct {
	svc *service.PlanService
}

func NewPlanHandler(svc *service.PlanService) *PlanHandler {
	return &PlanHandler{svc: svc}
}

// List 计划列表
// GET /api/v1/plans?order_id=&status=&keyword=&page=&page_size=
func (h *PlanHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)
	plans, total, err := h.svc.List(c.Request.Context(), GetActor(c), entity.PlanFilter{
		OrderID:  c.Query("order_id"),
		Status:   entity.PlanStatus(c.Query("status")),
		Keyword:  c.Query("keyword"),
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, newList(plans, page, pageSize, total))
}

// Get 计划详情
// GET /api/v1/plans/:id
func (h *PlanHandler) Get(c *gin.Context) {
	plan, err := h.svc.Get(c.Request.Context(), GetActor(c), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, plan)
}

// ListByOrder 订单下的计划
// GET /api/v1/orders/:id/plans
func (h *PlanHandler) ListByOrder(c *gin.Context) {
	plans, err := h.svc.ListByOrder(c.Request.Context(), GetActor(c), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, gin.H{"items": plans})
}

// Create 创建计划（可带版型）
// POST /api/v1/plans
func (h *PlanHandler) Create(c *gin.Context) {
	var req service.CreatePlanInput
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	result, err := h.svc.CreatePlan(c.Request.Context(), GetActor(c), req)
	if err != nil {
		Fail(c, err)
		return
	}
	Created(c, result)
}

// Layouts 必须显式给出；空数组表示删除全部版型
type editPlanRequest struct {
	Layouts []reconcile.LayoutSpec `json:"layouts" binding:"required"`
}

// Edit 提交期望的版型集合，未提交的已有版型会被删除
// PUT /api/v1/plans/:id/layouts
func (h *PlanHandler) Edit(c *gin.Context) {
	var req editPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	result, err := h.svc.EditPlan(c.Request.Context(), GetActor(c), c.Param("id"), req.Layouts)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, result)
}

// Publish 发布
// POST /api/v1/plans/:id/publish
func (h *PlanHandler) Publish(c *gin.Context) {
	plan, err := h.svc.Publish(c.Request.Context(), GetActor(c), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, plan)
}

// Freeze 冻结
// POST /api/v1/plans/:id/freeze
func (h *PlanHandler) Freeze(c *gin.Context) {
	plan, err := h.svc.Freeze(c.Request.Context(), GetActor(c), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, plan)
}

// Delete 删除计划
// DELETE /api/v1/plans/:id
func (h *PlanHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), GetActor(c), c.Param("id")); err != nil {
		Fail(c, err)
		return
	}
	Success(c, nil)
}

type noteRequest struct {
	Note string `json:"note"`
}

// UpdateNote 修改备注
// PATCH /api/v1/plans/:id/note
func (h *PlanHandler) UpdateNote(c *gin.Context) {
	var req noteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	plan, err := h.svc.UpdateNote(c.Request.Context(), GetActor(c), c.Param("id"), req.Note)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, plan)
}

// Tasks 计划下的任务
// GET /api/v1/plans/:id/tasks
func (h *PlanHandler) Tasks(c *gin.Context) {
	tasks, err := h.svc.Tasks(c.Request.Context(), GetActor(c), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, gin.H{"items": tasks})
}

// Matrix 需求/产量对比
// GET /api/v1/plans/:id/matrix
func (h *PlanHandler) Matrix(c *gin.Context) {
	m, err := h.svc.Matrices(c.Request.Context(), GetActor(c), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, m)
}

// ExportMatrix 导出对比表
// GET /api/v1/plans/:id/matrix/export?format=xlsx|csv&encoding=utf8|gbk
func (h *PlanHandler) ExportMatrix(c *gin.Context) {
	ctx, actor, id := c.Request.Context(), GetActor(c), c.Param("id")
	plan, err := h.svc.Get(ctx, actor, id)
	if err != nil {
		Fail(c, err)
		return
	}
	m, err := h.svc.Matrices(ctx, actor, id)
	if err != nil {
		Fail(c, err)
		return
	}

	format := strings.ToLower(c.DefaultQuery("format", "xlsx"))
	filename := fmt.Sprintf("%s-对比表.%s", plan.Name, format)
	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+url.PathEscape(filename))

	switch format {
	case "xlsx":
		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		err = export.WriteXLSX(c.Writer, m, plan.Name)
	case "csv":
		enc := export.ParseEncoding(c.Query("encoding"))
		charset := "utf-8"
		if enc == export.GBK {
			charset = "gbk"
		}
		c.Header("Content-Type", "text/csv; charset="+charset)
		err = export.WriteCSV(c.Writer, m, enc)
	default:
		c.Header("Content-Disposition", "")
		BadRequest(c, "不支持的导出格式: "+format)
		return
	}
	if err != nil {
		_ = c.Error(err)
	}
}

type progressRequest struct {
	CompletedLayers *int `json:"completed_layers" binding:"required"`
}

// RecordProgress 登记任务完成层数
// POST /api/v1/tasks/:id/progress
func (h *PlanHandler) RecordProgress(c *gin.Context) {
	var req progressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	result, err := h.svc.RecordProgress(c.Request.Context(), GetActor(c), c.Param("id"), *req.CompletedLayers)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, result)
}
