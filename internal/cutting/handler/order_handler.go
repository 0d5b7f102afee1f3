package handler

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/XM-LEES/cutrix/internal/cutting/entity"
	"github.com/XM-LEES/cutrix/internal/cutting/export"
	"github.com/XM-LEES/cutrix/internal/cutting/service"
)

type OrderHandler struct {
	svc *service.OrderService
}

func NewOrderHandler(svc *service.OrderService) *OrderHandler {
	return &OrderHandler{svc: svc}
}

// List 订单列表
// GET /api/v1/orders?keyword=&from=&to=&page=&page_size=
func (h *OrderHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)
	filter := entity.OrderFilter{Keyword: c.Query("keyword"), Page: page, PageSize: pageSize}
	if t, err := time.Parse("2006-01-02", c.Query("from")); err == nil {
		filter.From = &t
	}
	if t, err := time.Parse("2006-01-02", c.Query("to")); err == nil {
		filter.To = &t
	}

	orders, total, err := h.svc.List(c.Request.Context(), GetActor(c), filter)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, newList(orders, page, pageSize, total))
}

// Get 订单详情
// GET /api/v1/orders/:id
func (h *OrderHandler) Get(c *gin.Context) {
	order, err := h.svc.Get(c.Request.Context(), GetActor(c), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, order)
}

// GetByNumber 按订单号查找
// GET /api/v1/orders/by-number/:number
func (h *OrderHandler) GetByNumber(c *gin.Context) {
	order, err := h.svc.GetByNumber(c.Request.Context(), GetActor(c), c.Param("number"))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, order)
}

// Create 创建订单
// POST /api/v1/orders
func (h *OrderHandler) Create(c *gin.Context) {
	var req service.CreateOrderInput
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	order, err := h.svc.Create(c.Request.Context(), GetActor(c), req)
	if err != nil {
		Fail(c, err)
		return
	}
	Created(c, order)
}

// Import 通过 CSV/Excel 明细文件创建订单
// POST /api/v1/orders/import (multipart: order_number, style_number, customer_name, note, encoding, file)
func (h *OrderHandler) Import(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		BadRequest(c, "请上传明细文件")
		return
	}
	f, err := fh.Open()
	if err != nil {
		BadRequest(c, "读取文件失败: "+err.Error())
		return
	}
	defer f.Close()

	var items []entity.OrderItem
	switch strings.ToLower(filepath.Ext(fh.Filename)) {
	case ".xlsx":
		items, err = export.ReadItemsXLSX(f)
	case ".csv":
		items, err = export.ReadItemsCSV(f, export.ParseEncoding(c.PostForm("encoding")))
	default:
		BadRequest(c, "只支持 .csv 或 .xlsx 文件")
		return
	}
	if err != nil {
		Fail(c, err)
		return
	}

	order, err := h.svc.Create(c.Request.Context(), GetActor(c), service.CreateOrderInput{
		OrderNumber:  c.PostForm("order_number"),
		StyleNumber:  c.PostForm("style_number"),
		CustomerName: c.PostForm("customer_name"),
		Note:         c.PostForm("note"),
		Items:        items,
	})
	if err != nil {
		Fail(c, err)
		return
	}
	Created(c, order)
}

type updateOrderRequest struct {
	Note            *string    `json:"note"`
	OrderFinishDate *time.Time `json:"order_finish_date"`
}

// Update 修改备注或交货日期
// PATCH /api/v1/orders/:id
func (h *OrderHandler) Update(c *gin.Context) {
	var req updateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	ctx, actor, id := c.Request.Context(), GetActor(c), c.Param("id")

	var (
		order *entity.Order
		err   error
	)
	if req.Note != nil {
		if order, err = h.svc.UpdateNote(ctx, actor, id, *req.Note); err != nil {
			Fail(c, err)
			return
		}
	}
	if req.OrderFinishDate != nil {
		if order, err = h.svc.UpdateFinishDate(ctx, actor, id, req.OrderFinishDate); err != nil {
			Fail(c, err)
			return
		}
	}
	if order == nil {
		BadRequest(c, "没有需要修改的字段")
		return
	}
	Success(c, order)
}

// Delete 删除订单
// DELETE /api/v1/orders/:id
func (h *OrderHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), GetActor(c), c.Param("id")); err != nil {
		Fail(c, err)
		return
	}
	Success(c, nil)
}
