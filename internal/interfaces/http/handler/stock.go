package handler

import (
	"github.com/erp/invoicedesk/internal/domain/invoice"
	"github.com/erp/invoicedesk/internal/domain/shared"
	"github.com/gin-gonic/gin"
)

// StockListRequest represents paging of the stock lists
type StockListRequest struct {
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy  string `form:"order_by" binding:"omitempty,oneof=code name quantity"`
	OrderDir string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// StockHandler exposes stock levels read-only. Quantities are kept by the
// warehouse system; documents only reference items.
type StockHandler struct {
	BaseHandler
	repo invoice.StockItemRepository
}

// NewStockHandler creates a new StockHandler
func NewStockHandler(repo invoice.StockItemRepository) *StockHandler {
	return &StockHandler{repo: repo}
}

// RegisterRoutes registers the stock routes
func (h *StockHandler) RegisterRoutes(rg *gin.RouterGroup) {
	stock := rg.Group("/stock")
	stock.GET("/zero-balance", h.ZeroBalance)
	stock.GET("/:id", h.Get)
}

// ZeroBalance godoc
// @Summary      List zero-balance stock items
// @Tags         stock
// @Produce      json
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(20) maximum(100)
// @Param        order_by query string false "Sort field" Enums(code, name, quantity)
// @Param        order_dir query string false "Sort direction" Enums(asc, desc)
// @Success      200 {object} dto.Response{data=[]invoice.StockItem,meta=dto.Meta}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /stock/zero-balance [get]
func (h *StockHandler) ZeroBalance(c *gin.Context) {
	if _, ok := h.currentUser(c); !ok {
		return
	}
	var req StockListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.ValidationError(c, err)
		return
	}

	filter := shared.Filter{
		Page:     req.Page,
		PageSize: req.PageSize,
		OrderBy:  req.OrderBy,
		OrderDir: req.OrderDir,
	}.Normalize()
	items, total, err := h.repo.FindZeroBalance(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, items, total, filter.Page, filter.PageSize)
}

// Get godoc
// @Summary      Get a stock item
// @Tags         stock
// @Produce      json
// @Param        id path int true "Stock item ID"
// @Success      200 {object} dto.Response{data=invoice.StockItem}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /stock/{id} [get]
func (h *StockHandler) Get(c *gin.Context) {
	if _, ok := h.currentUser(c); !ok {
		return
	}
	id, ok := h.parseID(c, "id")
	if !ok {
		return
	}
	item, err := h.repo.FindByID(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, item)
}
