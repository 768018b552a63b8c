package handler

import (
	"context"
	"net/http"

	appinvoice "github.com/erp/invoicedesk/internal/application/invoice"
	"github.com/erp/invoicedesk/internal/domain/identity"
	"github.com/erp/invoicedesk/internal/domain/invoice"
	"github.com/erp/invoicedesk/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// DocumentService is the document API the handler serves
type DocumentService interface {
	appinvoice.InvoiceGateway
	Create(ctx context.Context, req appinvoice.CreateDocumentRequest) (*invoice.Invoice, error)
	ReturnDepositItems(ctx context.Context, id int64, quantities map[int64]decimal.Decimal) error
}

// UpdateDocumentRequest carries the editable fields of a document.
// A full document body decodes into it; other fields are ignored.
type UpdateDocumentRequest struct {
	Comment       string `json:"comment" binding:"max=4000"`
	MachineName   string `json:"machine_name" binding:"max=200"`
	MechanismName string `json:"mechanism_name" binding:"max=200"`
	EmployeeName  string `json:"employee_name" binding:"max=200"`
	ClientName    string `json:"client_name" binding:"max=200"`
	ManagerName   string `json:"manager_name" binding:"max=200"`
	Version       int    `json:"version" binding:"min=0"`
}

// ReturnItemRequest is one partial return line
type ReturnItemRequest struct {
	ItemID   int64           `json:"item_id" binding:"required,min=1"`
	Quantity decimal.Decimal `json:"quantity" binding:"gt=0"`
}

// ReturnDepositRequest optionally limits a deposit return to some items
type ReturnDepositRequest struct {
	Items []ReturnItemRequest `json:"items" binding:"omitempty,dive"`
}

// DecisionRequest accepts or rejects a purchase request
type DecisionRequest struct {
	Approved *bool `json:"approved" binding:"required"`
}

// DocumentHandler serves the document API under /documents.
// Reads require the view capability of the document type; lifecycle calls
// are checked against the same gate the desk applies.
type DocumentHandler struct {
	BaseHandler
	service DocumentService
}

// NewDocumentHandler creates a new DocumentHandler
func NewDocumentHandler(service DocumentService) *DocumentHandler {
	return &DocumentHandler{service: service}
}

// RegisterRoutes registers the document routes
func (h *DocumentHandler) RegisterRoutes(rg *gin.RouterGroup) {
	docs := rg.Group("/documents")
	docs.GET("", h.List)
	docs.POST("", h.Create)
	docs.GET("/:id", h.Get)
	docs.PUT("/:id", h.Update)
	docs.DELETE("/:id", h.Delete)
	docs.POST("/:id/advance", h.Advance)
	docs.POST("/:id/return-deposit", h.ReturnDeposit)
	docs.POST("/:id/decision", h.Decide)
}

// List godoc
// @Summary      List documents of one type
// @Description  Lists documents of one operation type, or every viewable type for all
// @Tags         documents
// @Produce      json
// @Param        filter_type query string true "Document type or all"
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(20) maximum(100)
// @Success      200 {object} dto.Response{data=[]invoice.Invoice,meta=dto.Meta}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /documents [get]
func (h *DocumentHandler) List(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	var req dto.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.ValidationError(c, err)
		return
	}

	filterType := invoice.Type(req.FilterType)
	if filterType.IsOperation() && !canView(user, filterType) {
		h.Forbidden(c, "You cannot view documents of this type")
		return
	}

	result, err := h.service.FetchInvoiceList(c.Request.Context(), filterType, req.Page, req.PageSize)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, result.Items, result.TotalItems, result.Page, result.PageSize)
}

// Create godoc
// @Summary      Create a document
// @Description  Creates a draft document of an operation type
// @Tags         documents
// @Accept       json
// @Produce      json
// @Param        request body appinvoice.CreateDocumentRequest true "Document creation request"
// @Success      201 {object} dto.Response{data=invoice.Invoice}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /documents [post]
func (h *DocumentHandler) Create(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	var req appinvoice.CreateDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}
	if t := invoice.Type(req.Type); t.IsOperation() && !canView(user, t) {
		h.Forbidden(c, "You cannot create documents of this type")
		return
	}

	inv, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, inv)
}

// Get godoc
// @Summary      Get a document
// @Tags         documents
// @Produce      json
// @Param        id path int true "Document ID"
// @Success      200 {object} dto.Response{data=invoice.Invoice}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /documents/{id} [get]
func (h *DocumentHandler) Get(c *gin.Context) {
	inv, _, ok := h.load(c)
	if !ok {
		return
	}
	h.Success(c, inv)
}

// Update godoc
// @Summary      Update document details
// @Description  Replaces the comment and the named parties. A stale version answers 409
// @Tags         documents
// @Accept       json
// @Produce      json
// @Param        id path int true "Document ID"
// @Param        request body UpdateDocumentRequest true "Editable document fields"
// @Success      200 {object} dto.Response{data=invoice.Invoice}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /documents/{id} [put]
func (h *DocumentHandler) Update(c *gin.Context) {
	inv, _, ok := h.load(c)
	if !ok {
		return
	}
	var req UpdateDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}

	changes := &invoice.Invoice{Version: req.Version}
	changes.ApplyDetails(invoice.Details{
		Comment:       req.Comment,
		MachineName:   req.MachineName,
		MechanismName: req.MechanismName,
		EmployeeName:  req.EmployeeName,
		ClientName:    req.ClientName,
		ManagerName:   req.ManagerName,
	})
	if err := h.service.UpdateInvoice(c.Request.Context(), inv.ID, changes); err != nil {
		h.HandleError(c, err)
		return
	}
	h.respondWithDocument(c, inv.ID)
}

// Delete godoc
// @Summary      Delete a document
// @Description  Confirmed and refunded documents cannot be deleted
// @Tags         documents
// @Produce      json
// @Param        id path int true "Document ID"
// @Success      200 {object} dto.Response
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /documents/{id} [delete]
func (h *DocumentHandler) Delete(c *gin.Context) {
	inv, user, ok := h.load(c)
	if !ok {
		return
	}
	if !inv.IsDeleteBlocked() && !appinvoice.WorkflowDeleteOne.Permitted(user, inv) {
		h.Forbidden(c, "You cannot delete this document")
		return
	}
	if err := h.service.DeleteInvoice(c.Request.Context(), inv.ID); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, gin.H{"id": inv.ID, "deleted": true})
}

// Advance godoc
// @Summary      Advance the document status
// @Description  Moves the document one lifecycle step forward
// @Tags         documents
// @Produce      json
// @Param        id path int true "Document ID"
// @Success      200 {object} dto.Response{data=invoice.Invoice}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /documents/{id}/advance [post]
func (h *DocumentHandler) Advance(c *gin.Context) {
	inv, user, ok := h.load(c)
	if !ok {
		return
	}
	if !appinvoice.WorkflowConfirm.Permitted(user, inv) {
		h.Forbidden(c, "You cannot confirm this document")
		return
	}
	if err := h.service.AdvanceInvoiceStatus(c.Request.Context(), inv.ID); err != nil {
		h.HandleError(c, err)
		return
	}
	h.respondWithDocument(c, inv.ID)
}

// ReturnDeposit godoc
// @Summary      Return a deposit
// @Description  Returns deposit items. An empty body returns every outstanding item
// @Tags         documents
// @Accept       json
// @Produce      json
// @Param        id path int true "Document ID"
// @Param        request body ReturnDepositRequest false "Items to return"
// @Success      200 {object} dto.Response{data=invoice.Invoice}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /documents/{id}/return-deposit [post]
func (h *DocumentHandler) ReturnDeposit(c *gin.Context) {
	inv, user, ok := h.load(c)
	if !ok {
		return
	}
	if !appinvoice.WorkflowRecoverDeposit.Permitted(user, inv) {
		h.Forbidden(c, "You cannot recover this deposit")
		return
	}

	var req ReturnDepositRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.ValidationError(c, err)
			return
		}
	}
	var quantities map[int64]decimal.Decimal
	if len(req.Items) > 0 {
		quantities = make(map[int64]decimal.Decimal, len(req.Items))
		for _, item := range req.Items {
			quantities[item.ItemID] = quantities[item.ItemID].Add(item.Quantity)
		}
	}

	if err := h.service.ReturnDepositItems(c.Request.Context(), inv.ID, quantities); err != nil {
		h.HandleError(c, err)
		return
	}
	h.respondWithDocument(c, inv.ID)
}

// Decide godoc
// @Summary      Decide a purchase request
// @Description  Accepts or rejects a draft purchase request
// @Tags         documents
// @Accept       json
// @Produce      json
// @Param        id path int true "Document ID"
// @Param        request body DecisionRequest true "Decision"
// @Success      200 {object} dto.Response{data=invoice.Invoice}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /documents/{id}/decision [post]
func (h *DocumentHandler) Decide(c *gin.Context) {
	inv, user, ok := h.load(c)
	if !ok {
		return
	}
	var req DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}
	w := appinvoice.WorkflowReject
	if *req.Approved {
		w = appinvoice.WorkflowAccept
	}
	if !w.Permitted(user, inv) {
		h.Forbidden(c, "You cannot decide this purchase request")
		return
	}
	if err := h.service.DecidePurchaseRequest(c.Request.Context(), inv.ID, *req.Approved); err != nil {
		h.HandleError(c, err)
		return
	}
	h.respondWithDocument(c, inv.ID)
}

// load resolves the user and the document of the :id parameter and
// checks the view capability of its type
func (h *DocumentHandler) load(c *gin.Context) (*invoice.Invoice, *identity.User, bool) {
	user, ok := h.currentUser(c)
	if !ok {
		return nil, nil, false
	}
	id, ok := h.parseID(c, "id")
	if !ok {
		return nil, nil, false
	}
	inv, err := h.service.FetchInvoice(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return nil, nil, false
	}
	if !canView(user, inv.Type) {
		h.Forbidden(c, "You cannot view documents of this type")
		return nil, nil, false
	}
	return inv, user, true
}

func (h *DocumentHandler) respondWithDocument(c *gin.Context, id int64) {
	inv, err := h.service.FetchInvoice(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewSuccessResponse(inv))
}

func canView(user *identity.User, t invoice.Type) bool {
	capability, ok := t.ViewCapability()
	return ok && user.HasCapability(capability)
}
