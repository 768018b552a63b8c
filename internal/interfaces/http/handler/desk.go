package handler

import (
	"context"

	appinvoice "github.com/erp/invoicedesk/internal/application/invoice"
	"github.com/erp/invoicedesk/internal/domain/identity"
	"github.com/erp/invoicedesk/internal/domain/invoice"
	"github.com/erp/invoicedesk/internal/infrastructure/logger"
	"github.com/erp/invoicedesk/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// BoardQuery selects the filter and page of the desk list
type BoardQuery struct {
	Filter   int `form:"filter" binding:"omitempty,min=0"`
	Page     int `form:"page" binding:"omitempty,min=1"`
	PageSize int `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// ActionRequest carries the operator's answers for a workflow
type ActionRequest struct {
	// Confirm answers the delete confirmation dialog
	Confirm bool `json:"confirm"`
	// Reason answers the rejection prompt; blank cancels
	Reason string `json:"reason" binding:"max=1000"`
}

// DeleteManyRequest deletes a selection after one confirmation
type DeleteManyRequest struct {
	IDs     []int64 `json:"ids" binding:"required,min=1,max=100,dive,min=1"`
	Confirm bool    `json:"confirm"`
}

// MeResponse is the current user with its effective capabilities
type MeResponse struct {
	ID           int64    `json:"id"`
	Username     string   `json:"username"`
	DisplayName  string   `json:"display_name"`
	IsAdmin      bool     `json:"is_admin"`
	Capabilities []string `json:"capabilities"`
}

// ActionResult is the settled outcome of a workflow with the list after it
type ActionResult struct {
	Workflow      appinvoice.Workflow      `json:"workflow"`
	Outcome       appinvoice.Outcome       `json:"outcome"`
	Notifications []Notification           `json:"notifications"`
	Snapshot      appinvoice.BoardSnapshot `json:"snapshot"`
}

// workflowRoutes maps the URL action names to workflows
var workflowRoutes = map[string]appinvoice.Workflow{
	"confirm":         appinvoice.WorkflowConfirm,
	"recover-deposit": appinvoice.WorkflowRecoverDeposit,
	"delete":          appinvoice.WorkflowDeleteOne,
	"accept":          appinvoice.WorkflowAccept,
	"reject":          appinvoice.WorkflowReject,
}

// DeskHandler serves the operator desk: the filter list, the decorated
// document list and the guarded workflows. An engine is built per request
// so dialogs and notifications stay scoped to the caller.
type DeskHandler struct {
	BaseHandler
	gateway  appinvoice.InvoiceGateway
	registry appinvoice.LoadingRegistry
	recorder appinvoice.ActionRecorder
	logger   *zap.Logger
}

// NewDeskHandler creates a new DeskHandler. recorder may be nil.
func NewDeskHandler(
	gateway appinvoice.InvoiceGateway,
	registry appinvoice.LoadingRegistry,
	recorder appinvoice.ActionRecorder,
	logger *zap.Logger,
) *DeskHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DeskHandler{
		gateway:  gateway,
		registry: registry,
		recorder: recorder,
		logger:   logger,
	}
}

// RegisterRoutes registers the desk routes
func (h *DeskHandler) RegisterRoutes(rg *gin.RouterGroup) {
	desk := rg.Group("/desk")
	desk.GET("/me", h.Me)
	desk.GET("/filters", h.Filters)
	desk.GET("/invoices", h.Invoices)
	desk.POST("/invoices/delete", h.DeleteMany)
	desk.POST("/invoices/:id/:action", h.Act)
}

// Me godoc
// @Summary      Get the current user
// @Description  Returns the resolved user with its effective capabilities
// @Tags         desk
// @Produce      json
// @Success      200 {object} dto.Response{data=MeResponse}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /desk/me [get]
func (h *DeskHandler) Me(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	h.Success(c, MeResponse{
		ID:           user.ID,
		Username:     user.Username,
		DisplayName:  user.GetDisplayNameOrUsername(),
		IsAdmin:      user.IsAdmin(),
		Capabilities: user.CapabilityNames(),
	})
}

// Filters godoc
// @Summary      List report filters
// @Description  Returns the filters the current user may select
// @Tags         desk
// @Produce      json
// @Success      200 {object} dto.Response{data=[]invoice.Filter}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /desk/filters [get]
func (h *DeskHandler) Filters(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	h.Success(c, invoice.BuildFilters(user))
}

// Invoices godoc
// @Summary      Get the desk list
// @Description  Returns the rows of the selected filter with allowed actions and busy flags
// @Tags         desk
// @Produce      json
// @Param        filter query int false "Filter index" default(0)
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(20) maximum(100)
// @Success      200 {object} dto.Response{data=appinvoice.BoardSnapshot}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /desk/invoices [get]
func (h *DeskHandler) Invoices(c *gin.Context) {
	board, ok := h.board(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if err := board.Refresh(ctx); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, board.Snapshot(ctx))
}

// Act godoc
// @Summary      Run a desk action
// @Description  Runs one workflow on a document. The body answers the confirmation and the rejection prompt
// @Tags         desk
// @Accept       json
// @Produce      json
// @Param        id path int true "Document ID"
// @Param        action path string true "Action" Enums(confirm, recover-deposit, delete, accept, reject)
// @Param        filter query int false "Filter index of the returned list"
// @Param        request body ActionRequest false "Dialog answers"
// @Success      200 {object} dto.Response{data=ActionResult}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /desk/invoices/{id}/{action} [post]
func (h *DeskHandler) Act(c *gin.Context) {
	w, known := workflowRoutes[c.Param("action")]
	if !known {
		h.ErrorWithCode(c, dto.ErrCodeUnknownWorkflow, "Unknown action: "+c.Param("action"))
		return
	}
	id, ok := h.parseID(c, "id")
	if !ok {
		return
	}
	var req ActionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.ValidationError(c, err)
			return
		}
	}
	board, ok := h.board(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	inv, err := h.gateway.FetchInvoice(ctx, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if !h.permitted(board.User(), w, inv) {
		h.Forbidden(c, "You are not allowed to perform this action")
		return
	}

	engine, notes := h.engine(board, requestInteraction{confirmed: req.Confirm, reason: req.Reason})
	outcome := engine.Run(ctx, w, inv)
	h.respond(c, board, w, outcome, notes)
}

// DeleteMany godoc
// @Summary      Delete several documents
// @Description  Deletes the selection after one confirmation. A confirmed or refunded document refuses the batch
// @Tags         desk
// @Accept       json
// @Produce      json
// @Param        filter query int false "Filter index of the returned list"
// @Param        request body DeleteManyRequest true "Selection"
// @Success      200 {object} dto.Response{data=ActionResult}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /desk/invoices/delete [post]
func (h *DeskHandler) DeleteMany(c *gin.Context) {
	var req DeleteManyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}
	board, ok := h.board(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	seen := make(map[int64]bool, len(req.IDs))
	invs := make([]*invoice.Invoice, 0, len(req.IDs))
	for _, id := range req.IDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		inv, err := h.gateway.FetchInvoice(ctx, id)
		if err != nil {
			h.HandleError(c, err)
			return
		}
		if !h.permitted(board.User(), appinvoice.WorkflowDeleteMany, inv) {
			h.Forbidden(c, "You are not allowed to delete every selected invoice")
			return
		}
		invs = append(invs, inv)
	}

	engine, notes := h.engine(board, requestInteraction{confirmed: req.Confirm})
	outcome := engine.DeleteMany(ctx, invs)
	h.respond(c, board, appinvoice.WorkflowDeleteMany, outcome, notes)
}

// permitted applies the gate. Blocked deletions pass so the engine can
// refuse them with its own message.
func (h *DeskHandler) permitted(user *identity.User, w appinvoice.Workflow, inv *invoice.Invoice) bool {
	if (w == appinvoice.WorkflowDeleteOne || w == appinvoice.WorkflowDeleteMany) && inv.IsDeleteBlocked() {
		return canView(user, inv.Type)
	}
	return w.Permitted(user, inv)
}

func (h *DeskHandler) board(c *gin.Context) (*appinvoice.Board, bool) {
	user, ok := h.currentUser(c)
	if !ok {
		return nil, false
	}
	var q BoardQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.ValidationError(c, err)
		return nil, false
	}
	board := appinvoice.NewBoard(h.gateway, h.registry, logger.Enrich(c.Request.Context(), h.logger))
	board.SetUser(user)
	board.SelectFilter(q.Filter)
	board.SetPage(q.Page, q.PageSize)
	return board, true
}

func (h *DeskHandler) engine(board *appinvoice.Board, interaction appinvoice.Interaction) (*appinvoice.ActionEngine, *collectingNotifier) {
	notes := &collectingNotifier{}
	engine := appinvoice.NewActionEngine(h.gateway, h.registry, interaction, notes, h.logger)
	engine.SetRefresher(board)
	if h.recorder != nil {
		engine.SetRecorder(h.recorder)
	}
	return engine, notes
}

// respond reports the outcome with the list as it stands now. The engine
// refreshes after a success; other outcomes leave the list unfetched.
func (h *DeskHandler) respond(c *gin.Context, board *appinvoice.Board, w appinvoice.Workflow, outcome appinvoice.Outcome, notes *collectingNotifier) {
	ctx := c.Request.Context()
	if outcome != appinvoice.OutcomeSucceeded {
		h.refreshQuietly(ctx, board)
	}
	h.Success(c, ActionResult{
		Workflow:      w,
		Outcome:       outcome,
		Notifications: notes.all(),
		Snapshot:      board.Snapshot(ctx),
	})
}

func (h *DeskHandler) refreshQuietly(ctx context.Context, board *appinvoice.Board) {
	if err := board.Refresh(ctx); err != nil {
		logger.L(ctx).Warn("Failed to refresh desk list", zap.Error(err))
	}
}
