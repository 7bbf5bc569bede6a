package http

import (
	"net/http"

	"github.com/GovindKumar26/petstore-api/internal/adapter/http/middleware"
	"github.com/GovindKumar26/petstore-api/internal/adapter/observ"
	domain "github.com/GovindKumar26/petstore-api/internal/entity"
	"github.com/GovindKumar26/petstore-api/internal/usecase"
	"github.com/gin-gonic/gin"
)

type AdminHandler struct {
	status  *usecase.UpdateStatus
	refunds *usecase.RefundService
	returns *usecase.ReturnService
	orders  usecase.OrderRepo
	cache   usecase.OrderCache
}

func NewAdminHandler(status *usecase.UpdateStatus, refunds *usecase.RefundService, returns *usecase.ReturnService, orders usecase.OrderRepo, cache usecase.OrderCache) *AdminHandler {
	return &AdminHandler{status: status, refunds: refunds, returns: returns, orders: orders, cache: cache}
}

type statusReq struct {
	Status string `json:"status" binding:"required"`
	Reason string `json:"reason"`
}

// PATCH /api/admin/orders/:id/status
func (h *AdminHandler) UpdateStatus(c *gin.Context) {
	var req statusReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status is required"})
		return
	}
	o, err := h.status.Execute(c.Request.Context(), c.Param("id"), domain.Status(req.Status), req.Reason)
	if err != nil {
		writeOrderErr(c, err)
		return
	}
	if h.cache != nil {
		_ = h.cache.SetStatus(c.Request.Context(), o.ID, string(o.Status))
	}
	c.JSON(http.StatusOK, gin.H{"order": viewOf(o)})
}

// POST /api/admin/orders/:id/refund/approve
func (h *AdminHandler) ApproveRefund(c *gin.Context) {
	o, err := h.refunds.Approve(c.Request.Context(), c.Param("id"))
	if err != nil {
		observ.RefundsProcessed.WithLabelValues("failed").Inc()
		writeOrderErr(c, err)
		return
	}
	observ.RefundsProcessed.WithLabelValues("refunded").Inc()
	c.JSON(http.StatusOK, gin.H{"order": viewOf(o)})
}

// POST /api/admin/orders/:id/refund/reject
func (h *AdminHandler) RejectRefund(c *gin.Context) {
	o, err := h.refunds.Reject(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeOrderErr(c, err)
		return
	}
	observ.RefundsProcessed.WithLabelValues("rejected").Inc()
	c.JSON(http.StatusOK, gin.H{"order": viewOf(o)})
}

type returnDecisionReq struct {
	Notes string `json:"notes"`
}

func (h *AdminHandler) returnAction(c *gin.Context, fn func(orderID, notes, adminID string) (*domain.Order, error)) {
	var req returnDecisionReq
	_ = c.ShouldBindJSON(&req)
	o, err := fn(c.Param("id"), req.Notes, middleware.UserID(c))
	if err != nil {
		writeOrderErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": viewOf(o)})
}

// POST /api/admin/orders/:id/return/approve
func (h *AdminHandler) ApproveReturn(c *gin.Context) {
	h.returnAction(c, func(id, notes, admin string) (*domain.Order, error) {
		return h.returns.Approve(c.Request.Context(), id, notes, admin)
	})
}

// POST /api/admin/orders/:id/return/reject
func (h *AdminHandler) RejectReturn(c *gin.Context) {
	h.returnAction(c, func(id, notes, admin string) (*domain.Order, error) {
		return h.returns.Reject(c.Request.Context(), id, notes, admin)
	})
}

// POST /api/admin/orders/:id/return/schedule-pickup
func (h *AdminHandler) ScheduleReturnPickup(c *gin.Context) {
	h.returnAction(c, func(id, _, admin string) (*domain.Order, error) {
		return h.returns.SchedulePickup(c.Request.Context(), id, admin)
	})
}

// POST /api/admin/orders/:id/return/picked-up
func (h *AdminHandler) MarkReturnPickedUp(c *gin.Context) {
	h.returnAction(c, func(id, _, admin string) (*domain.Order, error) {
		return h.returns.MarkPickedUp(c.Request.Context(), id, admin)
	})
}

// POST /api/admin/orders/:id/return/complete
func (h *AdminHandler) CompleteReturn(c *gin.Context) {
	h.returnAction(c, func(id, _, admin string) (*domain.Order, error) {
		return h.returns.Complete(c.Request.Context(), id, admin)
	})
}

// GET /api/admin/orders/:id
func (h *AdminHandler) Get(c *gin.Context) {
	o, err := h.orders.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeOrderErr(c, err)
		return
	}
	if o == nil {
		writeOrderErr(c, usecase.ErrOrderNotFound)
		return
	}
	attempts, err := h.orders.ListAttempts(c.Request.Context(), o.ID)
	if err != nil {
		writeOrderErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": viewOf(o), "paymentAttempts": attempts})
}
