package http

import (
	"errors"
	"net/http"

	"github.com/GovindKumar26/petstore-api/internal/adapter/http/middleware"
	domain "github.com/GovindKumar26/petstore-api/internal/entity"
	"github.com/GovindKumar26/petstore-api/internal/usecase"
	"github.com/gin-gonic/gin"
)

// ShippingRates decides the shipping cost for a cart subtotal. Flat
// rate with a free-shipping threshold.
type ShippingRates struct {
	FlatRate  domain.Paise
	FreeAbove domain.Paise
}

func (r ShippingRates) CostFor(subtotal domain.Paise) domain.Paise {
	if r.FreeAbove > 0 && subtotal >= r.FreeAbove {
		return 0
	}
	return r.FlatRate
}

type OrderHandler struct {
	create   *usecase.CreateOrder
	cancel   *usecase.CancelOrder
	returns  *usecase.ReturnService
	orders   usecase.OrderRepo
	products usecase.ProductRepo
	cache    usecase.OrderCache
	rates    ShippingRates
}

func NewOrderHandler(create *usecase.CreateOrder, cancel *usecase.CancelOrder, returns *usecase.ReturnService, orders usecase.OrderRepo, products usecase.ProductRepo, cache usecase.OrderCache, rates ShippingRates) *OrderHandler {
	return &OrderHandler{create: create, cancel: cancel, returns: returns, orders: orders, products: products, cache: cache, rates: rates}
}

type createOrderReq struct {
	Items []struct {
		ProductID string `json:"productId" binding:"required"`
		Quantity  int    `json:"quantity" binding:"required,min=1"`
	} `json:"items" binding:"required,min=1"`
	ShippingAddress struct {
		Name    string `json:"name" binding:"required"`
		Phone   string `json:"phone" binding:"required"`
		Street  string `json:"street" binding:"required"`
		City    string `json:"city" binding:"required"`
		State   string `json:"state" binding:"required"`
		Pincode string `json:"pincode" binding:"required"`
		Country string `json:"country"`
	} `json:"shippingAddress" binding:"required"`
	DiscountCode string `json:"discountCode"`
}

// POST /api/orders
func (h *OrderHandler) Create(c *gin.Context) {
	var req createOrderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	in := usecase.CreateOrderInput{
		UserID:         middleware.UserID(c),
		IdempotencyKey: c.GetHeader("Idempotency-Key"),
		DiscountCode:   req.DiscountCode,
		ShippingAddr: domain.ShippingAddress{
			Name:    req.ShippingAddress.Name,
			Phone:   req.ShippingAddress.Phone,
			Street:  req.ShippingAddress.Street,
			City:    req.ShippingAddress.City,
			State:   req.ShippingAddress.State,
			Pincode: req.ShippingAddress.Pincode,
			Country: req.ShippingAddress.Country,
		},
	}
	for _, it := range req.Items {
		in.Items = append(in.Items, usecase.CreateOrderItem{ProductID: it.ProductID, Quantity: it.Quantity})
	}

	// Shipping depends on the server-side subtotal, so quote the cart
	// from the catalog before handing off.
	subtotal, err := h.quoteSubtotal(c, in.Items)
	if err != nil {
		writeOrderErr(c, err)
		return
	}
	in.ShippingCost = h.rates.CostFor(subtotal)

	o, err := h.create.Execute(c.Request.Context(), in)
	if err != nil {
		writeOrderErr(c, err)
		return
	}
	if h.cache != nil {
		_ = h.cache.SetStatus(c.Request.Context(), o.ID, string(o.Status))
	}
	c.JSON(http.StatusCreated, gin.H{"order": viewOf(o)})
}

// quoteSubtotal prices the cart from the catalog without reserving
// anything, to pick the shipping tier.
func (h *OrderHandler) quoteSubtotal(c *gin.Context, items []usecase.CreateOrderItem) (domain.Paise, error) {
	var subtotal domain.Paise
	for _, it := range items {
		p, err := h.products.GetByID(c.Request.Context(), it.ProductID)
		if err != nil {
			return 0, err
		}
		if p == nil {
			return 0, usecase.ErrProductMissing
		}
		subtotal += p.Price * domain.Paise(it.Quantity)
	}
	return subtotal, nil
}

// GET /api/orders?status=
func (h *OrderHandler) ListMine(c *gin.Context) {
	status := domain.Status(c.Query("status"))
	orders, err := h.orders.ListByUser(c.Request.Context(), middleware.UserID(c), status)
	if err != nil {
		writeOrderErr(c, err)
		return
	}
	views := make([]orderView, 0, len(orders))
	for i := range orders {
		views = append(views, viewOf(&orders[i]))
	}
	c.JSON(http.StatusOK, gin.H{"orders": views})
}

// GET /api/orders/:id
func (h *OrderHandler) Get(c *gin.Context) {
	o, err := h.ownedOrder(c)
	if err != nil {
		writeOrderErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": viewOf(o)})
}

// GET /api/orders/:id/status reads through the cache; a miss falls
// back to the database and repopulates.
func (h *OrderHandler) GetStatus(c *gin.Context) {
	id := c.Param("id")
	if h.cache != nil {
		if status, ok, err := h.cache.GetStatus(c.Request.Context(), id); err == nil && ok {
			c.JSON(http.StatusOK, gin.H{"orderId": id, "status": status})
			return
		}
	}
	o, err := h.ownedOrder(c)
	if err != nil {
		writeOrderErr(c, err)
		return
	}
	if h.cache != nil {
		_ = h.cache.SetStatus(c.Request.Context(), o.ID, string(o.Status))
	}
	c.JSON(http.StatusOK, gin.H{"orderId": o.ID, "status": string(o.Status)})
}

type cancelReq struct {
	Reason string `json:"reason"`
}

// POST /api/orders/:id/cancel
func (h *OrderHandler) Cancel(c *gin.Context) {
	o, err := h.ownedOrder(c)
	if err != nil {
		writeOrderErr(c, err)
		return
	}
	var req cancelReq
	_ = c.ShouldBindJSON(&req)

	o, err = h.cancel.Execute(c.Request.Context(), o.ID, domain.ActorUser, req.Reason)
	if err != nil {
		writeOrderErr(c, err)
		return
	}
	if h.cache != nil {
		_ = h.cache.SetStatus(c.Request.Context(), o.ID, string(o.Status))
	}
	c.JSON(http.StatusOK, gin.H{"order": viewOf(o)})
}

type returnReq struct {
	Reason string `json:"reason" binding:"required"`
}

// POST /api/orders/:id/return
func (h *OrderHandler) RequestReturn(c *gin.Context) {
	var req returnReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "reason is required"})
		return
	}
	o, err := h.returns.Request(c.Request.Context(), c.Param("id"), middleware.UserID(c), req.Reason)
	if err != nil {
		writeOrderErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": viewOf(o)})
}

func (h *OrderHandler) ownedOrder(c *gin.Context) (*domain.Order, error) {
	o, err := h.orders.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, usecase.ErrOrderNotFound
	}
	if o.UserID != middleware.UserID(c) {
		return nil, usecase.ErrNotOwner
	}
	return o, nil
}

// writeOrderErr maps domain errors onto HTTP statuses.
func writeOrderErr(c *gin.Context, err error) {
	switch {
	case errors.Is(err, usecase.ErrOrderNotFound), errors.Is(err, usecase.ErrProductMissing):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, usecase.ErrNotOwner):
		c.JSON(http.StatusForbidden, gin.H{"error": "order belongs to another user"})
	case errors.Is(err, usecase.ErrDuplicate):
		c.JSON(http.StatusConflict, gin.H{"error": "duplicate request"})
	case errors.Is(err, usecase.ErrInvalidInput),
		errors.Is(err, usecase.ErrEmptyOrder),
		errors.Is(err, usecase.ErrZeroTotal),
		errors.Is(err, domain.ErrBadAmount),
		errors.Is(err, domain.ErrAmountMismatch):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrInsufficientStock),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrAlreadyShipped),
		errors.Is(err, usecase.ErrReturnNotAllowed),
		errors.Is(err, usecase.ErrReturnState),
		errors.Is(err, usecase.ErrAlreadyPaid),
		errors.Is(err, usecase.ErrNotPayable),
		errors.Is(err, usecase.ErrRefundInFlight),
		errors.Is(err, usecase.ErrNoRefundRequest),
		errors.Is(err, usecase.ErrRefundNotPaid),
		errors.Is(err, usecase.ErrNoTransactionRef):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case isDiscountErr(err):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func isDiscountErr(err error) bool {
	return errors.Is(err, domain.ErrDiscountNotFound) ||
		errors.Is(err, domain.ErrDiscountInactive) ||
		errors.Is(err, domain.ErrDiscountNotStarted) ||
		errors.Is(err, domain.ErrDiscountExpired) ||
		errors.Is(err, domain.ErrDiscountUsedUp) ||
		errors.Is(err, domain.ErrDiscountFirstOnly) ||
		errors.Is(err, domain.ErrDiscountMinOrder) ||
		errors.Is(err, domain.ErrDiscountInvalidValue)
}
