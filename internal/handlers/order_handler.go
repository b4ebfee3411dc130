package handlers

import (
	"net/http"
	"strconv"

	"grocery-checkout/internal/checkout"
	"grocery-checkout/internal/middleware"
	"grocery-checkout/internal/models"
	"grocery-checkout/internal/orders"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type OrderHandler struct {
	svc *checkout.Service
	log zerolog.Logger
}

func NewOrderHandler(svc *checkout.Service, log zerolog.Logger) *OrderHandler {
	return &OrderHandler{svc: svc, log: log}
}

func requester(c *gin.Context) checkout.Requester {
	return checkout.Requester{UserID: c.GetUint(middleware.UserIDKey), Admin: middleware.IsAdmin(c)}
}

// filterFromQuery reads ?page=&limit=&status=.
func filterFromQuery(c *gin.Context) (orders.Filter, bool) {
	var f orders.Filter
	for key, dst := range map[string]*int{"page": &f.Page, "limit": &f.Limit} {
		raw := c.Query(key)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			badRequest(c, key+" must be a number")
			return f, false
		}
		*dst = n
	}
	f.Status = models.OrderStatus(c.Query("status"))
	return f, true
}

// --- POST: /api/orders ---
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var req checkout.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}

	order, err := h.svc.PlaceOrder(c.Request.Context(), c.GetUint(middleware.UserIDKey), req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

// --- GET: /api/orders/:id ---
func (h *OrderHandler) GetOrder(c *gin.Context) {
	order, err := h.svc.GetOrder(c.Request.Context(), requester(c), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// --- GET: /api/orders ---
func (h *OrderHandler) ListMyOrders(c *gin.Context) {
	f, ok := filterFromQuery(c)
	if !ok {
		return
	}
	page, err := h.svc.ListMyOrders(c.Request.Context(), c.GetUint(middleware.UserIDKey), f)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

// --- POST: /api/orders/:id/cancel ---
func (h *OrderHandler) CancelOrder(c *gin.Context) {
	var req cancelRequest
	// The body is optional.
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "Invalid request body")
			return
		}
	}

	order, err := h.svc.CancelOrder(c.Request.Context(), requester(c), c.Param("id"), req.Reason)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// --- GET: /api/admin/orders ---
func (h *OrderHandler) ListAllOrders(c *gin.Context) {
	f, ok := filterFromQuery(c)
	if !ok {
		return
	}
	page, err := h.svc.ListAllOrders(c.Request.Context(), f)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

type statusRequest struct {
	Status models.OrderStatus `json:"status" binding:"required"`
	Note   string             `json:"note"`
}

// --- PUT: /api/admin/orders/:id/status ---
func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "status is required")
		return
	}

	order, err := h.svc.SetStatus(c.Request.Context(), c.Param("id"), req.Status, req.Note)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

type paymentRequest struct {
	PaymentStatus models.PaymentStatus `json:"payment_status" binding:"required"`
	TransactionID string               `json:"transaction_id"`
}

// --- PUT: /api/admin/orders/:id/payment ---
func (h *OrderHandler) UpdatePayment(c *gin.Context) {
	var req paymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "payment_status is required")
		return
	}

	order, err := h.svc.SetPaymentStatus(c.Request.Context(), c.Param("id"), req.PaymentStatus, req.TransactionID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

type verifyRequest struct {
	Verified *bool `json:"verified" binding:"required"`
}

// --- PUT: /api/admin/orders/:id/manual-payment ---
func (h *OrderHandler) VerifyManualPayment(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "verified is required")
		return
	}

	order, err := h.svc.VerifyManualPayment(c.Request.Context(), c.GetUint(middleware.UserIDKey), c.Param("id"), *req.Verified)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, order)
}
