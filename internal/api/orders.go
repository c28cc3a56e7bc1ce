package api

import (
	"context"
	"net/http"

	"dealer-portal/internal/service"
	"dealer-portal/internal/store"

	"github.com/gin-gonic/gin"
)

// createOrder handles order creation
func (h *Handler) createOrder(c *gin.Context) {
	var req service.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c, err)
		return
	}
	dealerID, ok := dealerFor(c, req.DealerID)
	if !ok {
		return
	}
	req.DealerID = dealerID
	req.IdempotencyKey = c.GetHeader("Idempotency-Key")

	order, replayed, err := h.orders.CreateOrder(c.Request.Context(), &req)
	if err != nil {
		h.fail(c, err)
		return
	}

	if replayed {
		c.Header("Idempotent-Replayed", "true")
		c.JSON(http.StatusOK, gin.H{"order": order})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"order": order})
}

func (h *Handler) listOrders(c *gin.Context) {
	filter := store.OrderFilter{
		DealerID: requestDealer(c),
		UserID:   c.Query("user_id"),
		Status:   c.Query("status"),
		Limit:    queryInt(c, "limit"),
		Offset:   queryInt(c, "offset"),
	}
	orders, err := h.orders.ListOrders(c.Request.Context(), filter)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders, "count": len(orders)})
}

// getOrder handles get order by ID
func (h *Handler) getOrder(c *gin.Context) {
	order, err := h.orders.GetOrder(c.Request.Context(), c.Param("id"), requestDealer(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order})
}

type updateOrderBody struct {
	DealerID string `json:"dealer_id"`
	service.UpdateOrderRequest
}

func (h *Handler) updateOrder(c *gin.Context) {
	var body updateOrderBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badBody(c, err)
		return
	}

	dealerID, ok := dealerFor(c, body.DealerID)
	if !ok {
		return
	}
	result, err := h.orders.UpdateOrder(c.Request.Context(), c.Param("id"), dealerID, &body.UpdateOrderRequest)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"order":           result.Order,
		"previous_status": result.PreviousStatus,
		"changed":         result.Changed,
	})
}

type transitionBody struct {
	DealerID string `json:"dealer_id"`
	OrderID  string `json:"order_id"`
}

func (h *Handler) acceptOrder(c *gin.Context) {
	h.transitionOrder(c, "accepted", h.orders.Accept)
}

func (h *Handler) rejectOrder(c *gin.Context) {
	h.transitionOrder(c, "rejected", h.orders.Reject)
}

func (h *Handler) transitionOrder(c *gin.Context, verb string,
	fn func(ctx context.Context, orderID, dealerID string) (*store.Transition, error)) {
	var body transitionBody
	if err := bindOptional(c, &body); err != nil {
		badBody(c, err)
		return
	}

	dealerID, ok := dealerFor(c, body.DealerID)
	if !ok {
		return
	}
	result, err := fn(c.Request.Context(), c.Param("id"), dealerID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": transitionMessage(verb, result.Changed),
		"order":   result.Order,
		"changed": result.Changed,
	})
}

func transitionMessage(verb string, changed bool) string {
	if changed {
		return "Order " + verb
	}
	return "Order was already " + verb
}
