package api

import (
	"context"
	"net/http"

	"dealer-portal/internal/models"
	"dealer-portal/internal/store"

	"github.com/gin-gonic/gin"
)

func (h *Handler) listNotifications(c *gin.Context) {
	inbox, err := h.notifications.List(c.Request.Context(), requestDealer(c), queryInt(c, "limit"), queryInt(c, "offset"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, inbox)
}

type dealerBody struct {
	DealerID string `json:"dealer_id"`
}

func (h *Handler) markAllRead(c *gin.Context) {
	var body dealerBody
	if err := bindOptional(c, &body); err != nil {
		badBody(c, err)
		return
	}

	dealerID, ok := dealerFor(c, body.DealerID)
	if !ok {
		return
	}
	updated, err := h.notifications.MarkAllRead(c.Request.Context(), dealerID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "All notifications marked as read", "updated": updated})
}

type markBody struct {
	DealerID string `json:"dealer_id"`
	IsRead   *bool  `json:"is_read"`
}

func (h *Handler) markNotification(c *gin.Context) {
	id, ok := int64Param(c, "id")
	if !ok {
		return
	}
	var body markBody
	if err := bindOptional(c, &body); err != nil {
		badBody(c, err)
		return
	}
	read := true
	if body.IsRead != nil {
		read = *body.IsRead
	}

	dealerID, ok := dealerFor(c, body.DealerID)
	if !ok {
		return
	}
	if err := h.notifications.MarkRead(c.Request.Context(), id, dealerID, read); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Notification updated", "id": id, "is_read": read})
}

func (h *Handler) deleteNotification(c *gin.Context) {
	id, ok := int64Param(c, "id")
	if !ok {
		return
	}
	if err := h.notifications.Delete(c.Request.Context(), id, requestDealer(c)); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Notification deleted", "id": id})
}

func (h *Handler) notificationHistory(c *gin.Context) {
	id, ok := int64Param(c, "id")
	if !ok {
		return
	}
	history, err := h.notifications.History(c.Request.Context(), id, requestDealer(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": history, "count": len(history)})
}

func (h *Handler) acceptFromNotification(c *gin.Context) {
	h.transitionFromNotification(c, "accepted", h.notifications.Accept)
}

func (h *Handler) rejectFromNotification(c *gin.Context) {
	h.transitionFromNotification(c, "rejected", h.notifications.Reject)
}

func (h *Handler) transitionFromNotification(c *gin.Context, verb string,
	fn func(ctx context.Context, id int64, dealerID, orderID string) ([]store.Transition, error)) {
	id, ok := int64Param(c, "id")
	if !ok {
		return
	}
	var body transitionBody
	if err := bindOptional(c, &body); err != nil {
		badBody(c, err)
		return
	}

	dealerID, ok := dealerFor(c, body.DealerID)
	if !ok {
		return
	}
	results, err := fn(c.Request.Context(), id, dealerID, body.OrderID)
	if err != nil {
		h.fail(c, err)
		return
	}

	changed := 0
	orders := make([]*models.Order, 0, len(results))
	for _, r := range results {
		if r.Changed {
			changed++
		}
		orders = append(orders, r.Order)
	}
	c.JSON(http.StatusOK, gin.H{
		"message": transitionMessage(verb, changed > 0),
		"orders":  orders,
		"changed": changed,
	})
}
