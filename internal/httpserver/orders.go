package httpserver

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"lavenderlily/internal/domain"
)

type orderLister interface {
	ListForUser(ctx context.Context, userID string) ([]domain.Order, error)
}

type ordersHandler struct {
	orders orderLister
}

func (h *ordersHandler) list(c *gin.Context) {
	shopper := shopperFrom(c)
	if shopper.UserID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "sign in to view orders"})
		return
	}
	orders, err := h.orders.ListForUser(c.Request.Context(), shopper.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list orders"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}
