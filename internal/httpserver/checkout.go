package httpserver

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	checkoutsvc "lavenderlily/internal/service/checkout"
	settlementsvc "lavenderlily/internal/service/settlement"
)

type checkoutHandler struct {
	checkout   *checkoutsvc.Service
	settlement *settlementsvc.Service
	logger     *log.Logger
}

type createSessionRequest struct {
	checkoutsvc.Input
	ShippingOption string `json:"shippingOption"`
}

func (h *checkoutHandler) createSession(c *gin.Context) {
	shopper, ok := requireShopper(c)
	if !ok {
		return
	}
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.ShippingCents == 0 && req.ShippingOption != "" {
		req.ShippingCents = checkoutsvc.ShippingCostCents(req.ShippingOption)
	}

	session, err := h.checkout.CreateSession(c.Request.Context(), shopper, req.Input)
	if err != nil {
		var verr *checkoutsvc.ValidationError
		switch {
		case errors.As(err, &verr):
			c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error(), "fields": verr.Fields})
		case errors.Is(err, checkoutsvc.ErrSignInRequired):
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		case errors.Is(err, checkoutsvc.ErrEmptyCart):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			h.logger.Printf("checkout: create session: %v", err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "could not start checkout"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessionId": session.ID, "url": session.URL})
}

func (h *checkoutHandler) verify(c *gin.Context) {
	shopper, ok := requireShopper(c)
	if !ok {
		return
	}
	result, err := h.settlement.Verify(c.Request.Context(), shopper, c.Query("session_id"))
	if err != nil {
		h.logger.Printf("checkout: verify: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "verification failed"})
		return
	}
	c.JSON(http.StatusOK, result)
}
