package httpserver

import (
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"lavenderlily/internal/domain"
	cartsvc "lavenderlily/internal/service/cart"
)

type cartHandler struct {
	cart   *cartsvc.Service
	logger *log.Logger
}

type cartLineResponse struct {
	ID             string `json:"id"`
	ProductID      string `json:"productId"`
	Name           string `json:"name"`
	Slug           string `json:"slug"`
	ImageURL       string `json:"imageUrl,omitempty"`
	Size           string `json:"size,omitempty"`
	Color          string `json:"color,omitempty"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unitPriceCents"`
	TotalCents     int64  `json:"totalCents"`
}

type cartResponse struct {
	Lines         []cartLineResponse `json:"lines"`
	Count         int                `json:"count"`
	SubtotalCents int64              `json:"subtotalCents"`
}

func toCartResponse(lines []domain.DisplayLine) cartResponse {
	resp := cartResponse{Lines: make([]cartLineResponse, 0, len(lines))}
	for _, line := range lines {
		resp.Lines = append(resp.Lines, cartLineResponse{
			ID:             line.ID,
			ProductID:      line.ProductID,
			Name:           line.ProductName,
			Slug:           line.ProductSlug,
			ImageURL:       line.ImageURL,
			Size:           line.Variant.Size,
			Color:          line.Variant.Color,
			Quantity:       line.Quantity,
			UnitPriceCents: line.UnitPriceCents,
			TotalCents:     line.TotalCents,
		})
		resp.Count += line.Quantity
		resp.SubtotalCents += line.TotalCents
	}
	return resp
}

// requireShopper rejects requests that resolved to neither a customer
// nor a guest session.
func requireShopper(c *gin.Context) (cartsvc.Shopper, bool) {
	shopper := shopperFrom(c)
	if shopper.UserID == "" && shopper.GuestID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "guest or customer session required"})
		return shopper, false
	}
	return shopper, true
}

func cartError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "line not found"})
	case errors.Is(err, domain.ErrUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "cart temporarily unavailable"})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	}
}

func (h *cartHandler) get(c *gin.Context) {
	shopper, ok := requireShopper(c)
	if !ok {
		return
	}
	lines, err := h.cart.Lines(c.Request.Context(), shopper)
	if err != nil {
		cartError(c, err)
		return
	}
	c.JSON(http.StatusOK, toCartResponse(lines))
}

type addLineRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
	Size      string `json:"size"`
	Color     string `json:"color"`
}

func (h *cartHandler) addLine(c *gin.Context) {
	shopper, ok := requireShopper(c)
	if !ok {
		return
	}
	var req addLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	variant := domain.Variant{Size: req.Size, Color: req.Color}
	if err := h.cart.AddLine(c.Request.Context(), shopper, req.ProductID, req.Quantity, variant); err != nil {
		cartError(c, err)
		return
	}
	lines, err := h.cart.Lines(c.Request.Context(), shopper)
	if err != nil {
		cartError(c, err)
		return
	}
	c.JSON(http.StatusOK, toCartResponse(lines))
}

type setQuantityRequest struct {
	Quantity int `json:"quantity"`
}

func (h *cartHandler) setQuantity(c *gin.Context) {
	shopper, ok := requireShopper(c)
	if !ok {
		return
	}
	var req setQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.cart.SetQuantity(c.Request.Context(), shopper, c.Param("id"), req.Quantity); err != nil {
		cartError(c, err)
		return
	}
	lines, err := h.cart.Lines(c.Request.Context(), shopper)
	if err != nil {
		cartError(c, err)
		return
	}
	c.JSON(http.StatusOK, toCartResponse(lines))
}

func (h *cartHandler) removeLine(c *gin.Context) {
	shopper, ok := requireShopper(c)
	if !ok {
		return
	}
	if err := h.cart.RemoveLine(c.Request.Context(), shopper, c.Param("id")); err != nil {
		cartError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *cartHandler) clear(c *gin.Context) {
	shopper, ok := requireShopper(c)
	if !ok {
		return
	}
	if err := h.cart.Clear(c.Request.Context(), shopper); err != nil {
		cartError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// events streams cart change notifications for the caller's own cart
// as server-sent events, so every open tab converges on the same cart
// without polling.
func (h *cartHandler) events(c *gin.Context) {
	shopper, ok := requireShopper(c)
	if !ok {
		return
	}
	owner := shopper.Key()

	events, cancel := h.cart.Subscribe()
	defer cancel()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	c.Stream(func(w io.Writer) bool {
		select {
		case ev, open := <-events:
			if !open {
				return false
			}
			if ev.Owner != owner {
				return true
			}
			c.SSEvent("cart", ev)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
