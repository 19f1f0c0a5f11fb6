package httpserver

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"lavenderlily/internal/domain"
	categorysvc "lavenderlily/internal/service/category"
	productsvc "lavenderlily/internal/service/product"
)

type catalogHandler struct {
	products   *productsvc.Service
	categories *categorysvc.Service
}

func (h *catalogHandler) listProducts(c *gin.Context) {
	categoryID := c.Query("category")
	if categoryID != "" {
		// Storefront links filter by slug; resolve it to the category
		// ID the products table references. An unresolved value is
		// passed through unchanged in case it already is an ID.
		cat, err := h.categories.GetBySlug(c.Request.Context(), categoryID)
		switch {
		case err == nil:
			categoryID = cat.ID
		case errors.Is(err, domain.ErrNotFound):
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list products"})
			return
		}
	}

	products, err := h.products.List(c.Request.Context(), categoryID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list products"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products})
}

// getProduct resolves by ID first and falls back to slug, so product
// pages can link either way.
func (h *catalogHandler) getProduct(c *gin.Context) {
	key := c.Param("id")
	product, err := h.products.Get(c.Request.Context(), key)
	if errors.Is(err, domain.ErrNotFound) {
		product, err = h.products.GetBySlug(c.Request.Context(), key)
	}
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load product"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"product": product})
}

func (h *catalogHandler) listCategories(c *gin.Context) {
	categories, err := h.categories.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list categories"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": categories})
}
