package httpserver

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"lavenderlily/internal/domain"
	cartsvc "lavenderlily/internal/service/cart"
	customersvc "lavenderlily/internal/service/customer"
	guestsvc "lavenderlily/internal/service/guest"
)

const shopperKey = "shopper"

type customerAuth interface {
	LookupByToken(ctx context.Context, token string) (*domain.Customer, error)
}

type guestAuth interface {
	LookupByToken(ctx context.Context, token string) (string, error)
}

// shopperMiddleware resolves the Authorization bearer token into a
// Shopper. Customer tokens win over guest tokens; an absent or invalid
// token leaves an anonymous shopper, handlers decide what that means.
func shopperMiddleware(customers customerAuth, guests guestAuth) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.Next()
			return
		}
		if cust, err := customers.LookupByToken(c.Request.Context(), token); err == nil {
			c.Set(shopperKey, cartsvc.Shopper{UserID: cust.ID})
			c.Next()
			return
		}
		if guestID, err := guests.LookupByToken(c.Request.Context(), token); err == nil {
			c.Set(shopperKey, cartsvc.Shopper{GuestID: guestID})
		}
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func shopperFrom(c *gin.Context) cartsvc.Shopper {
	if v, ok := c.Get(shopperKey); ok {
		if shopper, ok := v.(cartsvc.Shopper); ok {
			return shopper
		}
	}
	return cartsvc.Shopper{}
}

type authHandler struct {
	customers *customersvc.Service
	guests    *guestsvc.Service
	cart      *cartsvc.Service
	logger    *log.Logger
}

type signupRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type customerResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
}

func toCustomerResponse(c *domain.Customer) customerResponse {
	return customerResponse{ID: c.ID, Email: c.Email, FirstName: c.FirstName, LastName: c.LastName}
}

func (h *authHandler) signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cust, err := h.customers.Signup(c.Request.Context(), customersvc.SignupInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			c.JSON(http.StatusConflict, gin.H{"error": "account already exists"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// New accounts are signed in immediately, so an in-progress guest
	// cart carries over the same way it does on login.
	_, token, err := h.customers.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		c.JSON(http.StatusCreated, gin.H{"customer": toCustomerResponse(cust)})
		return
	}
	h.mergeGuestCart(c, cust.ID)

	c.JSON(http.StatusCreated, gin.H{
		"customer":  toCustomerResponse(cust),
		"token":     token,
		"expiresIn": h.customers.AccessTTLSeconds(),
	})
}

func (h *authHandler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cust, token, err := h.customers.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, customersvc.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}
	h.mergeGuestCart(c, cust.ID)

	c.JSON(http.StatusOK, gin.H{
		"customer":  toCustomerResponse(cust),
		"token":     token,
		"expiresIn": h.customers.AccessTTLSeconds(),
	})
}

// mergeGuestCart folds the caller's guest cart into the account they
// just signed in to. It runs on a context detached from the request so
// a client disconnect cannot abandon the merge halfway.
func (h *authHandler) mergeGuestCart(c *gin.Context, userID string) {
	shopper := shopperFrom(c)
	if shopper.GuestID == "" {
		return
	}
	h.cart.SignIn(context.WithoutCancel(c.Request.Context()), shopper.GuestID, userID)
}

func (h *authHandler) logout(c *gin.Context) {
	if token := bearerToken(c); token != "" {
		h.customers.Logout(c.Request.Context(), token)
	}
	c.JSON(http.StatusOK, gin.H{"status": "signed out"})
}

func (h *authHandler) guest(c *gin.Context) {
	token, guestID, err := h.guests.Issue(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not start guest session"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token":     token,
		"guestId":   guestID,
		"expiresIn": h.guests.TokenTTLSeconds(),
	})
}
