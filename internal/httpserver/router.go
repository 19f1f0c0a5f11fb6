package httpserver

import (
	"log"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"

	cartsvc "lavenderlily/internal/service/cart"
	categorysvc "lavenderlily/internal/service/category"
	checkoutsvc "lavenderlily/internal/service/checkout"
	customersvc "lavenderlily/internal/service/customer"
	guestsvc "lavenderlily/internal/service/guest"
	productsvc "lavenderlily/internal/service/product"
	settlementsvc "lavenderlily/internal/service/settlement"
)

// Deps carries the services the router exposes. Every dependency is
// passed in explicitly; handlers hold no globals.
type Deps struct {
	Customers  *customersvc.Service
	Guests     *guestsvc.Service
	Cart       *cartsvc.Service
	Checkout   *checkoutsvc.Service
	Settlement *settlementsvc.Service
	Products   *productsvc.Service
	Categories *categorysvc.Service
	Orders     orderLister
}

// buildRouter wires routes for the API.
func buildRouter(logger *log.Logger, db *pgxpool.Pool, rdb *redis.Client, deps Deps, allowedOrigins []string) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.LoggerWithWriter(logger.Writer()), gin.Recovery())

	corsCfg := cors.DefaultConfig()
	if len(allowedOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = allowedOrigins
	}
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "Authorization")
	corsCfg.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsCfg))

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(db, rdb))

	auth := &authHandler{customers: deps.Customers, guests: deps.Guests, cart: deps.Cart, logger: logger}
	cart := &cartHandler{cart: deps.Cart, logger: logger}
	checkout := &checkoutHandler{checkout: deps.Checkout, settlement: deps.Settlement, logger: logger}
	catalog := &catalogHandler{products: deps.Products, categories: deps.Categories}
	orders := &ordersHandler{orders: deps.Orders}

	api := router.Group("/api")
	api.Use(shopperMiddleware(deps.Customers, deps.Guests))
	{
		api.POST("/auth/signup", auth.signup)
		api.POST("/auth/login", auth.login)
		api.POST("/auth/logout", auth.logout)
		api.POST("/auth/guest", auth.guest)

		api.GET("/products", catalog.listProducts)
		api.GET("/products/:id", catalog.getProduct)
		api.GET("/categories", catalog.listCategories)

		api.GET("/cart", cart.get)
		api.POST("/cart/lines", cart.addLine)
		api.PATCH("/cart/lines/:id", cart.setQuantity)
		api.DELETE("/cart/lines/:id", cart.removeLine)
		api.DELETE("/cart", cart.clear)
		api.GET("/cart/events", cart.events)

		api.POST("/checkout/session", checkout.createSession)
		api.GET("/checkout/verify", checkout.verify)

		api.GET("/orders", orders.list)
	}

	return router
}
