package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"

	"lavenderlily/internal/config"
	"lavenderlily/internal/db"
	"lavenderlily/internal/httpserver"
	"lavenderlily/internal/payments/stripe"
	cartlinerepo "lavenderlily/internal/repository/cartline"
	categoryrepo "lavenderlily/internal/repository/category"
	customerrepo "lavenderlily/internal/repository/customer"
	"lavenderlily/internal/repository/guestcart"
	orderrepo "lavenderlily/internal/repository/order"
	productrepo "lavenderlily/internal/repository/product"
	tokenrepo "lavenderlily/internal/repository/token"
	cartsvc "lavenderlily/internal/service/cart"
	categorysvc "lavenderlily/internal/service/category"
	checkoutsvc "lavenderlily/internal/service/checkout"
	customersvc "lavenderlily/internal/service/customer"
	guestsvc "lavenderlily/internal/service/guest"
	productsvc "lavenderlily/internal/service/product"
	settlementsvc "lavenderlily/internal/service/settlement"
)

func main() {
	_ = godotenv.Load()
	cfg := config.FromEnv()
	logger := log.New(os.Stdout, "[api] ", log.LstdFlags|log.LUTC|log.Lshortfile)

	ctx := context.Background()
	dbpool, err := db.Connect(ctx, cfg.DBConnString)
	if err != nil {
		logger.Fatalf("connect to db: %v", err)
	}
	defer dbpool.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Printf("redis not reachable at startup: %v", err)
	}

	productRepo := productrepo.NewPostgres(dbpool, logger)
	categoryRepo := categoryrepo.NewPostgres(dbpool)
	cartLineRepo := cartlinerepo.NewPostgres(dbpool)
	orderRepo := orderrepo.NewPostgres(dbpool)
	customerRepo := customerrepo.NewPostgres(dbpool, logger)
	tokenRepo := tokenrepo.NewPostgres(dbpool)
	guestCarts := guestcart.NewRedis(rdb)

	notifier := cartsvc.NewNotifier(logger)
	notifier.AttachRedis(ctx, rdb)

	cartService := cartsvc.New(guestCarts, cartLineRepo, productRepo, notifier, logger)
	guestService := guestsvc.New()
	customerService := customersvc.New(customerRepo, tokenRepo)
	productService := productsvc.New(productRepo)
	categoryService := categorysvc.New(categoryRepo)

	provider, err := stripe.NewProvider(cfg.StripeSecretKey)
	if err != nil {
		logger.Fatalf("init stripe provider: %v", err)
	}
	checkoutService := checkoutsvc.New(cartService, productRepo, provider, checkoutsvc.Config{
		SuccessURL: cfg.CheckoutSuccessURL,
		CancelURL:  cfg.CheckoutCancelURL,
		Currency:   cfg.Currency,
	})
	settlementService := settlementsvc.New(orderRepo, cartService, provider, logger)

	srv := httpserver.New(cfg.HTTPAddr, logger, dbpool, rdb, httpserver.Deps{
		Customers:  customerService,
		Guests:     guestService,
		Cart:       cartService,
		Checkout:   checkoutService,
		Settlement: settlementService,
		Products:   productService,
		Categories: categoryService,
		Orders:     orderRepo,
	}, cfg.AllowedOrigins)

	serverErr := make(chan error, 1)
	go func() {
		logger.Printf("starting http server on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stopCh:
		logger.Printf("received signal %s, shutting down", sig)
	case err := <-serverErr:
		logger.Printf("server error: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Printf("graceful shutdown failed: %v", err)
	} else {
		logger.Printf("server stopped")
	}
}
