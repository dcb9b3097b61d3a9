package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"commerce-backoffice/internal/config"
	"commerce-backoffice/internal/db"
	"commerce-backoffice/internal/events"
	"commerce-backoffice/internal/httpserver"
	"commerce-backoffice/internal/metrics"
	cartrepo "commerce-backoffice/internal/repository/cart"
	couponrepo "commerce-backoffice/internal/repository/coupon"
	customerrepo "commerce-backoffice/internal/repository/customer"
	orderrepo "commerce-backoffice/internal/repository/order"
	outboxrepo "commerce-backoffice/internal/repository/outbox"
	paymentrepo "commerce-backoffice/internal/repository/payment"
	productrepo "commerce-backoffice/internal/repository/product"
	tokenrepo "commerce-backoffice/internal/repository/token"
	authsvc "commerce-backoffice/internal/service/auth"
	cartsvc "commerce-backoffice/internal/service/cart"
	checkoutsvc "commerce-backoffice/internal/service/checkout"
	couponsvc "commerce-backoffice/internal/service/coupon"
	ordersvc "commerce-backoffice/internal/service/order"
	paymentsvc "commerce-backoffice/internal/service/payment"
	productsvc "commerce-backoffice/internal/service/product"
)

func main() {
	cfg := config.FromEnv()
	logger := log.New(os.Stdout, "[api] ", log.LstdFlags|log.LUTC|log.Lshortfile)

	ctx := context.Background()
	dbpool, err := db.Connect(ctx, cfg.DBConnString, cfg.DBMaxConns)
	if err != nil {
		logger.Fatalf("connect to db: %v", err)
	}
	defer dbpool.Close()

	tx := db.NewTxManager(dbpool, cfg.TxMaxRetries, logger)
	m := metrics.New("api")
	publisher := events.NewPublisher(outboxrepo.NewPostgres(dbpool), cfg.KafkaTopic)

	productRepo := productrepo.NewPostgres(dbpool, logger)
	couponRepo := couponrepo.NewPostgres(dbpool, logger)
	cartRepo := cartrepo.NewPostgres(dbpool)
	orderRepo := orderrepo.NewPostgres(dbpool, logger)

	auth := authsvc.New(customerrepo.NewPostgres(dbpool, logger), tokenrepo.NewPostgres(dbpool))
	coupons := couponsvc.New(couponRepo, logger)

	if cfg.WebhookSecret == "" {
		logger.Printf("WEBHOOK_SECRET is empty, webhook signatures are not verified")
	}

	srv, err := httpserver.New(cfg.HTTPAddr, logger, dbpool, httpserver.Deps{
		Auth:     auth,
		Products: productsvc.New(productRepo),
		Coupons:  coupons,
		Carts:    cartsvc.New(cartRepo, productRepo, coupons, logger),
		Checkout: checkoutsvc.New(checkoutsvc.Deps{
			Tx:       tx,
			Carts:    cartRepo,
			Products: productRepo,
			Coupons:  couponRepo,
			Orders:   orderRepo,
			Events:   publisher,
			Pricing:  cfg.Pricing,
			Metrics:  m,
			Logger:   logger,
		}),
		Orders: ordersvc.New(ordersvc.Deps{
			Tx:       tx,
			Orders:   orderRepo,
			Products: productRepo,
			Coupons:  couponRepo,
			Events:   publisher,
			Logger:   logger,
		}),
		Payments: paymentsvc.New(paymentsvc.Deps{
			Tx:      tx,
			Orders:  orderRepo,
			Journal: paymentrepo.NewPostgres(dbpool, logger),
			Events:  publisher,
			Metrics: m,
			Logger:  logger,
		}),
		Metrics:            m,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		Webhook: httpserver.WebhookConfig{
			Secret:     cfg.WebhookSecret,
			AllowedIPs: cfg.WebhookAllowedIPs,
			RateLimit:  cfg.WebhookRateLimit,
		},
	})
	if err != nil {
		logger.Fatalf("init server: %v", err)
	}

	bgCtx, stopBackground := context.WithCancel(ctx)
	defer stopBackground()
	go purgeTokens(bgCtx, auth, logger)

	serverErr := make(chan error, 1)
	go func() {
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

// purgeTokens removes expired bearer tokens once an hour.
func purgeTokens(ctx context.Context, auth *authsvc.Service, logger *log.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := auth.PurgeExpiredTokens(ctx)
			if err != nil {
				logger.Printf("token purge failed: %v", err)
				continue
			}
			if n > 0 {
				logger.Printf("token purge: removed=%d", n)
			}
		}
	}
}
