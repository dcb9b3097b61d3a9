package httpserver

import (
	"context"
	"errors"
	"io"
	"log"
	"time"

	"commerce-backoffice/internal/domain"
	"commerce-backoffice/internal/metrics"
	"commerce-backoffice/internal/service/auth"
	"commerce-backoffice/internal/service/cart"
	"commerce-backoffice/internal/service/coupon"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
)

type authService interface {
	Signup(ctx context.Context, in auth.SignupInput) (*domain.Customer, error)
	Login(ctx context.Context, email, password string) (*auth.Session, error)
	Identify(ctx context.Context, token string) (domain.Identity, error)
}

type productService interface {
	List(ctx context.Context) ([]domain.Product, error)
	Get(ctx context.Context, id string) (*domain.Product, error)
	Upsert(ctx context.Context, p domain.Product) (*domain.Product, error)
}

type couponService interface {
	Upsert(ctx context.Context, in coupon.UpsertInput) (*domain.Coupon, error)
}

type cartService interface {
	Get(ctx context.Context, userID string) (*domain.Cart, error)
	AddItem(ctx context.Context, userID string, in cart.AddItemInput) (*domain.Cart, error)
	UpdateItem(ctx context.Context, userID, lineID string, quantity int) (*domain.Cart, error)
	RemoveItem(ctx context.Context, userID, lineID string) (*domain.Cart, error)
	Clear(ctx context.Context, userID string) (*domain.Cart, error)
	ApplyCoupon(ctx context.Context, userID, code string) (*domain.Cart, error)
	RemoveCoupon(ctx context.Context, userID string) (*domain.Cart, error)
}

type checkoutService interface {
	CreateOrder(ctx context.Context, userID string, address domain.ShippingAddress, method domain.PaymentMethod) (*domain.Order, error)
}

type orderService interface {
	Get(ctx context.Context, actor domain.Identity, id string) (*domain.Order, error)
	List(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error)
	History(ctx context.Context, actor domain.Identity, id string) ([]domain.StatusChange, error)
	UpdateStatus(ctx context.Context, actor domain.Identity, orderID string, next domain.OrderStatus, note string) (*domain.Order, error)
	Cancel(ctx context.Context, actor domain.Identity, orderID, reason string) (*domain.Order, error)
}

type paymentService interface {
	HandleWebhook(ctx context.Context, payload domain.GatewayPayload) (*domain.Order, error)
	UpdatePaymentStatus(ctx context.Context, orderID string, update domain.PaymentUpdate) (*domain.Order, error)
}

// Deps groups the services the router dispatches to.
type Deps struct {
	Auth     authService
	Products productService
	Coupons  couponService
	Carts    cartService
	Checkout checkoutService
	Orders   orderService
	Payments paymentService
	Metrics  *metrics.Metrics

	CORSAllowedOrigins []string
	Webhook            WebhookConfig
}

func (d Deps) validate() error {
	switch {
	case d.Auth == nil:
		return errors.New("httpserver: auth service required")
	case d.Products == nil, d.Coupons == nil:
		return errors.New("httpserver: catalog services required")
	case d.Carts == nil, d.Checkout == nil:
		return errors.New("httpserver: cart and checkout services required")
	case d.Orders == nil, d.Payments == nil:
		return errors.New("httpserver: order and payment services required")
	}
	return nil
}

// buildRouter wires routes for the API.
func buildRouter(logger *log.Logger, db *pgxpool.Pool, deps Deps) (*gin.Engine, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.LoggerWithWriter(logger.Writer()), gin.Recovery(), deps.Metrics.Middleware())
	if len(deps.CORSAllowedOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     deps.CORSAllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(db))
	router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))

	router.POST("/auth/signup", signupHandler(deps.Auth))
	router.POST("/auth/token", tokenHandler(deps.Auth))

	router.GET("/products", listProductsHandler(deps.Products))
	router.GET("/products/:id", getProductHandler(deps.Products))

	me := router.Group("/me", authMiddleware(deps.Auth))
	me.GET("/cart", getCartHandler(deps.Carts))
	me.DELETE("/cart", clearCartHandler(deps.Carts))
	me.POST("/cart/items", addCartItemHandler(deps.Carts))
	me.PATCH("/cart/items/:lineId", updateCartItemHandler(deps.Carts))
	me.DELETE("/cart/items/:lineId", removeCartItemHandler(deps.Carts))
	me.POST("/cart/coupon", applyCouponHandler(deps.Carts))
	me.DELETE("/cart/coupon", removeCouponHandler(deps.Carts))

	me.POST("/orders", createOrderHandler(deps.Checkout))
	me.GET("/orders", listMyOrdersHandler(deps.Orders))
	me.GET("/orders/:id", getOrderHandler(deps.Orders))
	me.GET("/orders/:id/history", orderHistoryHandler(deps.Orders))
	me.POST("/orders/:id/cancel", cancelOrderHandler(deps.Orders))

	admin := router.Group("/admin", authMiddleware(deps.Auth), requireAdmin())
	admin.GET("/orders", listOrdersHandler(deps.Orders))
	admin.GET("/orders/:id", getOrderHandler(deps.Orders))
	admin.GET("/orders/:id/history", orderHistoryHandler(deps.Orders))
	admin.PATCH("/orders/:id/status", updateOrderStatusHandler(deps.Orders))
	admin.PATCH("/orders/:id/payment", updatePaymentHandler(deps.Payments))
	admin.POST("/orders/:id/cancel", cancelOrderHandler(deps.Orders))
	admin.PUT("/products", upsertProductHandler(deps.Products))
	admin.PUT("/coupons", upsertCouponHandler(deps.Coupons))

	router.POST("/webhooks/payments", webhookGuard(deps.Webhook, logger), paymentWebhookHandler(deps.Payments))

	return router, nil
}
