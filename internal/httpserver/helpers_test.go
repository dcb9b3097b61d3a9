package httpserver

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http/httptest"
	"strings"
	"testing"

	"commerce-backoffice/internal/domain"
	"commerce-backoffice/internal/events"
	"commerce-backoffice/internal/memstore"
	"commerce-backoffice/internal/metrics"
	"commerce-backoffice/internal/service/auth"
	cartsvc "commerce-backoffice/internal/service/cart"
	"commerce-backoffice/internal/service/checkout"
	couponsvc "commerce-backoffice/internal/service/coupon"
	ordersvc "commerce-backoffice/internal/service/order"
	paymentsvc "commerce-backoffice/internal/service/payment"
	productsvc "commerce-backoffice/internal/service/product"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func logDiscard() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// stubAuthSvc accepts "<token>" bearer values listed in identities.
type stubAuthSvc struct {
	identities map[string]domain.Identity
	customer   *domain.Customer
	signErr    error
	loginErr   error
}

func (s *stubAuthSvc) Signup(_ context.Context, _ auth.SignupInput) (*domain.Customer, error) {
	return s.customer, s.signErr
}

func (s *stubAuthSvc) Login(_ context.Context, _, _ string) (*auth.Session, error) {
	if s.loginErr != nil {
		return nil, s.loginErr
	}
	return &auth.Session{Customer: s.customer, AccessToken: "access", RefreshToken: "refresh", ExpiresIn: 3600}, nil
}

func (s *stubAuthSvc) Identify(_ context.Context, token string) (domain.Identity, error) {
	id, ok := s.identities[token]
	if !ok {
		return domain.Identity{}, auth.ErrInvalidToken
	}
	return id, nil
}

type testServer struct {
	store   *memstore.Store
	router  *gin.Engine
	metrics *metrics.Metrics
}

func newTestServer(t *testing.T, webhook WebhookConfig) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store := memstore.New()
	m := metrics.New("test")
	publisher := events.NewPublisher(store.OutboxRepo(), "order-events")
	coupons := couponsvc.New(store.Coupons(), nil)

	router, err := buildRouter(logDiscard(), nil, Deps{
		Auth: &stubAuthSvc{identities: map[string]domain.Identity{
			"alice": {UserID: "u1"},
			"bob":   {UserID: "u2"},
			"root":  {UserID: "admin", IsAdmin: true},
		}},
		Products: productsvc.New(store.Products()),
		Coupons:  coupons,
		Carts:    cartsvc.New(store.Carts(), store.Products(), coupons, nil),
		Checkout: checkout.New(checkout.Deps{
			Tx: store, Carts: store.Carts(), Products: store.Products(), Coupons: store.Coupons(),
			Orders: store.Orders(), Events: publisher, Metrics: m,
		}),
		Orders: ordersvc.New(ordersvc.Deps{
			Tx: store, Orders: store.Orders(), Products: store.Products(), Coupons: store.Coupons(), Events: publisher,
		}),
		Payments: paymentsvc.New(paymentsvc.Deps{
			Tx: store, Orders: store.Orders(), Journal: store.Payments(), Events: publisher, Metrics: m,
		}),
		Metrics: m,
		Webhook: webhook,
	})
	require.NoError(t, err)
	return &testServer{store: store, router: router, metrics: m}
}

func (s *testServer) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) product(t *testing.T, sku string, priceCents int64, stock int) domain.Product {
	t.Helper()
	p, err := s.store.Products().Upsert(context.Background(), domain.Product{SKU: sku, Name: sku, PriceCents: priceCents, Stock: stock})
	require.NoError(t, err)
	return *p
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func requireStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("expected %d, got %d body=%s", want, rec.Code, rec.Body.String())
	}
}

