package httpserver

import (
	"fmt"
	"net/http"
	"strings"
	"testing"

	"commerce-backoffice/internal/domain"
	"github.com/stretchr/testify/require"
)

func TestBuildRouter_RequiresServices(t *testing.T) {
	_, err := buildRouter(logDiscard(), nil, Deps{})
	require.Error(t, err)
}

func TestHealthAndReady(t *testing.T) {
	s := newTestServer(t, WebhookConfig{})
	requireStatus(t, s.do(t, http.MethodGet, "/healthz", "", ""), http.StatusOK)
	requireStatus(t, s.do(t, http.MethodGet, "/readyz", "", ""), http.StatusServiceUnavailable)
}

func TestAuthMiddleware(t *testing.T) {
	s := newTestServer(t, WebhookConfig{})

	requireStatus(t, s.do(t, http.MethodGet, "/me/cart", "", ""), http.StatusUnauthorized)
	requireStatus(t, s.do(t, http.MethodGet, "/me/cart", "nobody", ""), http.StatusUnauthorized)
	requireStatus(t, s.do(t, http.MethodGet, "/me/cart", "alice", ""), http.StatusOK)

	requireStatus(t, s.do(t, http.MethodGet, "/admin/orders", "alice", ""), http.StatusForbidden)
	requireStatus(t, s.do(t, http.MethodGet, "/admin/orders", "root", ""), http.StatusOK)
}

func TestCheckoutFlow(t *testing.T) {
	s := newTestServer(t, WebhookConfig{})
	p := s.product(t, "BOOK", 5000, 10)

	rec := s.do(t, http.MethodPost, "/me/cart/items", "alice", fmt.Sprintf(`{"productId":%q,"quantity":3}`, p.ID))
	requireStatus(t, rec, http.StatusCreated)
	cart := decode[domain.Cart](t, rec)
	require.Equal(t, int64(15000), cart.TotalCents)

	rec = s.do(t, http.MethodPost, "/me/orders", "alice",
		`{"shippingAddress":{"fullName":"Ann Lee","street":"1 Main St","city":"Riga","country":"LV"},"paymentMethod":"card"}`)
	requireStatus(t, rec, http.StatusCreated)
	order := decode[domain.Order](t, rec)
	require.Equal(t, int64(20125), order.Pricing.TotalCents)
	require.Equal(t, domain.OrderPending, order.Status)
	require.Equal(t, 7, s.store.Product(p.ID).Stock)

	rec = s.do(t, http.MethodGet, "/me/cart", "alice", "")
	requireStatus(t, rec, http.StatusOK)
	require.Empty(t, decode[domain.Cart](t, rec).Lines)

	requireStatus(t, s.do(t, http.MethodGet, "/me/orders/"+order.ID, "alice", ""), http.StatusOK)
	requireStatus(t, s.do(t, http.MethodGet, "/me/orders/"+order.ID, "bob", ""), http.StatusNotFound)
	requireStatus(t, s.do(t, http.MethodPost, "/me/orders/"+order.ID+"/cancel", "bob", `{"reason":"mine now"}`), http.StatusForbidden)

	rec = s.do(t, http.MethodGet, "/me/orders", "alice", "")
	requireStatus(t, rec, http.StatusOK)
	require.Equal(t, 1, decode[struct{ Count int }](t, rec).Count)

	rec = s.do(t, http.MethodPost, "/me/orders/"+order.ID+"/cancel", "alice", `{"reason":"changed my mind"}`)
	requireStatus(t, rec, http.StatusOK)
	cancelled := decode[domain.Order](t, rec)
	require.Equal(t, domain.OrderCancelled, cancelled.Status)
	require.Equal(t, "changed my mind", cancelled.CancellationReason)
	require.Equal(t, 10, s.store.Product(p.ID).Stock)

	rec = s.do(t, http.MethodPost, "/me/orders/"+order.ID+"/cancel", "alice", "")
	requireStatus(t, rec, http.StatusConflict)
	require.Contains(t, rec.Body.String(), `"from":"cancelled"`)

	rec = s.do(t, http.MethodGet, "/me/orders/"+order.ID+"/history", "alice", "")
	requireStatus(t, rec, http.StatusOK)
	require.Len(t, decode[struct{ Results []domain.StatusChange }](t, rec).Results, 2)
}

func TestCheckout_InsufficientStock(t *testing.T) {
	s := newTestServer(t, WebhookConfig{})
	p := s.product(t, "MUG", 1000, 2)

	requireStatus(t, s.do(t, http.MethodPost, "/me/cart/items", "alice", fmt.Sprintf(`{"productId":%q,"quantity":2}`, p.ID)), http.StatusCreated)
	requireStatus(t, s.do(t, http.MethodPost, "/me/cart/items", "bob", fmt.Sprintf(`{"productId":%q,"quantity":2}`, p.ID)), http.StatusCreated)

	body := `{"shippingAddress":{"fullName":"A","street":"S","city":"C","country":"LV"},"paymentMethod":"cash_on_delivery"}`
	requireStatus(t, s.do(t, http.MethodPost, "/me/orders", "alice", body), http.StatusCreated)

	rec := s.do(t, http.MethodPost, "/me/orders", "bob", body)
	requireStatus(t, rec, http.StatusConflict)
	require.Contains(t, rec.Body.String(), "insufficient stock for MUG, only 0 available")
	require.Contains(t, rec.Body.String(), p.ID)
}

func TestCheckout_Validation(t *testing.T) {
	s := newTestServer(t, WebhookConfig{})
	rec := s.do(t, http.MethodPost, "/me/orders", "alice", `{"shippingAddress":{},"paymentMethod":"card"}`)
	requireStatus(t, rec, http.StatusBadRequest)
	requireStatus(t, s.do(t, http.MethodPost, "/me/orders", "alice", `{`), http.StatusBadRequest)
}

func TestAdminOrderLifecycle(t *testing.T) {
	s := newTestServer(t, WebhookConfig{})
	p := s.product(t, "LAMP", 30000, 5)
	requireStatus(t, s.do(t, http.MethodPost, "/me/cart/items", "alice", fmt.Sprintf(`{"productId":%q,"quantity":1}`, p.ID)), http.StatusCreated)
	rec := s.do(t, http.MethodPost, "/me/orders", "alice",
		`{"shippingAddress":{"fullName":"A","street":"S","city":"C","country":"LV"},"paymentMethod":"bank_transfer"}`)
	requireStatus(t, rec, http.StatusCreated)
	order := decode[domain.Order](t, rec)

	rec = s.do(t, http.MethodPatch, "/admin/orders/"+order.ID+"/status", "root", `{"status":"shipped"}`)
	requireStatus(t, rec, http.StatusConflict)

	rec = s.do(t, http.MethodPatch, "/admin/orders/"+order.ID+"/payment", "root", `{"status":"paid","transactionId":"tx-1","paidAmount":300.5}`)
	requireStatus(t, rec, http.StatusOK)
	paid := decode[domain.Order](t, rec)
	require.Equal(t, domain.PaymentPaid, paid.PaymentStatus)
	require.Equal(t, domain.OrderConfirmed, paid.Status)
	require.Equal(t, int64(30050), paid.PaymentResult.PaidCents)

	for _, next := range []string{"processing", "shipped", "delivered"} {
		rec = s.do(t, http.MethodPatch, "/admin/orders/"+order.ID+"/status", "root", fmt.Sprintf(`{"status":%q,"note":"ok"}`, next))
		requireStatus(t, rec, http.StatusOK)
	}
	requireStatus(t, s.do(t, http.MethodPost, "/admin/orders/"+order.ID+"/cancel", "root", `{}`), http.StatusConflict)

	requireStatus(t, s.do(t, http.MethodPatch, "/admin/orders/"+order.ID+"/status", "root", `{"status":"lost"}`), http.StatusBadRequest)
	requireStatus(t, s.do(t, http.MethodPatch, "/admin/orders/missing/status", "root", `{"status":"confirmed"}`), http.StatusNotFound)

	rec = s.do(t, http.MethodGet, "/admin/orders?status=delivered&userId=u1", "root", "")
	requireStatus(t, rec, http.StatusOK)
	require.Equal(t, 1, decode[struct{ Count int }](t, rec).Count)

	requireStatus(t, s.do(t, http.MethodGet, "/admin/orders?from=yesterday", "root", ""), http.StatusBadRequest)
	requireStatus(t, s.do(t, http.MethodGet, "/admin/orders?limit=ten", "root", ""), http.StatusBadRequest)
}

func TestAdminCatalog(t *testing.T) {
	s := newTestServer(t, WebhookConfig{})

	rec := s.do(t, http.MethodPut, "/admin/products", "root", `{"sku":"PEN","name":"Pen","priceCents":250,"stock":40}`)
	requireStatus(t, rec, http.StatusOK)
	p := decode[domain.Product](t, rec)
	require.Equal(t, domain.ProductActive, p.Status)

	requireStatus(t, s.do(t, http.MethodPut, "/admin/products", "root", `{"sku":"","name":"Pen"}`), http.StatusBadRequest)
	requireStatus(t, s.do(t, http.MethodPut, "/admin/products", "alice", `{"sku":"X","name":"X"}`), http.StatusForbidden)

	rec = s.do(t, http.MethodGet, "/products", "", "")
	requireStatus(t, rec, http.StatusOK)
	require.Equal(t, 1, decode[struct{ Count int }](t, rec).Count)
	requireStatus(t, s.do(t, http.MethodGet, "/products/"+p.ID, "", ""), http.StatusOK)
	requireStatus(t, s.do(t, http.MethodGet, "/products/nope", "", ""), http.StatusNotFound)

	rec = s.do(t, http.MethodPut, "/admin/coupons", "root", `{"code":"save10","discount":10,"expiredAt":"2999-01-01T00:00:00Z"}`)
	requireStatus(t, rec, http.StatusOK)
	require.True(t, strings.Contains(rec.Body.String(), "SAVE10"), rec.Body.String())

	requireStatus(t, s.do(t, http.MethodPost, "/me/cart/items", "alice", fmt.Sprintf(`{"productId":%q,"quantity":4}`, p.ID)), http.StatusCreated)
	rec = s.do(t, http.MethodPost, "/me/cart/coupon", "alice", `{"code":"save10"}`)
	requireStatus(t, rec, http.StatusOK)
	require.Equal(t, int64(900), decode[domain.Cart](t, rec).TotalAfterDiscountCents)

	requireStatus(t, s.do(t, http.MethodPost, "/me/cart/coupon", "alice", `{"code":"nope"}`), http.StatusBadRequest)
	requireStatus(t, s.do(t, http.MethodDelete, "/me/cart/coupon", "alice", ""), http.StatusOK)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, WebhookConfig{})
	s.do(t, http.MethodGet, "/healthz", "", "")

	rec := s.do(t, http.MethodGet, "/metrics", "", "")
	requireStatus(t, rec, http.StatusOK)
	require.Contains(t, rec.Body.String(), `commerce_test_http_requests_total{handler="/healthz",status="200"} 1`)
}
