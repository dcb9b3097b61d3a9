package httpserver

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"commerce-backoffice/internal/domain"
	"commerce-backoffice/internal/service/auth"
	"github.com/gin-gonic/gin"
)

func authRouter(t *testing.T, svc *stubAuthSvc) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/auth/signup", signupHandler(svc))
	router.POST("/auth/token", tokenHandler(svc))
	return router
}

func TestSignupHandler_Created(t *testing.T) {
	router := authRouter(t, &stubAuthSvc{
		customer: &domain.Customer{ID: "cust-id", Email: "user@example.com", Role: domain.RoleCustomer},
	})

	body := `{"email":"user@example.com","password":"Abcdefg1","name":"User"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/signup", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"email":"user@example.com"`) {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), "password") {
		t.Fatalf("password hash leaked: %s", rec.Body.String())
	}
}

func TestSignupHandler_Duplicate(t *testing.T) {
	router := authRouter(t, &stubAuthSvc{signErr: domain.ErrAlreadyExists})

	req := httptest.NewRequest(http.MethodPost, "/auth/signup", strings.NewReader(`{"email":"a@b.c","password":"Abcdefg1"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestTokenHandler_InvalidCredentials(t *testing.T) {
	router := authRouter(t, &stubAuthSvc{loginErr: auth.ErrInvalidCredentials})

	req := httptest.NewRequest(http.MethodPost, "/auth/token", strings.NewReader(`{"email":"user@example.com","password":"badpass"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestTokenHandler_Success(t *testing.T) {
	router := authRouter(t, &stubAuthSvc{customer: &domain.Customer{ID: "cust-id", Email: "me@example.com"}})

	req := httptest.NewRequest(http.MethodPost, "/auth/token", strings.NewReader(`{"email":"me@example.com","password":"Abcdefg1"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"access_token":"access"`) {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestTokenHandler_MissingFields(t *testing.T) {
	router := authRouter(t, &stubAuthSvc{})

	req := httptest.NewRequest(http.MethodPost, "/auth/token", strings.NewReader(`{"email":"me@example.com"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d body=%s", rec.Code, rec.Body.String())
	}
}
