package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"commerce-backoffice/internal/domain"
	custrepo "commerce-backoffice/internal/repository/customer"
	tokenrepo "commerce-backoffice/internal/repository/token"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidCredentials is returned when email/password do not match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidToken indicates the provided token could not be validated.
	ErrInvalidToken = errors.New("invalid token")
)

// Service handles signup, login and bearer token resolution.
type Service struct {
	repo        custrepo.Repository
	tokens      *tokenManager
	accessTTL   time.Duration
	refreshTTL  time.Duration
	passwordMin int
}

// New creates a Service with sane defaults.
func New(repo custrepo.Repository, tokens tokenrepo.Repository) *Service {
	return &Service{
		repo:        repo,
		tokens:      newTokenManager(tokens),
		accessTTL:   48 * time.Hour,
		refreshTTL:  30 * 24 * time.Hour,
		passwordMin: 8,
	}
}

// SignupInput captures fields expected by the signup endpoint.
type SignupInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// Session is what a successful login hands back to the client.
type Session struct {
	Customer     *domain.Customer `json:"customer"`
	AccessToken  string           `json:"access_token"`
	RefreshToken string           `json:"refresh_token"`
	ExpiresIn    int              `json:"expires_in"`
}

// Signup registers a new customer account.
func (s *Service) Signup(ctx context.Context, in SignupInput) (*domain.Customer, error) {
	email := strings.TrimSpace(strings.ToLower(in.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, domain.Invalid("valid email required")
	}
	password := strings.TrimSpace(in.Password)
	if err := validatePassword(password, s.passwordMin); err != nil {
		return nil, err
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	return s.repo.Create(ctx, domain.Customer{
		Email:        email,
		PasswordHash: string(hashed),
		Name:         strings.TrimSpace(in.Name),
		Role:         domain.RoleCustomer,
	})
}

// Login validates credentials and issues an access/refresh token pair.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	password = strings.TrimSpace(password)
	c, err := s.repo.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(c.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	access, err := s.tokens.Issue(ctx, c.ID, kindAccess, s.accessTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := s.tokens.Issue(ctx, c.ID, kindRefresh, s.refreshTTL)
	if err != nil {
		return nil, err
	}
	return &Session{
		Customer:     c,
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int(s.accessTTL.Seconds()),
	}, nil
}

// Identify resolves a bearer access token to the identity the order core
// trusts.
func (s *Service) Identify(ctx context.Context, token string) (domain.Identity, error) {
	meta, ok := s.tokens.Validate(ctx, token)
	if !ok {
		return domain.Identity{}, ErrInvalidToken
	}
	c, err := s.repo.GetByID(ctx, meta.CustomerID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Identity{}, ErrInvalidToken
		}
		return domain.Identity{}, err
	}
	return domain.Identity{UserID: c.ID, IsAdmin: c.Role == domain.RoleAdmin}, nil
}

// Promote grants the admin role to the customer with the given email.
func (s *Service) Promote(ctx context.Context, email string) (*domain.Customer, error) {
	c, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SetRole(ctx, c.ID, domain.RoleAdmin); err != nil {
		return nil, err
	}
	c.Role = domain.RoleAdmin
	return c, nil
}

// PurgeExpiredTokens deletes tokens past their expiry.
func (s *Service) PurgeExpiredTokens(ctx context.Context) (int64, error) {
	return s.tokens.repo.DeleteExpired(ctx, time.Now())
}

func validatePassword(p string, min int) error {
	trimmed := strings.TrimSpace(p)
	if len(trimmed) < min {
		return &domain.ValidationError{Msg: fmt.Sprintf("password must be at least %d characters", min)}
	}
	hasUpper := false
	hasLower := false
	hasDigit := false
	for _, r := range trimmed {
		switch {
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		case r >= 'a' && r <= 'z':
			hasLower = true
		case r >= '0' && r <= '9':
			hasDigit = true
		}
	}
	if !hasUpper || !hasLower || !hasDigit {
		return domain.Invalid("password must contain at least 1 uppercase letter, 1 lowercase letter, and 1 number")
	}
	return nil
}
