package httpserver

import (
	"errors"
	"net/http"

	"commerce-backoffice/internal/domain"
	"commerce-backoffice/internal/service/auth"
	"github.com/gin-gonic/gin"
)

// statusFor maps the domain error taxonomy to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInsufficientStock),
		errors.Is(err, domain.ErrIllegalTransition),
		errors.Is(err, domain.ErrConflict),
		errors.Is(err, domain.ErrAlreadyExists):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// respondError writes err as a JSON body. Unexpected errors are attached to
// the gin context so the request logger prints the cause, and the client only
// sees a generic message.
func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		var serverErr *domain.ServerError
		if !errors.As(err, &serverErr) {
			c.AbortWithStatusJSON(status, gin.H{"error": "internal error"})
			return
		}
	}

	body := gin.H{"error": err.Error()}
	var stockErr *domain.InsufficientStockError
	if errors.As(err, &stockErr) {
		body["productId"] = stockErr.ProductID
		body["available"] = stockErr.Available
	}
	var transitionErr *domain.IllegalTransitionError
	if errors.As(err, &transitionErr) {
		body["from"] = transitionErr.From
		body["to"] = transitionErr.To
	}
	c.AbortWithStatusJSON(status, body)
}

func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
