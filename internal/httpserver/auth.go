package httpserver

import (
	"net/http"

	"commerce-backoffice/internal/service/auth"
	"github.com/gin-gonic/gin"
)

type tokenRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func signupHandler(svc authService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req auth.SignupInput
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		customer, err := svc.Signup(c.Request.Context(), req)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"customer": customer})
	}
}

func tokenHandler(svc authService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req tokenRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		session, err := svc.Login(c.Request.Context(), req.Email, req.Password)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, session)
	}
}
