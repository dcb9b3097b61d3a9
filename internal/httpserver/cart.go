package httpserver

import (
	"net/http"

	"commerce-backoffice/internal/domain"
	"commerce-backoffice/internal/service/cart"
	"github.com/gin-gonic/gin"
)

type updateItemRequest struct {
	Quantity int `json:"quantity"`
}

type couponRequest struct {
	Code string `json:"code" binding:"required"`
}

func getCartHandler(svc cartService) gin.HandlerFunc {
	return func(c *gin.Context) {
		writeCart(c, http.StatusOK)(svc.Get(c.Request.Context(), identity(c).UserID))
	}
}

func clearCartHandler(svc cartService) gin.HandlerFunc {
	return func(c *gin.Context) {
		writeCart(c, http.StatusOK)(svc.Clear(c.Request.Context(), identity(c).UserID))
	}
}

func addCartItemHandler(svc cartService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req cart.AddItemInput
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		writeCart(c, http.StatusCreated)(svc.AddItem(c.Request.Context(), identity(c).UserID, req))
	}
}

func updateCartItemHandler(svc cartService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req updateItemRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		writeCart(c, http.StatusOK)(svc.UpdateItem(c.Request.Context(), identity(c).UserID, c.Param("lineId"), req.Quantity))
	}
}

func removeCartItemHandler(svc cartService) gin.HandlerFunc {
	return func(c *gin.Context) {
		writeCart(c, http.StatusOK)(svc.RemoveItem(c.Request.Context(), identity(c).UserID, c.Param("lineId")))
	}
}

func applyCouponHandler(svc cartService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req couponRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		writeCart(c, http.StatusOK)(svc.ApplyCoupon(c.Request.Context(), identity(c).UserID, req.Code))
	}
}

func removeCouponHandler(svc cartService) gin.HandlerFunc {
	return func(c *gin.Context) {
		writeCart(c, http.StatusOK)(svc.RemoveCoupon(c.Request.Context(), identity(c).UserID))
	}
}

func writeCart(c *gin.Context, status int) func(*domain.Cart, error) {
	return func(current *domain.Cart, err error) {
		if err != nil {
			respondError(c, err)
			return
		}
		if current.Lines == nil {
			current.Lines = []domain.CartLine{}
		}
		c.JSON(status, current)
	}
}
