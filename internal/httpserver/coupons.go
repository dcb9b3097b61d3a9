package httpserver

import (
	"net/http"

	"commerce-backoffice/internal/service/coupon"
	"github.com/gin-gonic/gin"
)

func upsertCouponHandler(svc couponService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req coupon.UpsertInput
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		cp, err := svc.Upsert(c.Request.Context(), req)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, cp)
	}
}
