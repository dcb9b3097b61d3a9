package httpserver

import (
	"net/http"

	"commerce-backoffice/internal/domain"
	"github.com/gin-gonic/gin"
)

func listProductsHandler(svc productService) gin.HandlerFunc {
	return func(c *gin.Context) {
		products, err := svc.List(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		if products == nil {
			products = []domain.Product{}
		}
		c.JSON(http.StatusOK, gin.H{"results": products, "count": len(products)})
	}
}

func getProductHandler(svc productService) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := svc.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, p)
	}
}

func upsertProductHandler(svc productService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req domain.Product
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		p, err := svc.Upsert(c.Request.Context(), req)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, p)
	}
}
