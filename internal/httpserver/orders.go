package httpserver

import (
	"net/http"
	"strconv"
	"time"

	"commerce-backoffice/internal/domain"
	"github.com/gin-gonic/gin"
)

type createOrderRequest struct {
	ShippingAddress domain.ShippingAddress `json:"shippingAddress"`
	PaymentMethod   domain.PaymentMethod   `json:"paymentMethod"`
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
	Note   string `json:"note"`
}

func createOrderHandler(svc checkoutService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		o, err := svc.CreateOrder(c.Request.Context(), identity(c).UserID, req.ShippingAddress, req.PaymentMethod)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, o)
	}
}

func getOrderHandler(svc orderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		o, err := svc.Get(c.Request.Context(), identity(c), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, o)
	}
}

func orderHistoryHandler(svc orderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		changes, err := svc.History(c.Request.Context(), identity(c), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		if changes == nil {
			changes = []domain.StatusChange{}
		}
		c.JSON(http.StatusOK, gin.H{"results": changes})
	}
}

func listMyOrdersHandler(svc orderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		filter, err := orderFilterFromQuery(c)
		if err != nil {
			respondError(c, err)
			return
		}
		filter.UserID = identity(c).UserID
		writeOrders(c, filter, svc)
	}
}

func listOrdersHandler(svc orderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		filter, err := orderFilterFromQuery(c)
		if err != nil {
			respondError(c, err)
			return
		}
		filter.UserID = c.Query("userId")
		writeOrders(c, filter, svc)
	}
}

func writeOrders(c *gin.Context, filter domain.OrderFilter, svc orderService) {
	orders, err := svc.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	c.JSON(http.StatusOK, gin.H{"results": orders, "count": len(orders), "offset": filter.Offset})
}

func cancelOrderHandler(svc orderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req cancelRequest
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				badRequest(c, err)
				return
			}
		}
		o, err := svc.Cancel(c.Request.Context(), identity(c), c.Param("id"), req.Reason)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, o)
	}
}

func updateOrderStatusHandler(svc orderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req statusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		o, err := svc.UpdateStatus(c.Request.Context(), identity(c), c.Param("id"), domain.OrderStatus(req.Status), req.Note)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, o)
	}
}

// orderFilterFromQuery reads status, from, to (RFC 3339), limit and offset.
func orderFilterFromQuery(c *gin.Context) (domain.OrderFilter, error) {
	var f domain.OrderFilter
	if raw := c.Query("status"); raw != "" {
		f.Status = domain.OrderStatus(raw)
	}
	for _, q := range []struct {
		name string
		dst  **time.Time
	}{{"from", &f.From}, {"to", &f.To}} {
		raw := c.Query(q.name)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return f, domain.Invalid("%s must be an RFC 3339 timestamp", q.name)
		}
		*q.dst = &t
	}
	var err error
	if f.Limit, err = intQuery(c, "limit"); err != nil {
		return f, err
	}
	if f.Offset, err = intQuery(c, "offset"); err != nil {
		return f, err
	}
	return f, nil
}

func intQuery(c *gin.Context, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.Invalid("%s must be an integer", name)
	}
	return n, nil
}
