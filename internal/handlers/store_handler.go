package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/MdanzDev/nickstore/internal/fulfillment"
	"github.com/MdanzDev/nickstore/internal/store"
	"github.com/MdanzDev/nickstore/internal/validation"
)

// HandlerConfig groups dependencies for the store routes.
type HandlerConfig struct {
	Manager *store.Manager
	// WhatsApp, when set, adds the order deep link to checkout responses.
	WhatsApp *fulfillment.WhatsApp
}

// RegisterStoreRoutes registers cart, checkout, history, theme and status routes.
func RegisterStoreRoutes(r *gin.Engine, cfg HandlerConfig) {
	v := validation.New()
	m := cfg.Manager

	r.GET("/cart", func(c *gin.Context) {
		snap := m.Snapshot()
		c.JSON(http.StatusOK, gin.H{
			"items": snap.Cart,
			"count": snap.CartCount,
			"total": snap.CartTotal,
		})
	})

	r.POST("/cart/items", func(c *gin.Context) {
		var req validation.AddToCartRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			// BindAndValidate already wrote a 400
			return
		}
		id := m.AddToCart(req.Item())
		c.JSON(http.StatusCreated, gin.H{"id": id})
	})

	r.DELETE("/cart/items/:id", func(c *gin.Context) {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_item_id"})
			return
		}
		// removing an unknown id is a no-op
		m.RemoveFromCart(id)
		c.Status(http.StatusNoContent)
	})

	r.DELETE("/cart", func(c *gin.Context) {
		m.ClearCart()
		c.Status(http.StatusNoContent)
	})

	r.POST("/checkout", func(c *gin.Context) {
		orderID, err := m.Checkout(c.Request.Context())
		if orderID == "" && err == nil {
			c.JSON(http.StatusConflict, gin.H{"error": "cart_empty"})
			return
		}
		if err != nil && !errors.Is(err, store.ErrHandoffFailed) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "checkout_failed", "detail": err.Error()})
			return
		}

		order, _ := m.Order(orderID)
		body := gin.H{"order_id": orderID, "total": order.Total, "status": order.Status}
		if cfg.WhatsApp != nil {
			body["link"] = cfg.WhatsApp.Link(fulfillment.NewPayload(order))
		}
		if err != nil {
			// the order is recorded either way; the client can retry the handoff
			body["handoff_error"] = err.Error()
		}
		c.Header("Location", "/history/"+orderID)
		c.JSON(http.StatusCreated, body)
	})

	r.GET("/history", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"orders": m.History()})
	})

	r.GET("/history/:id", func(c *gin.Context) {
		order, ok := m.Order(c.Param("id"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "order_not_found"})
			return
		}
		c.JSON(http.StatusOK, order)
	})

	r.DELETE("/history", func(c *gin.Context) {
		m.ClearHistory()
		c.Status(http.StatusNoContent)
	})

	r.GET("/theme", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"theme": m.Theme()})
	})

	r.PUT("/theme", func(c *gin.Context) {
		var req validation.ThemeRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			return
		}
		theme, _ := store.ParseTheme(req.Theme)
		if err := m.SetTheme(theme); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_theme"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"theme": theme})
	})

	r.GET("/status", func(c *gin.Context) {
		body := gin.H{"loaded": m.Loaded(), "degraded": m.Degraded()}
		if err := m.PersistErr(); err != nil {
			body["persist_error"] = err.Error()
		}
		c.JSON(http.StatusOK, body)
	})
}
