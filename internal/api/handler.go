package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"sweet-shop/internal/admin"
	"sweet-shop/internal/apierr"
	"sweet-shop/internal/catalog"
	"sweet-shop/internal/models"
	"sweet-shop/internal/purchase"
	"sweet-shop/internal/session"
	"sweet-shop/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// CartRepository keeps the cart snapshot of each browser session
type CartRepository interface {
	LoadCart(ctx context.Context, sid string) ([]models.CartLine, error)
	SaveCart(ctx context.Context, sid string, lines []models.CartLine) error
}

// ReceiptReader reads recorded receipts
type ReceiptReader interface {
	GetReceiptsBySessionID(ctx context.Context, sessionID string, limit int) ([]models.Receipt, error)
	GetReceiptByID(ctx context.Context, id string) (*models.Receipt, error)
	GetReceiptLines(ctx context.Context, receiptID string) ([]models.ReceiptLine, error)
}

// Toucher slides the expiry of a browser session's stored state
type Toucher interface {
	Touch(ctx context.Context, sid string) error
}

// Pinger is a dependency checked by the readiness probe
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators of Handler. Receipts, Toucher and Checks may be nil.
type Deps struct {
	Resolver     *session.Resolver
	Tokens       session.TokenStore
	Registrar    session.Registrar
	Carts        CartRepository
	Catalog      *catalog.View
	Purchases    *purchase.Transaction
	Admin        *admin.Service
	Receipts     ReceiptReader
	Toucher      Toucher
	Checks       map[string]Pinger
	SecureCookie bool
	SessionTTL   time.Duration
}

// Handler contains HTTP handlers
type Handler struct {
	Deps
	logger *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(deps Deps) *Handler {
	return &Handler{
		Deps:   deps,
		logger: util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	shop := router.Group("/", h.sessionMiddleware())
	{
		shop.POST("/auth/login", h.login)
		shop.POST("/auth/register", h.register)
		shop.POST("/auth/logout", h.logout)

		shop.GET("/catalog", h.getCatalog)

		shop.GET("/cart", h.getCart)
		shop.DELETE("/cart", h.clearCart)
		shop.POST("/cart/items/:id", h.addToCart)
		shop.POST("/cart/items/:id/increment", h.incrementLine)
		shop.POST("/cart/items/:id/decrement", h.decrementLine)
		shop.DELETE("/cart/items/:id", h.removeLine)
		shop.POST("/cart/checkout", h.checkout)

		shop.GET("/receipts", h.listReceipts)
		shop.GET("/receipts/:id", h.getReceipt)

		shop.POST("/admin/sweets", h.createSweet)
		shop.PUT("/admin/sweets/:id", h.updateSweet)
		shop.DELETE("/admin/sweets/:id", h.deleteSweet)
		shop.POST("/admin/sweets/:id/restock", h.restockSweet)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck pings every configured dependency
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	failed := gin.H{}
	for name, p := range h.Checks {
		if err := p.Ping(ctx); err != nil {
			failed[name] = err.Error()
		}
	}

	if len(failed) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"failed": failed,
			"time":   time.Now().Unix(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// statusFor maps an error kind onto the status returned to the browser
func statusFor(err error) int {
	switch apierr.KindOf(err) {
	case apierr.KindNotAuthenticated:
		return http.StatusUnauthorized
	case apierr.KindNotAuthorized:
		return http.StatusForbidden
	case apierr.KindNotFound:
		return http.StatusNotFound
	case apierr.KindStockExhausted:
		return http.StatusConflict
	case apierr.KindValidationFailed:
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}

func respondError(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{
		"error": apierr.Message(err),
		"kind":  apierr.KindOf(err),
	})
}

func productID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid product ID",
		})
		return 0, false
	}
	return id, true
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
