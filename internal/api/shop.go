package api

import (
	"errors"
	"net/http"
	"net/url"

	"sweet-shop/internal/apierr"
	"sweet-shop/internal/cart"
	"sweet-shop/internal/catalog"
	"sweet-shop/internal/filter"
	"sweet-shop/internal/models"
	"sweet-shop/internal/purchase"
	"sweet-shop/internal/store"
	"sweet-shop/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CartView is the cart as rendered by the storefront
type CartView struct {
	Lines         []models.CartLine `json:"lines"`
	TotalQuantity int               `json:"total_quantity"`
	TotalPrice    string            `json:"total_price"`
}

func cartView(s *cart.Store) CartView {
	return CartView{
		Lines:         s.Lines(),
		TotalQuantity: s.TotalQuantity(),
		TotalPrice:    s.TotalPrice().StringFixed(2),
	}
}

// getCatalog renders the listing for the filter in the query string
func (h *Handler) getCatalog(c *gin.Context) {
	s := h.resolveSession(c)
	criteria := filter.FromQuery(c.Request.URL.Query())

	listing := h.Catalog.Build(c.Request.Context(), s, criteria)

	cartStore := h.loadCart(c)
	if listing.Err == nil && cartStore.Len() > 0 {
		cartStore.SyncStock(listing.Products)
		if !h.saveCart(c, cartStore) {
			return
		}
	}

	inCart := make(map[int64]int, cartStore.Len())
	for _, l := range cartStore.Lines() {
		inCart[l.ProductID] = l.Quantity
	}

	c.JSON(http.StatusOK, gin.H{
		"listing": listing,
		"session": gin.H{
			"username": s.DisplayName,
			"role":     s.Role,
			"is_admin": s.IsAdmin(),
		},
		"cart": gin.H{
			"count":   cartStore.TotalQuantity(),
			"in_cart": inCart,
		},
	})
}

// getCart renders the cart
func (h *Handler) getCart(c *gin.Context) {
	c.JSON(http.StatusOK, cartView(h.loadCart(c)))
}

// addToCart adds one unit of a product from a fresh catalog read
func (h *Handler) addToCart(c *gin.Context) {
	id, ok := productID(c)
	if !ok {
		return
	}

	products, err := h.Catalog.Fetch(c.Request.Context(), h.identifySession(c), filter.Criteria{})
	if err != nil {
		respondError(c, err)
		return
	}

	p, found := catalog.Find(products, id)
	if !found {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Sweet not found",
		})
		return
	}
	if !p.InStock() {
		c.JSON(http.StatusConflict, gin.H{
			"error": "Out of stock",
		})
		return
	}

	cartStore := h.loadCart(c)
	cartStore.Add(p)
	if !h.saveCart(c, cartStore) {
		return
	}
	c.JSON(http.StatusOK, cartView(cartStore))
}

func (h *Handler) incrementLine(c *gin.Context) {
	h.mutateLine(c, (*cart.Store).Increment)
}

func (h *Handler) decrementLine(c *gin.Context) {
	h.mutateLine(c, (*cart.Store).Decrement)
}

func (h *Handler) removeLine(c *gin.Context) {
	h.mutateLine(c, (*cart.Store).Remove)
}

func (h *Handler) mutateLine(c *gin.Context, op func(*cart.Store, int64)) {
	id, ok := productID(c)
	if !ok {
		return
	}

	cartStore := h.loadCart(c)
	op(cartStore, id)
	if !h.saveCart(c, cartStore) {
		return
	}
	c.JSON(http.StatusOK, cartView(cartStore))
}

// clearCart empties the cart
func (h *Handler) clearCart(c *gin.Context) {
	cartStore := h.loadCart(c)
	cartStore.Clear()
	if !h.saveCart(c, cartStore) {
		return
	}
	c.JSON(http.StatusOK, cartView(cartStore))
}

// checkout purchases the cart. Committed lines leave the cart whatever the
// outcome; the failed line and everything after it stay.
func (h *Handler) checkout(c *gin.Context) {
	sid := sessionID(c)
	s := h.identifySession(c)
	cartStore := h.loadCart(c)

	if cartStore.Len() == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Your cart is empty",
		})
		return
	}

	outcome, err := h.Purchases.Checkout(c.Request.Context(), sid, s, cartStore.Lines())
	if err != nil {
		if errors.Is(err, purchase.ErrPurchaseInFlight) {
			c.JSON(http.StatusConflict, gin.H{
				"error": "Your previous checkout is still being processed",
			})
			return
		}
		h.logger.Error("Checkout failed", util.SessionField(sid), zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Checkout is unavailable, please try again",
		})
		return
	}

	if purchase.Succeeded(outcome) {
		cartStore.Clear()
	} else {
		for _, l := range outcome.CommittedLines {
			cartStore.Remove(l.ProductID)
		}
	}
	if !h.saveCart(c, cartStore) {
		return
	}

	body := gin.H{
		"committed": outcome.CommittedLines,
		"total":     purchase.Total(outcome.CommittedLines).StringFixed(2),
		"cart":      cartView(cartStore),
	}

	switch {
	case purchase.Succeeded(outcome):
		body["status"] = "complete"
		c.JSON(http.StatusOK, body)
	case purchase.NeedsLogin(outcome):
		msg := apierr.Message(outcome.Err)
		body["status"] = "login_required"
		body["error"] = msg
		body["redirect"] = "/login?error=" + url.QueryEscape(msg)
		c.JSON(http.StatusUnauthorized, body)
	default:
		body["status"] = "halted"
		body["error"] = apierr.Message(outcome.Err)
		body["kind"] = apierr.KindOf(outcome.Err)
		body["failed_line"] = outcome.FailedLine
		c.JSON(statusFor(outcome.Err), body)
	}
}

// listReceipts lists the browser session's recorded purchases
func (h *Handler) listReceipts(c *gin.Context) {
	if h.Receipts == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Receipts are not available",
		})
		return
	}

	receipts, err := h.Receipts.GetReceiptsBySessionID(c.Request.Context(), sessionID(c), 20)
	if err != nil {
		h.logger.Error("Failed to list receipts", util.SessionField(sessionID(c)), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to load receipts",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"receipts": receipts,
	})
}

// getReceipt returns one receipt of the browser session with its lines.
// Receipts of other sessions are reported as not found.
func (h *Handler) getReceipt(c *gin.Context) {
	if h.Receipts == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Receipts are not available",
		})
		return
	}

	sid := sessionID(c)
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Receipt not found",
		})
		return
	}

	receipt, err := h.Receipts.GetReceiptByID(c.Request.Context(), id.String())
	if errors.Is(err, store.ErrReceiptNotFound) || (err == nil && receipt.SessionID != sid) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Receipt not found",
		})
		return
	}
	if err != nil {
		h.logger.Error("Failed to load receipt", util.SessionField(sid), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to load receipt",
		})
		return
	}

	lines, err := h.Receipts.GetReceiptLines(c.Request.Context(), receipt.ID)
	if err != nil {
		h.logger.Error("Failed to load receipt lines", util.SessionField(sid), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to load receipt",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"receipt": receipt,
		"lines":   lines,
	})
}
