package api

import (
	"net/http"

	"sweet-shop/internal/cart"
	"sweet-shop/internal/models"
	"sweet-shop/internal/session"
	"sweet-shop/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SessionCookieName holds the opaque browser session id
const SessionCookieName = "sid"

const sidKey = "sid"

// sessionMiddleware makes sure every request carries a browser session id
func (h *Handler) sessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		sid, err := c.Cookie(SessionCookieName)
		if err == nil {
			_, err = uuid.Parse(sid)
		}
		if err != nil {
			sid = uuid.NewString()
			http.SetCookie(c.Writer, &http.Cookie{
				Name:     SessionCookieName,
				Value:    sid,
				Path:     "/",
				MaxAge:   int(h.SessionTTL.Seconds()),
				HttpOnly: true,
				Secure:   h.SecureCookie,
				SameSite: http.SameSiteLaxMode,
			})
		} else if h.Toucher != nil {
			if err := h.Toucher.Touch(c.Request.Context(), sid); err != nil {
				h.logger.Debug("Failed to refresh session expiry",
					util.SessionField(sid),
					zap.Error(err))
			}
		}

		c.Set(sidKey, sid)
		c.Next()
	}
}

func sessionID(c *gin.Context) string {
	return c.GetString(sidKey)
}

// resolveSession derives the session from the token cookie first and the
// stored token second.
func (h *Handler) resolveSession(c *gin.Context) models.Session {
	return h.Resolver.Resolve(c.Request.Context(),
		session.CookieSource(c.GetHeader("Cookie")),
		session.StoreSource{Store: h.Tokens, SID: sessionID(c)})
}

// identifySession is resolveSession without the role probe, for routes where
// the sweets service authorizes the token itself.
func (h *Handler) identifySession(c *gin.Context) models.Session {
	return h.Resolver.Identify(c.Request.Context(),
		session.CookieSource(c.GetHeader("Cookie")),
		session.StoreSource{Store: h.Tokens, SID: sessionID(c)})
}

// loadCart restores the session's cart. A store failure yields an empty cart.
func (h *Handler) loadCart(c *gin.Context) *cart.Store {
	lines, err := h.Carts.LoadCart(c.Request.Context(), sessionID(c))
	if err != nil {
		h.logger.Error("Failed to load cart",
			util.SessionField(sessionID(c)),
			zap.Error(err))
		return cart.New()
	}
	return cart.Restore(lines)
}

func (h *Handler) saveCart(c *gin.Context, s *cart.Store) bool {
	if err := h.Carts.SaveCart(c.Request.Context(), sessionID(c), s.Snapshot()); err != nil {
		h.logger.Error("Failed to save cart",
			util.SessionField(sessionID(c)),
			zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Could not update your cart, please try again",
		})
		return false
	}
	return true
}
