package api

import (
	"errors"
	"net/http"
	"net/url"

	"sweet-shop/internal/apierr"
	"sweet-shop/internal/session"

	"github.com/gin-gonic/gin"
)

// RegisterRequest is the signup form
type RegisterRequest struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

// login handles the login form
func (h *Handler) login(c *gin.Context) {
	username := c.PostForm("username")
	if username == "" {
		username = c.PostForm("email")
	}
	password := c.PostForm("password")

	s, cookie, err := h.Resolver.Login(c.Request.Context(), sessionID(c), username, password, h.SecureCookie)
	if err != nil {
		msg := apierr.Message(err)
		if errors.Is(err, apierr.ErrNotAuthenticated) {
			msg = "Invalid email or password"
		}
		c.JSON(statusFor(err), gin.H{
			"error":    msg,
			"redirect": "/login?error=" + url.QueryEscape(msg),
		})
		return
	}

	http.SetCookie(c.Writer, cookie)
	c.JSON(http.StatusOK, gin.H{
		"redirect": session.RedirectTarget(s),
		"user":     s,
	})
}

// register handles account creation
func (h *Handler) register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	err := session.Register(c.Request.Context(), h.Registrar, req.Username, req.Email, req.Password, req.ConfirmPassword)
	if err != nil {
		msg := apierr.Message(err)
		c.JSON(statusFor(err), gin.H{
			"error":    msg,
			"redirect": "/signup?error=" + url.QueryEscape(msg),
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"redirect": "/login?success=" + url.QueryEscape("Account created. Please log in."),
	})
}

// logout drops the stored token and expires the token cookie
func (h *Handler) logout(c *gin.Context) {
	http.SetCookie(c.Writer, h.Resolver.Clear(c.Request.Context(), sessionID(c)))
	c.JSON(http.StatusOK, gin.H{
		"redirect": "/login",
	})
}
