package api

import (
	"net/http"

	"sweet-shop/internal/admin"
	"sweet-shop/internal/apierr"
	"sweet-shop/internal/sweetapi"

	"github.com/gin-gonic/gin"
)

type restockRequest struct {
	Quantity int `json:"quantity"`
}

func adminFailure(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{
		"error":    apierr.Message(err),
		"redirect": admin.ErrorRedirect(err),
	})
}

func bindSweet(c *gin.Context) (sweetapi.SweetInput, bool) {
	var in sweetapi.SweetInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return in, false
	}
	return in, true
}

func (h *Handler) createSweet(c *gin.Context) {
	in, ok := bindSweet(c)
	if !ok {
		return
	}

	p, err := h.Admin.Create(c.Request.Context(), h.identifySession(c), in)
	if err != nil {
		adminFailure(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *Handler) updateSweet(c *gin.Context) {
	id, ok := productID(c)
	if !ok {
		return
	}
	in, ok := bindSweet(c)
	if !ok {
		return
	}

	p, err := h.Admin.Update(c.Request.Context(), h.identifySession(c), id, in)
	if err != nil {
		adminFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) deleteSweet(c *gin.Context) {
	id, ok := productID(c)
	if !ok {
		return
	}

	if err := h.Admin.Delete(c.Request.Context(), h.identifySession(c), id); err != nil {
		adminFailure(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) restockSweet(c *gin.Context) {
	id, ok := productID(c)
	if !ok {
		return
	}
	var req restockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	p, err := h.Admin.Restock(c.Request.Context(), h.identifySession(c), id, req.Quantity)
	if err != nil {
		adminFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}
