package httpserver

import (
	"github.com/gin-gonic/gin"

	"lingxian-cart/internal/domain"
)

type cartHandler struct {
	svc cartService
}

type addRequest struct {
	ProductID string `json:"productId"`
	Quantity  *int   `json:"quantity"`
}

type quantityRequest struct {
	Quantity *int `json:"quantity"`
}

type selectRequest struct {
	Selected bool `json:"selected"`
}

func (h *cartHandler) list(c *gin.Context) {
	view, err := h.svc.List(c.Request.Context(), c.GetString(userIDKey))
	if err != nil {
		respondErr(c, err)
		return
	}
	respondOK(c, view)
}

func (h *cartHandler) add(c *gin.Context) {
	var req addRequest
	if !bind(c, &req) {
		return
	}
	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}
	h.done(c, h.svc.Add(c.Request.Context(), c.GetString(userIDKey), req.ProductID, quantity))
}

func (h *cartHandler) updateQuantity(c *gin.Context) {
	var req quantityRequest
	if !bind(c, &req) {
		return
	}
	quantity := 0
	if req.Quantity != nil {
		quantity = *req.Quantity
	}
	h.done(c, h.svc.UpdateQuantity(c.Request.Context(), c.GetString(userIDKey), c.Param("id"), quantity))
}

func (h *cartHandler) remove(c *gin.Context) {
	h.done(c, h.svc.Remove(c.Request.Context(), c.GetString(userIDKey), c.Param("id")))
}

func (h *cartHandler) clear(c *gin.Context) {
	h.done(c, h.svc.Clear(c.Request.Context(), c.GetString(userIDKey)))
}

func (h *cartHandler) selectItem(c *gin.Context) {
	var req selectRequest
	if !bind(c, &req) {
		return
	}
	h.done(c, h.svc.Select(c.Request.Context(), c.GetString(userIDKey), c.Param("id"), req.Selected))
}

func (h *cartHandler) selectMerchant(c *gin.Context) {
	var req selectRequest
	if !bind(c, &req) {
		return
	}
	h.done(c, h.svc.SelectMerchant(c.Request.Context(), c.GetString(userIDKey), c.Param("merchantId"), req.Selected))
}

func (h *cartHandler) selectAll(c *gin.Context) {
	var req selectRequest
	if !bind(c, &req) {
		return
	}
	h.done(c, h.svc.SelectAll(c.Request.Context(), c.GetString(userIDKey), req.Selected))
}

func (h *cartHandler) done(c *gin.Context, err error) {
	if err != nil {
		respondErr(c, err)
		return
	}
	respondOK(c, nil)
}

func bind(c *gin.Context, v interface{}) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		respondCode(c, domain.CodeBadRequest, "Invalid request body")
		return false
	}
	return true
}
