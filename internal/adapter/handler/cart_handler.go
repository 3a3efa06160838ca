package handler

import (
	"net/http"
)

type cartLineRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type removeLineRequest struct {
	ProductID int64 `json:"product_id"`
}

func (h *HTTPHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	h.respondCart(w, r)
}

func (h *HTTPHandler) CartCount(w http.ResponseWriter, r *http.Request) {
	count, err := h.carts.Count(r.Context(), identity(r).Owner)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": count})
}

func (h *HTTPHandler) AddToCart(w http.ResponseWriter, r *http.Request) {
	var req cartLineRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.carts.Add(r.Context(), identity(r).Owner, req.ProductID, req.Quantity); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respondCart(w, r)
}

func (h *HTTPHandler) UpdateCart(w http.ResponseWriter, r *http.Request) {
	var req cartLineRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.carts.SetQuantity(r.Context(), identity(r).Owner, req.ProductID, req.Quantity); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respondCart(w, r)
}

func (h *HTTPHandler) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	var req removeLineRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.carts.Remove(r.Context(), identity(r).Owner, req.ProductID); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respondCart(w, r)
}

func (h *HTTPHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	if err := h.carts.Clear(r.Context(), identity(r).Owner); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respondCart(w, r)
}

func (h *HTTPHandler) respondCart(w http.ResponseWriter, r *http.Request) {
	cart, err := h.carts.List(r.Context(), identity(r).Owner)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newCartResponse(cart))
}
