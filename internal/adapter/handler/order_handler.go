package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/rl1809/storefront/internal/core/domain"
)

func (h *HTTPHandler) OrderHistory(w http.ResponseWriter, r *http.Request) {
	history, err := h.orders.History(r.Context(), identity(r).Owner.UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, historyResponse{
		Active: newOrderResponses(history.Active),
		Past:   newOrderResponses(history.Past),
	})
}

func (h *HTTPHandler) ShowOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.GetForUser(r.Context(), identity(r).Owner.UserID, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newOrderResponse(*order))
}

func (h *HTTPHandler) AdminListOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))

	result, err := h.orders.List(r.Context(), domain.OrderFilter{
		Search:  q.Get("search"),
		Status:  domain.OrderStatus(q.Get("status")),
		Page:    page,
		PerPage: perPage,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, orderPageResponse{
		Orders:   newOrderResponses(result.Orders),
		Total:    result.Total,
		Page:     result.Page,
		PerPage:  result.PerPage,
		LastPage: result.LastPage(),
	})
}

func (h *HTTPHandler) AdminShowOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newOrderResponse(*order))
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *HTTPHandler) AdminUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	order, err := h.orders.UpdateStatus(r.Context(), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newOrderResponse(*order))
}
