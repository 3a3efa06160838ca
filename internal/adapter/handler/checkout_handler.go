package handler

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/rl1809/storefront/internal/auth"
	"github.com/rl1809/storefront/internal/core/service"
	"github.com/rl1809/storefront/internal/logger"
)

func (h *HTTPHandler) CheckoutPreview(w http.ResponseWriter, r *http.Request) {
	cart, err := h.checkout.Preview(r.Context(), identity(r).Owner)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newCartResponse(cart))
}

func (h *HTTPHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var form service.CheckoutForm
	if !decodeJSON(w, r, &form) {
		return
	}

	id := identity(r)
	result, err := h.checkout.PlaceOrder(r.Context(), id.Owner, id.SessionID, form)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := checkoutResponse{
		Order:          newOrderResponse(result.Order),
		AccountCreated: result.AccountCreated,
	}

	// a guest who just got an account is signed in, like a registration would
	if result.AccountCreated {
		token, err := h.tokens.Issue(result.User.ID, auth.RoleCustomer)
		if err != nil {
			logger.For(r.Context(), h.log).Error("issue token for new account failed",
				zap.Int64("user_id", result.User.ID), zap.Error(err))
		} else {
			resp.Token = token
		}
	}

	w.Header().Set("Location", "/api/orders/"+result.Order.ID)
	writeJSON(w, http.StatusCreated, resp)
}
