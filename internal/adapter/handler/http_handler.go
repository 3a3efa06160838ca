package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/rl1809/storefront/internal/auth"
	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/core/service"
	"github.com/rl1809/storefront/internal/logger"
)

const maxBodyBytes = 1 << 20

type CartUseCase interface {
	Add(ctx context.Context, owner domain.Owner, productID int64, quantity int) error
	SetQuantity(ctx context.Context, owner domain.Owner, productID int64, quantity int) error
	Remove(ctx context.Context, owner domain.Owner, productID int64) error
	Clear(ctx context.Context, owner domain.Owner) error
	List(ctx context.Context, owner domain.Owner) (domain.Cart, error)
	Count(ctx context.Context, owner domain.Owner) (int, error)
}

type CheckoutUseCase interface {
	Preview(ctx context.Context, owner domain.Owner) (domain.Cart, error)
	PlaceOrder(ctx context.Context, owner domain.Owner, sessionID string, form service.CheckoutForm) (*service.CheckoutResult, error)
}

type OrderUseCase interface {
	List(ctx context.Context, filter domain.OrderFilter) (domain.OrderPage, error)
	Get(ctx context.Context, id string) (*domain.Order, error)
	GetForUser(ctx context.Context, userID int64, id string) (*domain.Order, error)
	History(ctx context.Context, userID int64) (domain.OrderHistory, error)
	UpdateStatus(ctx context.Context, id, status string) (*domain.Order, error)
}

// HealthCheck is a named dependency probe reported by /health.
type HealthCheck func(ctx context.Context) error

type HTTPHandler struct {
	carts    CartUseCase
	checkout CheckoutUseCase
	orders   OrderUseCase
	tokens   *auth.TokenManager
	log      *zap.Logger
}

func NewHTTPHandler(carts CartUseCase, checkout CheckoutUseCase, orders OrderUseCase, tokens *auth.TokenManager, log *zap.Logger) *HTTPHandler {
	return &HTTPHandler{
		carts:    carts,
		checkout: checkout,
		orders:   orders,
		tokens:   tokens,
		log:      log,
	}
}

type RouterConfig struct {
	Identity       *IdentityMiddleware
	CheckoutLimit  *RateLimiter
	RequestTimeout time.Duration
	Checks         map[string]HealthCheck
}

func (h *HTTPHandler) Routes(cfg RouterConfig) http.Handler {
	if cfg.CheckoutLimit == nil {
		cfg.CheckoutLimit = NewRateLimiter(rate.Inf, 1)
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(RequestLogger(h.log))
	r.Use(middleware.Recoverer)
	if cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
	}

	r.Get("/health", h.health(cfg.Checks))

	r.Route("/api", func(r chi.Router) {
		r.Use(cfg.Identity.Handler)

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.GetCart)
			r.Get("/count", h.CartCount)
			r.Post("/add", h.AddToCart)
			r.Post("/update", h.UpdateCart)
			r.Post("/remove", h.RemoveFromCart)
			r.Post("/clear", h.ClearCart)
		})

		r.Get("/checkout", h.CheckoutPreview)
		r.With(cfg.CheckoutLimit.Handler).Post("/checkout", h.PlaceOrder)

		r.Group(func(r chi.Router) {
			r.Use(RequireUser)
			r.Get("/orders", h.OrderHistory)
			r.Get("/orders/{id}", h.ShowOrder)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(RequireAdmin)
			r.Get("/orders", h.AdminListOrders)
			r.Get("/orders/{id}", h.AdminShowOrder)
			r.Patch("/orders/{id}/status", h.AdminUpdateStatus)
		})
	})

	return r
}

func (h *HTTPHandler) health(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		body := map[string]string{"status": "ok"}
		for name, check := range checks {
			if err := check(r.Context()); err != nil {
				status = http.StatusServiceUnavailable
				body["status"] = "degraded"
				body[name] = err.Error()
				continue
			}
			body[name] = "ok"
		}
		writeJSON(w, status, body)
	}
}

type errorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError maps domain errors onto HTTP statuses. Anything unknown is logged and hidden.
func (h *HTTPHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Error:   "validation_failed",
			Message: "the given data was invalid",
			Fields:  verr.Fields,
		})
	case errors.Is(err, domain.ErrEmptyCart):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "empty_cart", Message: "your cart is empty"})
	case errors.Is(err, domain.ErrOrderNotFound), errors.Is(err, domain.ErrProductNotFound), errors.Is(err, domain.ErrUserNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not_found", Message: "resource not found"})
	case errors.Is(err, domain.ErrInvalidTransition):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "invalid_transition", Message: err.Error()})
	case errors.Is(err, domain.ErrCheckoutInProgress):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "checkout_in_progress", Message: "a checkout for this cart is already running"})
	default:
		logger.For(r.Context(), h.log).Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal_error", Message: "internal error"})
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_request", Message: "invalid request body"})
		return false
	}
	return true
}

func identity(r *http.Request) auth.Identity {
	id, _ := auth.FromContext(r.Context())
	return id
}
