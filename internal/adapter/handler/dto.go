package handler

import (
	"time"

	"github.com/rl1809/storefront/internal/core/domain"
)

type cartLineResponse struct {
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	Price     string `json:"price"`
	Image     string `json:"image,omitempty"`
	InStock   bool   `json:"in_stock"`
	Quantity  int    `json:"quantity"`
	LineTotal string `json:"line_total"`
}

type cartResponse struct {
	Lines    []cartLineResponse `json:"lines"`
	Count    int                `json:"count"`
	Subtotal string             `json:"subtotal"`
}

func newCartResponse(c domain.Cart) cartResponse {
	resp := cartResponse{
		Lines:    make([]cartLineResponse, len(c.Lines)),
		Count:    c.Count,
		Subtotal: c.Subtotal.StringFixed(2),
	}
	for i, l := range c.Lines {
		resp.Lines[i] = cartLineResponse{
			ProductID: l.ProductID,
			Name:      l.Name,
			Price:     l.Price.StringFixed(2),
			Image:     l.Image,
			InStock:   l.InStock,
			Quantity:  l.Quantity,
			LineTotal: l.LineTotal.StringFixed(2),
		}
	}
	return resp
}

type OrderItemResponse struct {
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	Price       string `json:"price"`
	Quantity    int    `json:"quantity"`
	LineTotal   string `json:"line_total"`
}

type OrderResponse struct {
	ID         string              `json:"id"`
	UserID     *int64              `json:"user_id,omitempty"`
	Name       string              `json:"name"`
	Email      string              `json:"email"`
	Phone      string              `json:"phone"`
	Address    string              `json:"address"`
	City       string              `json:"city"`
	State      string              `json:"state"`
	PostalCode string              `json:"postal_code"`
	Country    string              `json:"country"`
	Total      string              `json:"total"`
	Status     domain.OrderStatus  `json:"status"`
	Items      []OrderItemResponse `json:"items,omitempty"`
	CreatedAt  time.Time           `json:"created_at"`
	UpdatedAt  time.Time           `json:"updated_at"`
}

func newOrderResponse(o domain.Order) OrderResponse {
	resp := OrderResponse{
		ID:         o.ID,
		UserID:     o.UserID,
		Name:       o.Contact.Name,
		Email:      o.Contact.Email,
		Phone:      o.Contact.Phone,
		Address:    o.Shipping.Address,
		City:       o.Shipping.City,
		State:      o.Shipping.State,
		PostalCode: o.Shipping.PostalCode,
		Country:    o.Shipping.Country,
		Total:      o.Total.StringFixed(2),
		Status:     o.Status,
		CreatedAt:  o.CreatedAt,
		UpdatedAt:  o.UpdatedAt,
	}
	for _, it := range o.Items {
		resp.Items = append(resp.Items, OrderItemResponse{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Price:       it.Price.StringFixed(2),
			Quantity:    it.Quantity,
			LineTotal:   it.LineTotal().StringFixed(2),
		})
	}
	return resp
}

func newOrderResponses(orders []domain.Order) []OrderResponse {
	out := make([]OrderResponse, len(orders))
	for i, o := range orders {
		out[i] = newOrderResponse(o)
	}
	return out
}

type orderPageResponse struct {
	Orders   []OrderResponse `json:"orders"`
	Total    int             `json:"total"`
	Page     int             `json:"page"`
	PerPage  int             `json:"per_page"`
	LastPage int             `json:"last_page"`
}

type historyResponse struct {
	Active []OrderResponse `json:"active"`
	Past   []OrderResponse `json:"past"`
}

type checkoutResponse struct {
	Order          OrderResponse `json:"order"`
	AccountCreated bool          `json:"account_created"`
	Token          string        `json:"token,omitempty"`
}
