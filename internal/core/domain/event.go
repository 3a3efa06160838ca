package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const EventOrderPlaced = "OrderPlaced"

type OrderPlacedItem struct {
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
}

type OrderPlaced struct {
	OrderID  string            `json:"order_id"`
	UserID   *int64            `json:"user_id,omitempty"`
	Name     string            `json:"name"`
	Email    string            `json:"email"`
	Total    decimal.Decimal   `json:"total"`
	Items    []OrderPlacedItem `json:"items"`
	PlacedAt time.Time         `json:"placed_at"`
}

func NewOrderPlaced(o Order) OrderPlaced {
	items := make([]OrderPlacedItem, len(o.Items))
	for i, it := range o.Items {
		items[i] = OrderPlacedItem{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Price:       it.Price,
			Quantity:    it.Quantity,
		}
	}
	return OrderPlaced{
		OrderID:  o.ID,
		UserID:   o.UserID,
		Name:     o.Contact.Name,
		Email:    o.Contact.Email,
		Total:    o.Total,
		Items:    items,
		PlacedAt: o.CreatedAt,
	}
}

// OutboxEvent is a row written in the same transaction as the aggregate change it describes.
type OutboxEvent struct {
	ID          string
	AggregateID string
	EventType   string
	Payload     []byte
	CreatedAt   time.Time
	PublishedAt *time.Time
}
