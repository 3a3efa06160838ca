package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID            int64
	Name          string
	Slug          string
	Price         decimal.Decimal
	StockQuantity int
	Image         string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (p Product) InStock() bool {
	return p.StockQuantity > 0
}

func (p Product) LineTotal(quantity int) decimal.Decimal {
	return p.Price.Mul(decimal.NewFromInt(int64(quantity)))
}
