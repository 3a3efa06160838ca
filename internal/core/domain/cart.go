package domain

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

type OwnerKind int

const (
	OwnerSession OwnerKind = iota + 1
	OwnerUser
)

// Owner identifies whose cart a line belongs to: an anonymous session or a signed-in user.
type Owner struct {
	Kind      OwnerKind
	SessionID string
	UserID    int64
}

func SessionOwner(sessionID string) Owner {
	return Owner{Kind: OwnerSession, SessionID: sessionID}
}

func UserOwner(userID int64) Owner {
	return Owner{Kind: OwnerUser, UserID: userID}
}

func (o Owner) IsAuthenticated() bool {
	return o.Kind == OwnerUser
}

func (o Owner) Valid() bool {
	switch o.Kind {
	case OwnerSession:
		return o.SessionID != ""
	case OwnerUser:
		return o.UserID > 0
	}
	return false
}

// Key is a stable string form used for cache keys and logging.
func (o Owner) Key() string {
	if o.Kind == OwnerUser {
		return "user:" + strconv.FormatInt(o.UserID, 10)
	}
	return "session:" + o.SessionID
}

func (o Owner) String() string {
	return o.Key()
}

type CartLine struct {
	Owner     Owner
	ProductID int64
	Quantity  int
	UpdatedAt time.Time
}

// ResolvedLine is a cart line joined with the live catalog entry.
type ResolvedLine struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Image     string          `json:"image,omitempty"`
	InStock   bool            `json:"in_stock"`
	Quantity  int             `json:"quantity"`
	LineTotal decimal.Decimal `json:"line_total"`
}

type Cart struct {
	Lines    []ResolvedLine  `json:"lines"`
	Count    int             `json:"count"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

func NewCart(lines []ResolvedLine) Cart {
	c := Cart{Lines: lines, Subtotal: decimal.Zero}
	if c.Lines == nil {
		c.Lines = []ResolvedLine{}
	}
	for _, l := range c.Lines {
		c.Count += l.Quantity
		c.Subtotal = c.Subtotal.Add(l.LineTotal)
	}
	return c
}

func (c Cart) IsEmpty() bool {
	return len(c.Lines) == 0
}

// LoginEvent is emitted when an anonymous session becomes an authenticated user.
type LoginEvent struct {
	UserID    int64
	SessionID string
	At        time.Time
}

func (e LoginEvent) String() string {
	return fmt.Sprintf("login user=%d session=%s", e.UserID, e.SessionID)
}
