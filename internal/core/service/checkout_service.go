package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

type CheckoutForm struct {
	Name       string `json:"name" validate:"required,max=255"`
	Email      string `json:"email" validate:"required,email,max=255"`
	Phone      string `json:"phone" validate:"required,max=20"`
	Address    string `json:"address" validate:"required,max=255"`
	City       string `json:"city" validate:"required,max=255"`
	State      string `json:"state" validate:"required,max=255"`
	PostalCode string `json:"postal_code" validate:"required,max=32"`
	Country    string `json:"country" validate:"required,max=255"`
	Password   string `json:"password" validate:"omitempty,min=6,max=72"`
}

func (f *CheckoutForm) normalize() {
	f.Name = strings.TrimSpace(f.Name)
	f.Email = strings.ToLower(strings.TrimSpace(f.Email))
	f.Phone = strings.TrimSpace(f.Phone)
	f.Address = strings.TrimSpace(f.Address)
	f.City = strings.TrimSpace(f.City)
	f.State = strings.TrimSpace(f.State)
	f.PostalCode = strings.TrimSpace(f.PostalCode)
	f.Country = strings.TrimSpace(f.Country)
}

func (f CheckoutForm) profile() domain.Profile {
	return domain.Profile{
		Phone:      f.Phone,
		Address:    f.Address,
		City:       f.City,
		State:      f.State,
		PostalCode: f.PostalCode,
		Country:    f.Country,
	}
}

type CheckoutResult struct {
	Order domain.Order
	User  domain.User
	// AccountCreated is true when the shopper checked out as a guest with a new email.
	AccountCreated bool
}

// CheckoutService turns the shopper's cart into an order.
type CheckoutService struct {
	carts   *CartService
	catalog port.ProductCatalog
	users   port.UserRepository
	orders  port.OrderRepository
	guard   port.CheckoutGuard
	lockTTL time.Duration
	now     func() time.Time
	log     *zap.Logger
}

func NewCheckoutService(
	carts *CartService,
	catalog port.ProductCatalog,
	users port.UserRepository,
	orders port.OrderRepository,
	guard port.CheckoutGuard,
	lockTTL time.Duration,
	log *zap.Logger,
) *CheckoutService {
	return &CheckoutService{
		carts:   carts,
		catalog: catalog,
		users:   users,
		orders:  orders,
		guard:   guard,
		lockTTL: lockTTL,
		now:     time.Now,
		log:     log,
	}
}

// Preview is what the checkout page shows: the resolved cart with its subtotal.
func (s *CheckoutService) Preview(ctx context.Context, owner domain.Owner) (domain.Cart, error) {
	return s.carts.List(ctx, owner)
}

// PlaceOrder checks out owner's cart. sessionID is the shopper's guest session, if any; its cart
// is cleared with the order even when owner is a signed-in user.
func (s *CheckoutService) PlaceOrder(ctx context.Context, owner domain.Owner, sessionID string, form CheckoutForm) (*CheckoutResult, error) {
	form.normalize()
	if err := validateStruct(form); err != nil {
		return nil, err
	}
	if !owner.Valid() {
		return nil, ErrInvalidOwner
	}

	token, ok, err := s.guard.Acquire(ctx, owner.Key(), s.lockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire checkout lock: %w", err)
	}
	if !ok {
		return nil, domain.ErrCheckoutInProgress
	}
	defer func() {
		if err := s.guard.Release(context.WithoutCancel(ctx), owner.Key(), token); err != nil {
			s.log.Warn("release checkout lock failed", zap.Stringer("owner", owner), zap.Error(err))
		}
	}()

	lines, err := s.carts.Lines(ctx, owner)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, domain.ErrEmptyCart
	}

	items, total, err := s.snapshot(ctx, lines)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, domain.ErrEmptyCart
	}

	user, created, err := s.resolveUser(ctx, owner, form)
	if err != nil {
		return nil, err
	}

	if !created && user.Profile.FillBlanks(form.profile()) {
		if err := s.users.UpdateProfile(ctx, user.ID, user.Profile); err != nil {
			return nil, fmt.Errorf("backfill profile: %w", err)
		}
	}

	now := s.now().UTC()
	userID := user.ID
	order := domain.Order{
		ID:     uuid.NewString(),
		UserID: &userID,
		Contact: domain.Contact{
			Name:  form.Name,
			Email: form.Email,
			Phone: form.Phone,
		},
		Shipping: domain.ShippingAddress{
			Address:    form.Address,
			City:       form.City,
			State:      form.State,
			PostalCode: form.PostalCode,
			Country:    form.Country,
		},
		Total:     total,
		Status:    domain.OrderStatusPending,
		Items:     items,
		CreatedAt: now,
		UpdatedAt: now,
	}
	for i := range order.Items {
		order.Items[i].OrderID = order.ID
	}

	payload, err := json.Marshal(domain.NewOrderPlaced(order))
	if err != nil {
		return nil, fmt.Errorf("marshal order placed: %w", err)
	}
	event := domain.OutboxEvent{
		ID:          uuid.NewString(),
		AggregateID: order.ID,
		EventType:   domain.EventOrderPlaced,
		Payload:     payload,
		CreatedAt:   now,
	}

	if err := s.orders.CreateOrder(ctx, order, event, &userID); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	// the persistent cart was cleared with the order; a guest cart lives outside the transaction
	if session := sessionCart(owner, sessionID); session.Valid() {
		if err := s.carts.Clear(ctx, session); err != nil {
			s.log.Error("clear session cart after checkout failed",
				zap.String("order_id", order.ID), zap.Stringer("owner", session), zap.Error(err))
		}
	}

	s.log.Info("order placed",
		zap.String("order_id", order.ID),
		zap.Int64("user_id", userID),
		zap.String("total", total.StringFixed(2)),
		zap.Int("items", len(items)),
		zap.Int("skipped_lines", len(lines)-len(items)),
	)

	return &CheckoutResult{Order: order, User: *user, AccountCreated: created}, nil
}

func sessionCart(owner domain.Owner, sessionID string) domain.Owner {
	if !owner.IsAuthenticated() {
		return owner
	}
	return domain.SessionOwner(sessionID)
}

// snapshot copies name and price from the live catalog. Lines whose product was deleted
// are skipped.
func (s *CheckoutService) snapshot(ctx context.Context, lines []domain.CartLine) ([]domain.OrderItem, decimal.Decimal, error) {
	ids := make([]int64, len(lines))
	for i, l := range lines {
		ids[i] = l.ProductID
	}

	products, err := s.catalog.GetProducts(ctx, ids)
	if err != nil {
		return nil, decimal.Zero, fmt.Errorf("lookup products: %w", err)
	}

	items := make([]domain.OrderItem, 0, len(lines))
	total := decimal.Zero
	for _, l := range lines {
		p, ok := products[l.ProductID]
		if !ok {
			s.log.Warn("skipping cart line for missing product", zap.Int64("product_id", l.ProductID))
			continue
		}
		item := domain.OrderItem{
			ProductID:   p.ID,
			ProductName: p.Name,
			Price:       p.Price,
			Quantity:    l.Quantity,
		}
		total = total.Add(item.LineTotal())
		items = append(items, item)
	}

	return items, total.Round(2), nil
}

func (s *CheckoutService) resolveUser(ctx context.Context, owner domain.Owner, form CheckoutForm) (*domain.User, bool, error) {
	if owner.IsAuthenticated() {
		user, err := s.users.GetByID(ctx, owner.UserID)
		if err != nil {
			return nil, false, fmt.Errorf("load user: %w", err)
		}
		return user, false, nil
	}

	user, err := s.users.GetByEmail(ctx, form.Email)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, false, fmt.Errorf("lookup user by email: %w", err)
	}

	if form.Password == "" {
		return nil, false, domain.NewValidationError("password", "is required to create an account")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(form.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, false, fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	user = &domain.User{
		Name:         form.Name,
		Email:        form.Email,
		PasswordHash: string(hash),
		Profile:      form.profile(),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		// a concurrent checkout registered the same email first
		if errors.Is(err, domain.ErrEmailTaken) {
			existing, lookupErr := s.users.GetByEmail(ctx, form.Email)
			if lookupErr != nil {
				return nil, false, fmt.Errorf("lookup user by email: %w", lookupErr)
			}
			return existing, false, nil
		}
		return nil, false, fmt.Errorf("create user: %w", err)
	}
	return user, true, nil
}
