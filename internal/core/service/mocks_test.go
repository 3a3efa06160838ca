package service

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/storefront/internal/core/domain"
)

// Mock CartRepository
type memCartRepo struct {
	mu       sync.Mutex
	lines    map[string]map[int64]int
	mergeErr error
}

func newMemCartRepo() *memCartRepo {
	return &memCartRepo{lines: make(map[string]map[int64]int)}
}

func (m *memCartRepo) Add(_ context.Context, owner domain.Owner, productID int64, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lines[owner.Key()] == nil {
		m.lines[owner.Key()] = make(map[int64]int)
	}
	m.lines[owner.Key()][productID] += quantity
	return nil
}

func (m *memCartRepo) SetQuantity(_ context.Context, owner domain.Owner, productID int64, quantity int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.lines[owner.Key()][productID]; !ok {
		return false, nil
	}
	m.lines[owner.Key()][productID] = quantity
	return true, nil
}

func (m *memCartRepo) MergeMax(_ context.Context, owner domain.Owner, productID int64, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mergeErr != nil {
		return m.mergeErr
	}
	if m.lines[owner.Key()] == nil {
		m.lines[owner.Key()] = make(map[int64]int)
	}
	if quantity > m.lines[owner.Key()][productID] {
		m.lines[owner.Key()][productID] = quantity
	}
	return nil
}

func (m *memCartRepo) Remove(_ context.Context, owner domain.Owner, productID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.lines[owner.Key()], productID)
	return nil
}

func (m *memCartRepo) Clear(_ context.Context, owner domain.Owner) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.lines, owner.Key())
	return nil
}

func (m *memCartRepo) Lines(_ context.Context, owner domain.Owner) ([]domain.CartLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.CartLine
	for pid, q := range m.lines[owner.Key()] {
		out = append(out, domain.CartLine{Owner: owner, ProductID: pid, Quantity: q})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

func (m *memCartRepo) quantity(owner domain.Owner, productID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lines[owner.Key()][productID]
}

func (m *memCartRepo) size(owner domain.Owner) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.lines[owner.Key()])
}

// Mock ProductCatalog
type mockCatalog struct {
	mu       sync.Mutex
	products map[int64]domain.Product
}

func newMockCatalog(products ...domain.Product) *mockCatalog {
	c := &mockCatalog{products: make(map[int64]domain.Product)}
	for _, p := range products {
		c.products[p.ID] = p
	}
	return c
}

func (c *mockCatalog) GetProduct(_ context.Context, id int64) (*domain.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.products[id]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	return &p, nil
}

func (c *mockCatalog) GetProducts(_ context.Context, ids []int64) (map[int64]domain.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[int64]domain.Product)
	for _, id := range ids {
		if p, ok := c.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (c *mockCatalog) delete(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.products, id)
}

func (c *mockCatalog) setPrice(id int64, price string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := c.products[id]
	p.Price = decimal.RequireFromString(price)
	c.products[id] = p
}

func product(id int64, name, price string) domain.Product {
	return domain.Product{ID: id, Name: name, Price: decimal.RequireFromString(price), StockQuantity: 10}
}

// Mock UserRepository
type mockUsers struct {
	mu       sync.Mutex
	nextID   int64
	byID     map[int64]*domain.User
	profiles int
}

func newMockUsers(users ...domain.User) *mockUsers {
	m := &mockUsers{nextID: 100, byID: make(map[int64]*domain.User)}
	for i := range users {
		u := users[i]
		m.byID[u.ID] = &u
	}
	return m
}

func (m *mockUsers) GetByID(_ context.Context, id int64) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *mockUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (m *mockUsers) Create(_ context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	user.ID = m.nextID
	cp := *user
	m.byID[user.ID] = &cp
	return nil
}

func (m *mockUsers) UpdateProfile(_ context.Context, id int64, profile domain.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.Profile = profile
	m.profiles++
	return nil
}

func (m *mockUsers) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID)
}

// Mock OrderRepository. CreateOrder clears the persistent cart like the real transaction does.
type mockOrders struct {
	mu        sync.Mutex
	orders    map[string]domain.Order
	events    []domain.OutboxEvent
	carts     *memCartRepo
	createErr error
}

func newMockOrders(carts *memCartRepo) *mockOrders {
	return &mockOrders{orders: make(map[string]domain.Order), carts: carts}
}

func (m *mockOrders) CreateOrder(ctx context.Context, order domain.Order, event domain.OutboxEvent, clearCartOf *int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	order.Items = append([]domain.OrderItem(nil), order.Items...)
	m.orders[order.ID] = order
	m.events = append(m.events, event)
	if clearCartOf != nil && m.carts != nil {
		_ = m.carts.Clear(ctx, domain.UserOwner(*clearCartOf))
	}
	return nil
}

func (m *mockOrders) GetOrder(_ context.Context, id string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return &o, nil
}

func (m *mockOrders) ListOrders(_ context.Context, filter domain.OrderFilter) (domain.OrderPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []domain.Order
	for _, o := range m.orders {
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		all = append(all, o)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return domain.OrderPage{Orders: all, Total: len(all), Page: filter.Page, PerPage: filter.PerPage}, nil
}

func (m *mockOrders) ListUserOrders(_ context.Context, userID int64) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Order
	for _, o := range m.orders {
		if o.UserID != nil && *o.UserID == userID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *mockOrders) UpdateStatus(_ context.Context, id string, from, to domain.OrderStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if o.Status != from {
		return domain.ErrInvalidTransition
	}
	o.Status = to
	m.orders[id] = o
	return nil
}

func (m *mockOrders) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

func (m *mockOrders) only() domain.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		return o
	}
	return domain.Order{}
}

// Mock CheckoutGuard
type mockGuard struct {
	mu   sync.Mutex
	held map[string]string
	seq  int
}

func newMockGuard() *mockGuard {
	return &mockGuard{held: make(map[string]string)}
}

func (g *mockGuard) Acquire(_ context.Context, key string, _ time.Duration) (string, bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.held[key]; ok {
		return "", false, nil
	}
	g.seq++
	token := "t" + strconv.Itoa(g.seq)
	g.held[key] = token
	return token, true, nil
}

func (g *mockGuard) Release(_ context.Context, key, token string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.held[key] == token {
		delete(g.held, key)
	}
	return nil
}

// Mock EmailSender
type sentMail struct {
	to, subject, body string
}

type mockSender struct {
	mu     sync.Mutex
	sent   []sentMail
	failTo map[string]bool
}

func (s *mockSender) SendEmail(_ context.Context, to, subject, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failTo[to] {
		return errors.New("smtp unavailable")
	}
	s.sent = append(s.sent, sentMail{to, subject, body})
	return nil
}

func (s *mockSender) mails() []sentMail {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sentMail(nil), s.sent...)
}
