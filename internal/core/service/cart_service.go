package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

var ErrInvalidOwner = errors.New("invalid cart owner")

// CartService keeps cart logic in one place and picks the storage adapter from the owner kind.
type CartService struct {
	session    port.CartRepository
	persistent port.CartRepository
	catalog    port.ProductCatalog
	log        *zap.Logger
}

func NewCartService(session, persistent port.CartRepository, catalog port.ProductCatalog, log *zap.Logger) *CartService {
	return &CartService{
		session:    session,
		persistent: persistent,
		catalog:    catalog,
		log:        log,
	}
}

func (s *CartService) repoFor(owner domain.Owner) (port.CartRepository, error) {
	if !owner.Valid() {
		return nil, ErrInvalidOwner
	}
	if owner.IsAuthenticated() {
		return s.persistent, nil
	}
	return s.session, nil
}

func (s *CartService) Add(ctx context.Context, owner domain.Owner, productID int64, quantity int) error {
	if quantity <= 0 {
		return domain.NewValidationError("quantity", "must be a positive integer")
	}
	if productID <= 0 {
		return domain.NewValidationError("product_id", "is required")
	}

	repo, err := s.repoFor(owner)
	if err != nil {
		return err
	}

	if _, err := s.catalog.GetProduct(ctx, productID); err != nil {
		if errors.Is(err, domain.ErrProductNotFound) {
			return domain.NewValidationError("product_id", "product does not exist")
		}
		return fmt.Errorf("lookup product: %w", err)
	}

	if err := repo.Add(ctx, owner, productID, quantity); err != nil {
		return fmt.Errorf("add cart line: %w", err)
	}
	return nil
}

// SetQuantity overwrites the quantity of an existing line. A missing line is left missing.
func (s *CartService) SetQuantity(ctx context.Context, owner domain.Owner, productID int64, quantity int) error {
	if quantity < 1 {
		return domain.NewValidationError("quantity", "must be at least 1")
	}

	repo, err := s.repoFor(owner)
	if err != nil {
		return err
	}

	updated, err := repo.SetQuantity(ctx, owner, productID, quantity)
	if err != nil {
		return fmt.Errorf("set cart quantity: %w", err)
	}
	if !updated {
		s.log.Debug("set quantity on missing cart line",
			zap.Stringer("owner", owner), zap.Int64("product_id", productID))
	}
	return nil
}

func (s *CartService) Remove(ctx context.Context, owner domain.Owner, productID int64) error {
	repo, err := s.repoFor(owner)
	if err != nil {
		return err
	}
	if err := repo.Remove(ctx, owner, productID); err != nil {
		return fmt.Errorf("remove cart line: %w", err)
	}
	return nil
}

func (s *CartService) Clear(ctx context.Context, owner domain.Owner) error {
	repo, err := s.repoFor(owner)
	if err != nil {
		return err
	}
	if err := repo.Clear(ctx, owner); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

// Lines returns the stored lines without touching the catalog.
func (s *CartService) Lines(ctx context.Context, owner domain.Owner) ([]domain.CartLine, error) {
	repo, err := s.repoFor(owner)
	if err != nil {
		return nil, err
	}
	lines, err := repo.Lines(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("load cart lines: %w", err)
	}
	return lines, nil
}

// List joins the lines with live product data. Lines whose product is gone are dropped.
func (s *CartService) List(ctx context.Context, owner domain.Owner) (domain.Cart, error) {
	lines, err := s.Lines(ctx, owner)
	if err != nil {
		return domain.Cart{}, err
	}
	resolved, err := s.resolve(ctx, lines)
	if err != nil {
		return domain.Cart{}, err
	}
	return domain.NewCart(resolved), nil
}

func (s *CartService) Count(ctx context.Context, owner domain.Owner) (int, error) {
	lines, err := s.Lines(ctx, owner)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, l := range lines {
		count += l.Quantity
	}
	return count, nil
}

func (s *CartService) resolve(ctx context.Context, lines []domain.CartLine) ([]domain.ResolvedLine, error) {
	if len(lines) == 0 {
		return nil, nil
	}

	ids := make([]int64, len(lines))
	for i, l := range lines {
		ids[i] = l.ProductID
	}

	products, err := s.catalog.GetProducts(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("lookup products: %w", err)
	}

	resolved := make([]domain.ResolvedLine, 0, len(lines))
	for _, l := range lines {
		p, ok := products[l.ProductID]
		if !ok {
			continue
		}
		resolved = append(resolved, domain.ResolvedLine{
			ProductID: p.ID,
			Name:      p.Name,
			Price:     p.Price,
			Image:     p.Image,
			InStock:   p.InStock(),
			Quantity:  l.Quantity,
			LineTotal: p.LineTotal(l.Quantity),
		})
	}

	sort.Slice(resolved, func(i, j int) bool { return resolved[i].ProductID < resolved[j].ProductID })
	return resolved, nil
}
