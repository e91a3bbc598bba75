package cart

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/estatehub/marketplace/internal/apperr"
	"github.com/estatehub/marketplace/internal/domain"
	"github.com/estatehub/marketplace/pkg/metrics"
)

const (
	DefaultMinOrderQty = 200
	DefaultMaxRetries  = 3
	sweepPageSize      = 100
)

// View is the cart returned to callers together with what reconciliation changed.
type View struct {
	Cart    domain.Cart `json:"cart"`
	Removed []Removal   `json:"removed"`
	Clamped []Clamp     `json:"clamped"`
}

// mutation edits a freshly reconciled cart. It reports whether it changed anything.
type mutation func(c *domain.Cart, products map[int64]domain.Product) (bool, error)

// Service runs every cart operation as load -> reconcile -> mutate -> versioned save,
// retrying the whole sequence when another request saved the cart in between.
type Service struct {
	store       Store
	inventory   Inventory
	minOrderQty int
	maxRetries  int
}

func NewService(store Store, inventory Inventory, minOrderQty, maxRetries int) *Service {
	if minOrderQty <= 0 {
		minOrderQty = DefaultMinOrderQty
	}
	if maxRetries < 0 {
		maxRetries = DefaultMaxRetries
	}
	return &Service{store: store, inventory: inventory, minOrderQty: minOrderQty, maxRetries: maxRetries}
}

// MinOrderQty is the configured default floor per line.
func (s *Service) MinOrderQty() int {
	return s.minOrderQty
}

// Get reconciles and returns the user's cart, creating it when absent.
func (s *Service) Get(ctx context.Context, userID int64) (*View, error) {
	return s.run(ctx, userID, nil, nil)
}

// AddItem adds quantity of productRef to the cart. A nil quantity means the
// product's minimum order. Quantities accumulate on an existing line.
func (s *Service) AddItem(ctx context.Context, userID, productRef int64, quantity *int) (*View, error) {
	if productRef <= 0 {
		return nil, apperr.InvalidInput("productRef is required")
	}
	if quantity != nil && *quantity < 1 {
		return nil, apperr.InvalidInput("quantity must be a positive integer")
	}
	return s.run(ctx, userID, []int64{productRef}, func(c *domain.Cart, products map[int64]domain.Product) (bool, error) {
		p, err := s.purchasable(products, productRef)
		if err != nil {
			return false, err
		}
		add := p.EffectiveMinOrderQty(s.minOrderQty)
		if quantity != nil {
			add = *quantity
		}
		if idx := c.IndexOf(productRef); idx >= 0 {
			c.Items[idx].Quantity = ClampQuantity(c.Items[idx].Quantity+add, p, s.minOrderQty)
			c.Items[idx].Snapshot = SnapshotOf(p)
			return true, nil
		}
		c.Items = append(c.Items, domain.CartLineItem{
			ProductRef: productRef,
			Quantity:   ClampQuantity(add, p, s.minOrderQty),
			Snapshot:   SnapshotOf(p),
		})
		return true, nil
	})
}

// UpdateItem sets the quantity of a line already in the cart, capped at live stock.
func (s *Service) UpdateItem(ctx context.Context, userID, productRef int64, quantity int) (*View, error) {
	if productRef <= 0 {
		return nil, apperr.InvalidInput("productRef is required")
	}
	if quantity < 1 {
		return nil, apperr.InvalidInput("quantity must be a positive integer")
	}
	return s.run(ctx, userID, []int64{productRef}, func(c *domain.Cart, products map[int64]domain.Product) (bool, error) {
		p, err := s.purchasable(products, productRef)
		if err != nil {
			return false, err
		}
		idx := c.IndexOf(productRef)
		if idx < 0 {
			return false, apperr.NotFound("item not in cart")
		}
		c.Items[idx].Quantity = ClampQuantity(quantity, p, s.minOrderQty)
		c.Items[idx].Snapshot = SnapshotOf(p)
		return true, nil
	})
}

// RemoveItem drops the line for productRef.
func (s *Service) RemoveItem(ctx context.Context, userID, productRef int64) (*View, error) {
	if productRef <= 0 {
		return nil, apperr.InvalidInput("productRef is required")
	}
	return s.run(ctx, userID, nil, func(c *domain.Cart, _ map[int64]domain.Product) (bool, error) {
		idx := c.IndexOf(productRef)
		if idx < 0 {
			return false, apperr.NotFound("item not in cart")
		}
		c.Items = append(c.Items[:idx], c.Items[idx+1:]...)
		return true, nil
	})
}

// Clear empties the cart. The cart itself is kept.
func (s *Service) Clear(ctx context.Context, userID int64) (*View, error) {
	return s.run(ctx, userID, nil, func(c *domain.Cart, _ map[int64]domain.Product) (bool, error) {
		changed := len(c.Items) > 0
		c.Items = []domain.CartLineItem{}
		return changed, nil
	})
}

// Sweep reconciles every stored cart and returns how many were processed.
func (s *Service) Sweep(ctx context.Context) (int, error) {
	var after int64
	processed := 0
	for {
		ids, err := s.store.ListUserIDs(ctx, after, sweepPageSize)
		if err != nil {
			return processed, apperr.Internal("failed to list carts", err)
		}
		for _, userID := range ids {
			if err := ctx.Err(); err != nil {
				return processed, err
			}
			if _, err := s.Get(ctx, userID); err != nil {
				zap.L().Warn("cart sweep failed",
					zap.String("namespace", "cart"),
					zap.Int64("user_id", userID),
					zap.Error(err))
				continue
			}
			processed++
		}
		if len(ids) < sweepPageSize {
			return processed, nil
		}
		after = ids[len(ids)-1]
	}
}

func (s *Service) purchasable(products map[int64]domain.Product, productRef int64) (domain.Product, error) {
	p, ok := products[productRef]
	if !ok {
		return p, apperr.NotFound("product not found")
	}
	if !p.Purchasable() {
		return p, apperr.New(apperr.CodeUnavailable, "product is out of stock or unavailable")
	}
	return p, nil
}

func (s *Service) run(ctx context.Context, userID int64, extraRefs []int64, mutate mutation) (*View, error) {
	if userID <= 0 {
		return nil, apperr.InvalidInput("user is required")
	}
	for attempt := 0; ; attempt++ {
		c, err := s.store.GetOrCreate(ctx, userID)
		if err != nil {
			return nil, apperr.Internal("failed to load cart", err)
		}
		products, err := s.inventory.FindByIDs(ctx, refsOf(c.Items, extraRefs...))
		if err != nil {
			return nil, apperr.Internal("failed to load products", err)
		}

		res := Reconcile(c.Items, products, s.minOrderQty)
		c.Items = res.Items
		changed := res.Changed
		if mutate != nil {
			mutated, err := mutate(c, products)
			if err != nil {
				return nil, err
			}
			changed = changed || mutated
		}

		if changed {
			err = s.store.Save(ctx, c)
			if errors.Is(err, ErrVersionConflict) {
				metrics.Incr("cart_version_conflicts", 1)
				if attempt < s.maxRetries {
					zap.L().Debug("cart version conflict, retrying",
						zap.String("namespace", "cart"),
						zap.Int64("user_id", userID),
						zap.Int("attempt", attempt+1))
					continue
				}
				return nil, apperr.Wrap(apperr.CodeConflict, "cart was modified concurrently, please retry", err)
			}
			if err != nil {
				return nil, apperr.Internal("failed to save cart", err)
			}
		}

		if len(res.Removed) > 0 || len(res.Clamped) > 0 {
			metrics.Incr("cart_lines_dropped", int64(len(res.Removed)))
			metrics.Incr("cart_lines_clamped", int64(len(res.Clamped)))
			zap.L().Info("cart reconciled",
				zap.String("namespace", "cart"),
				zap.Int64("user_id", userID),
				zap.Int("removed", len(res.Removed)),
				zap.Int("clamped", len(res.Clamped)))
		}

		view := &View{Cart: *c, Removed: res.Removed, Clamped: res.Clamped}
		if view.Removed == nil {
			view.Removed = []Removal{}
		}
		if view.Clamped == nil {
			view.Clamped = []Clamp{}
		}
		return view, nil
	}
}
