package cart

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/estatehub/marketplace/internal/domain"
	"github.com/estatehub/marketplace/pkg/common"
)

// ErrVersionConflict is returned by Store.Save when the cart changed since it was read.
var ErrVersionConflict = errors.New("cart version conflict")

// Inventory looks up live product data
type Inventory interface {
	// FindByIDs returns the products that exist among ids, keyed by id
	FindByIDs(ctx context.Context, ids []int64) (map[int64]domain.Product, error)
}

// Store persists one cart per user
type Store interface {
	// GetOrCreate returns the user's cart, creating an empty one on first access
	GetOrCreate(ctx context.Context, userID int64) (*domain.Cart, error)

	// Save writes items if the stored version still equals cart.Version,
	// then advances cart.Version. Returns ErrVersionConflict otherwise.
	Save(ctx context.Context, cart *domain.Cart) error

	// ListUserIDs pages through cart owners in ascending order
	ListUserIDs(ctx context.Context, afterUserID int64, limit int) ([]int64, error)
}

// GormInventory is the GORM implementation of Inventory
type GormInventory struct {
	db *gorm.DB
}

func NewGormInventory(db *gorm.DB) *GormInventory {
	return &GormInventory{db: db}
}

func (r *GormInventory) FindByIDs(ctx context.Context, ids []int64) (map[int64]domain.Product, error) {
	result := make(map[int64]domain.Product, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	var rows []domain.Product
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "query products")
	}
	for _, p := range rows {
		result[p.ID] = p
	}
	return result, nil
}

// GormStore is the GORM implementation of Store
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (r *GormStore) get(ctx context.Context, userID int64) (*domain.Cart, error) {
	var c domain.Cart
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&c).Error; err != nil {
		return nil, err
	}
	if c.Items == nil {
		c.Items = []domain.CartLineItem{}
	}
	return &c, nil
}

func (r *GormStore) GetOrCreate(ctx context.Context, userID int64) (*domain.Cart, error) {
	c, err := r.get(ctx, userID)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Wrap(err, "query cart")
	}

	now := time.Now()
	c = &domain.Cart{
		ID:        common.UUIDint64(),
		UserID:    userID,
		Items:     []domain.CartLineItem{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	createErr := r.db.WithContext(ctx).Create(c).Error
	if createErr == nil {
		return c, nil
	}

	// another request created it concurrently
	if existing, err := r.get(ctx, userID); err == nil {
		return existing, nil
	}
	return nil, errors.Wrap(createErr, "create cart")
}

func (r *GormStore) Save(ctx context.Context, cart *domain.Cart) error {
	next := *cart
	next.Version = cart.Version + 1
	next.UpdatedAt = time.Now()
	if next.Items == nil {
		next.Items = []domain.CartLineItem{}
	}

	res := r.db.WithContext(ctx).
		Model(&next).
		Where("version = ?", cart.Version).
		Select("items", "version", "updated_at").
		Updates(&next)
	if res.Error != nil {
		return errors.Wrap(res.Error, "update cart")
	}
	if res.RowsAffected == 0 {
		return ErrVersionConflict
	}
	cart.Items = next.Items
	cart.Version = next.Version
	cart.UpdatedAt = next.UpdatedAt
	return nil
}

func (r *GormStore) ListUserIDs(ctx context.Context, afterUserID int64, limit int) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).
		Model(&domain.Cart{}).
		Where("user_id > ?", afterUserID).
		Order("user_id ASC").
		Limit(limit).
		Pluck("user_id", &ids).Error
	return ids, errors.Wrap(err, "list cart owners")
}
