package intake

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/estatehub/marketplace/internal/domain"
)

// ErrStale is returned when a request changed between read and write.
var ErrStale = errors.New("intake request was modified")

// Filter narrows list and export queries. Zero values mean "any".
type Filter struct {
	Kind   domain.IntakeKind
	Status domain.IntakeStatus
	UserID int64
	Query  string
}

// Repository handles database operations for intake requests
type Repository interface {
	// Create inserts a new request
	Create(ctx context.Context, req *domain.IntakeRequest) error

	// GetByID retrieves a request by ID
	GetByID(ctx context.Context, id int64) (*domain.IntakeRequest, error)

	// UpdateStatus writes status and note if the stored version equals req.Version,
	// then advances req.Version. Returns ErrStale otherwise.
	UpdateStatus(ctx context.Context, req *domain.IntakeRequest) error

	// List retrieves requests with pagination, newest first
	List(ctx context.Context, filter Filter, page, pageSize int) ([]domain.IntakeRequest, int64, error)

	// ListAll retrieves every request matching filter, oldest first
	ListAll(ctx context.Context, filter Filter) ([]domain.IntakeRequest, error)
}

// GormRepository is the GORM implementation of Repository
type GormRepository struct {
	db *gorm.DB
}

func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

func (r *GormRepository) Create(ctx context.Context, req *domain.IntakeRequest) error {
	return errors.Wrap(r.db.WithContext(ctx).Create(req).Error, "create intake request")
}

func (r *GormRepository) GetByID(ctx context.Context, id int64) (*domain.IntakeRequest, error) {
	var req domain.IntakeRequest
	if err := r.db.WithContext(ctx).First(&req, id).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *GormRepository) UpdateStatus(ctx context.Context, req *domain.IntakeRequest) error {
	now := time.Now()
	res := r.db.WithContext(ctx).
		Model(&domain.IntakeRequest{}).
		Where("id = ? AND version = ?", req.ID, req.Version).
		Updates(map[string]interface{}{
			"status":      req.Status,
			"status_note": req.StatusNote,
			"version":     req.Version + 1,
			"updated_at":  now,
		})
	if res.Error != nil {
		return errors.Wrap(res.Error, "update intake status")
	}
	if res.RowsAffected == 0 {
		return ErrStale
	}
	req.Version++
	req.UpdatedAt = now
	return nil
}

func (r *GormRepository) scoped(ctx context.Context, filter Filter) *gorm.DB {
	query := r.db.WithContext(ctx).Model(&domain.IntakeRequest{})
	if filter.Kind != "" {
		query = query.Where("kind = ?", filter.Kind)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.UserID > 0 {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.Query != "" {
		like := "%" + filter.Query + "%"
		if r.db.Name() == "postgres" {
			query = query.Where("contact_name ILIKE ? OR contact_email ILIKE ? OR reference ILIKE ?", like, like, like)
		} else {
			query = query.Where("LOWER(contact_name) LIKE LOWER(?) OR LOWER(contact_email) LIKE LOWER(?) OR reference LIKE ?", like, like, like)
		}
	}
	return query
}

func (r *GormRepository) List(ctx context.Context, filter Filter, page, pageSize int) ([]domain.IntakeRequest, int64, error) {
	var total int64
	if err := r.scoped(ctx, filter).Count(&total).Error; err != nil {
		return nil, 0, errors.Wrap(err, "count intake requests")
	}
	var rows []domain.IntakeRequest
	err := r.scoped(ctx, filter).
		Order("created_at DESC, id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&rows).Error
	return rows, total, errors.Wrap(err, "list intake requests")
}

func (r *GormRepository) ListAll(ctx context.Context, filter Filter) ([]domain.IntakeRequest, error) {
	var rows []domain.IntakeRequest
	err := r.scoped(ctx, filter).Order("created_at ASC, id ASC").Find(&rows).Error
	return rows, errors.Wrap(err, "list intake requests")
}
