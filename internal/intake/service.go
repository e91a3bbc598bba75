package intake

import (
	"context"
	"io"
	"net/mail"
	"strings"
	"time"

	EventBus "github.com/asaskevich/EventBus"
	"github.com/gocarina/gocsv"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/estatehub/marketplace/internal/apperr"
	"github.com/estatehub/marketplace/internal/domain"
	"github.com/estatehub/marketplace/pkg/common"
)

const (
	TopicSubmitted     = "intake:submitted"
	TopicStatusChanged = "intake:status"

	maxAttachments = 10
)

// SubmittedEvent is published after a request is stored
type SubmittedEvent struct {
	Request domain.IntakeRequest
}

// StatusChangedEvent is published after a status transition is stored
type StatusChangedEvent struct {
	Request domain.IntakeRequest
	From    domain.IntakeStatus
}

// Actor is the authenticated caller
type Actor struct {
	UserID int64
	Admin  bool
}

// Submission is the input for a new request
type Submission struct {
	Kind         domain.IntakeKind
	ContactName  string
	ContactEmail string
	ContactPhone string
	Details      map[string]interface{}
	Attachments  []string
}

type Service struct {
	repo Repository
	bus  EventBus.Bus
}

// NewService creates the intake service. bus may be nil.
func NewService(repo Repository, bus EventBus.Bus) *Service {
	return &Service{repo: repo, bus: bus}
}

// Submit validates and stores a new request in the pending state.
func (s *Service) Submit(ctx context.Context, actor Actor, sub Submission) (*domain.IntakeRequest, error) {
	if !sub.Kind.Valid() {
		return nil, apperr.Newf(apperr.CodeInvalidInput, "unknown request kind %q", sub.Kind)
	}
	name := strings.TrimSpace(sub.ContactName)
	if name == "" {
		return nil, apperr.InvalidInput("contact_name is required")
	}
	addr, err := mail.ParseAddress(strings.TrimSpace(sub.ContactEmail))
	if err != nil {
		return nil, apperr.InvalidInput("contact_email is not a valid email address")
	}
	details, err := NormalizeDetails(sub.Kind, sub.Details)
	if err != nil {
		return nil, err
	}
	attachments := common.NormalizeImagePaths(sub.Attachments)
	if len(attachments) > maxAttachments {
		return nil, apperr.Newf(apperr.CodeInvalidInput, "at most %d attachments are allowed", maxAttachments)
	}

	now := time.Now()
	req := &domain.IntakeRequest{
		ID:           common.UUIDint64(),
		Reference:    uuid.NewString(),
		Kind:         sub.Kind,
		UserID:       actor.UserID,
		ContactName:  name,
		ContactEmail: addr.Address,
		ContactPhone: strings.TrimSpace(sub.ContactPhone),
		Details:      details,
		Attachments:  attachments,
		Status:       domain.StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, req); err != nil {
		return nil, apperr.Internal("failed to store request", err)
	}

	zap.L().Info("intake request submitted",
		zap.String("namespace", "intake"),
		zap.String("kind", string(req.Kind)),
		zap.String("reference", req.Reference),
		zap.Int64("user_id", req.UserID))
	s.publish(TopicSubmitted, SubmittedEvent{Request: *req})
	return req, nil
}

// Get returns a request visible to actor.
func (s *Service) Get(ctx context.Context, actor Actor, id int64) (*domain.IntakeRequest, error) {
	req, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("request not found")
	}
	if err != nil {
		return nil, apperr.Internal("failed to load request", err)
	}
	if !actor.Admin && req.UserID != actor.UserID {
		return nil, apperr.NotFound("request not found")
	}
	return req, nil
}

// List returns a page of requests; non-admin actors only see their own.
func (s *Service) List(ctx context.Context, actor Actor, filter Filter, page, pageSize int) ([]domain.IntakeRequest, int64, error) {
	if filter.Kind != "" && !filter.Kind.Valid() {
		return nil, 0, apperr.Newf(apperr.CodeInvalidInput, "unknown request kind %q", filter.Kind)
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, apperr.Newf(apperr.CodeInvalidInput, "unknown status %q", filter.Status)
	}
	if !actor.Admin {
		filter.UserID = actor.UserID
	}
	rows, total, err := s.repo.List(ctx, filter, page, pageSize)
	if err != nil {
		return nil, 0, apperr.Internal("failed to list requests", err)
	}
	return rows, total, nil
}

// Transition moves a request to status to, following the transition table.
func (s *Service) Transition(ctx context.Context, actor Actor, id int64, to domain.IntakeStatus, note string) (*domain.IntakeRequest, error) {
	if !to.Valid() {
		return nil, apperr.Newf(apperr.CodeInvalidInput, "unknown status %q", to)
	}
	req, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	from := req.Status
	if !from.CanTransition(to) {
		return nil, apperr.Newf(apperr.CodeConflict, "cannot move request from %s to %s", from, to)
	}

	req.Status = to
	req.StatusNote = strings.TrimSpace(note)
	if err := s.repo.UpdateStatus(ctx, req); errors.Is(err, ErrStale) {
		return nil, apperr.Wrap(apperr.CodeConflict, "request was modified concurrently, please retry", err)
	} else if err != nil {
		return nil, apperr.Internal("failed to update request", err)
	}

	zap.L().Info("intake status changed",
		zap.String("namespace", "intake"),
		zap.String("reference", req.Reference),
		zap.String("from", string(from)),
		zap.String("to", string(to)))
	s.publish(TopicStatusChanged, StatusChangedEvent{Request: *req, From: from})
	return req, nil
}

// Cancel lets the owner withdraw a pending request.
func (s *Service) Cancel(ctx context.Context, actor Actor, id int64) (*domain.IntakeRequest, error) {
	req, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if req.UserID != actor.UserID {
		return nil, apperr.NotFound("request not found")
	}
	return s.Transition(ctx, actor, id, domain.StatusCancelled, "cancelled by requester")
}

// ExportCSV writes every request matching filter as CSV.
func (s *Service) ExportCSV(ctx context.Context, filter Filter, w io.Writer) (int, error) {
	if filter.Kind != "" && !filter.Kind.Valid() {
		return 0, apperr.Newf(apperr.CodeInvalidInput, "unknown request kind %q", filter.Kind)
	}
	rows, err := s.repo.ListAll(ctx, filter)
	if err != nil {
		return 0, apperr.Internal("failed to list requests", err)
	}
	if err := gocsv.Marshal(&rows, w); err != nil {
		return 0, apperr.Internal("failed to write csv", err)
	}
	return len(rows), nil
}

func (s *Service) publish(topic string, event interface{}) {
	if s.bus == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("intake event handler panic",
				zap.String("namespace", "intake"),
				zap.String("topic", topic),
				zap.Any("panic", r))
		}
	}()
	s.bus.Publish(topic, event)
}
