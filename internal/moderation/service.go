package moderation

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/rewear/rewear-backend/internal/items"
	"github.com/rewear/rewear-backend/pkg/db/models"
	"github.com/rewear/rewear-backend/pkg/enums"
	pkgerrors "github.com/rewear/rewear-backend/pkg/errors"
	"github.com/rewear/rewear-backend/pkg/logger"
)

// Service is the admin-only moderation queue.
type Service interface {
	ListPending(ctx context.Context) ([]items.ItemDTO, error)
	Decide(ctx context.Context, itemID uuid.UUID, status enums.ModerationStatus) (*items.ItemDTO, error)
	Delete(ctx context.Context, itemID uuid.UUID) error
}

type itemRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Item, error)
	ListByStatus(ctx context.Context, status enums.ModerationStatus) ([]models.Item, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.ModerationStatus) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type imageRemover interface {
	Delete(ctx context.Context, name string) error
}

// ServiceParams wires the moderation service.
type ServiceParams struct {
	Repo        itemRepository
	TxRunner    txRunner
	RepoFactory func(tx *gorm.DB) itemRepository
	Images      imageRemover
	URLs        items.URLMapper
	Logger      *logger.Logger
}

type service struct {
	repo    itemRepository
	tx      txRunner
	factory func(tx *gorm.DB) itemRepository
	images  imageRemover
	urls    items.URLMapper
	logg    *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("item repository required")
	}
	if params.TxRunner == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Images == nil {
		return nil, fmt.Errorf("image remover required")
	}
	factory := params.RepoFactory
	if factory == nil {
		factory = func(tx *gorm.DB) itemRepository { return items.NewRepository(tx) }
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		repo:    params.Repo,
		tx:      params.TxRunner,
		factory: factory,
		images:  params.Images,
		urls:    params.URLs,
		logg:    logg,
	}, nil
}

func (s *service) ListPending(ctx context.Context) ([]items.ItemDTO, error) {
	rows, err := s.repo.ListByStatus(ctx, enums.ModerationStatusPending)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list pending items")
	}
	return s.urls.FromModels(rows), nil
}

func (s *service) Decide(ctx context.Context, itemID uuid.UUID, status enums.ModerationStatus) (*items.ItemDTO, error) {
	if status != enums.ModerationStatusApproved && status != enums.ModerationStatusRejected {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "status must be approved or rejected")
	}

	var updated *models.Item
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.factory(tx)
		if err := repo.UpdateStatus(ctx, itemID, status); err != nil {
			return err
		}
		item, err := repo.FindByID(ctx, itemID)
		if err != nil {
			return err
		}
		updated = item
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "item not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update item status")
	}

	ctx = s.logg.WithFields(ctx, map[string]any{"item_id": itemID.String(), "status": string(status)})
	s.logg.Info(ctx, "item.moderated")
	return s.urls.FromModel(updated), nil
}

// Delete removes the listing first and its stored images second. Image
// removal failures are logged and do not fail the request.
func (s *service) Delete(ctx context.Context, itemID uuid.UUID) error {
	var images []string
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.factory(tx)
		item, err := repo.FindByID(ctx, itemID)
		if err != nil {
			return err
		}
		images = append(images, item.Images...)
		return repo.Delete(ctx, itemID)
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "item not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete item")
	}

	ctx = s.logg.WithField(ctx, "item_id", itemID.String())
	var cleanup error
	for _, name := range images {
		cleanup = multierr.Append(cleanup, s.images.Delete(ctx, name))
	}
	if cleanup != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", cleanup.Error()), "item.image_cleanup_failed")
	}
	s.logg.Info(ctx, "item.deleted")
	return nil
}
