package items

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/rewear/rewear-backend/pkg/config"
	"github.com/rewear/rewear-backend/pkg/db/models"
	"github.com/rewear/rewear-backend/pkg/enums"
	pkgerrors "github.com/rewear/rewear-backend/pkg/errors"
	"github.com/rewear/rewear-backend/pkg/imaging"
	"github.com/rewear/rewear-backend/pkg/logger"
	"github.com/rewear/rewear-backend/pkg/pagination"
)

// Service defines listing operations used by the items controller.
type Service interface {
	Create(ctx context.Context, ownerID uuid.UUID, input CreateItemInput) (*ItemDTO, error)
	List(ctx context.Context, params pagination.Params) (pagination.Page[ItemDTO], error)
	Get(ctx context.Context, id uuid.UUID) (*ItemDTO, error)
	ListMine(ctx context.Context, ownerID uuid.UUID) ([]ItemDTO, error)
}

type itemRepository interface {
	Create(ctx context.Context, item *models.Item) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Item, error)
	ListSwappable(ctx context.Context, params pagination.Params) (pagination.Page[models.Item], error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Item, error)
}

type imageProcessor interface {
	Process(r io.Reader) (*imaging.Result, error)
}

type imageStore interface {
	Save(ctx context.Context, ext string, data []byte) (string, error)
	Delete(ctx context.Context, name string) error
}

// ServiceParams wires the items service.
type ServiceParams struct {
	Repo      itemRepository
	Processor imageProcessor
	Store     imageStore
	Media     config.MediaConfig
	Logger    *logger.Logger
}

type service struct {
	repo      itemRepository
	processor imageProcessor
	store     imageStore
	media     config.MediaConfig
	urls      URLMapper
	logg      *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("item repository required")
	}
	if params.Processor == nil {
		return nil, fmt.Errorf("image processor required")
	}
	if params.Store == nil {
		return nil, fmt.Errorf("image store required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		repo:      params.Repo,
		processor: params.Processor,
		store:     params.Store,
		media:     params.Media,
		urls:      URLMapper{Prefix: params.Media.PublicPrefix},
		logg:      logg,
	}, nil
}

func (s *service) Create(ctx context.Context, ownerID uuid.UUID, input CreateItemInput) (*ItemDTO, error) {
	item, err := s.buildItem(ownerID, input)
	if err != nil {
		return nil, err
	}
	if err := s.checkUploads(input.Images); err != nil {
		return nil, err
	}

	saved := make([]string, 0, len(input.Images))
	for _, upload := range input.Images {
		name, err := s.storeImage(ctx, upload)
		if err != nil {
			s.discard(ctx, saved)
			return nil, err
		}
		saved = append(saved, name)
	}
	item.Images = saved

	if err := s.repo.Create(ctx, item); err != nil {
		s.discard(ctx, saved)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create item")
	}

	ctx = s.logg.WithFields(ctx, map[string]any{"item_id": item.ID.String(), "images": len(saved)})
	s.logg.Info(ctx, "item.created")
	return s.urls.FromModel(item), nil
}

func (s *service) List(ctx context.Context, params pagination.Params) (pagination.Page[ItemDTO], error) {
	page, err := s.repo.ListSwappable(ctx, params)
	if err != nil {
		if _, cursorErr := pagination.ParseCursor(params.Cursor); cursorErr != nil {
			return pagination.Page[ItemDTO]{}, pkgerrors.Wrap(pkgerrors.CodeValidation, cursorErr, "invalid cursor")
		}
		return pagination.Page[ItemDTO]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list items")
	}
	return pagination.Page[ItemDTO]{Items: s.urls.FromModels(page.Items), NextCursor: page.NextCursor}, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*ItemDTO, error) {
	item, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "item not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load item")
	}
	return s.urls.FromModel(item), nil
}

func (s *service) ListMine(ctx context.Context, ownerID uuid.UUID) ([]ItemDTO, error) {
	rows, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list user items")
	}
	return s.urls.FromModels(rows), nil
}

func (s *service) buildItem(ownerID uuid.UUID, input CreateItemInput) (*models.Item, error) {
	if ownerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing user")
	}
	fields := []struct {
		name  string
		value *string
	}{
		{"title", &input.Title},
		{"description", &input.Description},
		{"category", &input.Category},
		{"type", &input.Type},
		{"size", &input.Size},
		{"condition", &input.Condition},
	}
	missing := []string{}
	for _, f := range fields {
		*f.value = strings.TrimSpace(*f.value)
		if *f.value == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "missing required fields").
			WithDetails(map[string]any{"fields": missing})
	}

	return &models.Item{
		OwnerID:     ownerID,
		Title:       input.Title,
		Description: input.Description,
		Category:    input.Category,
		Type:        input.Type,
		Size:        input.Size,
		Condition:   input.Condition,
		Tags:        ParseTags(input.Tags),
		Status:      enums.ModerationStatusPending,
		Available:   true,
	}, nil
}

func (s *service) checkUploads(uploads []ImageUpload) error {
	if s.media.MaxFiles > 0 && len(uploads) > s.media.MaxFiles {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("at most %d images are allowed", s.media.MaxFiles))
	}
	for _, upload := range uploads {
		if s.media.MaxFileBytes > 0 && upload.Size > s.media.MaxFileBytes {
			return pkgerrors.New(pkgerrors.CodeValidation, "image exceeds maximum size").
				WithDetails(map[string]any{"file": upload.Filename, "max_bytes": s.media.MaxFileBytes})
		}
		if upload.Open == nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "image content missing")
		}
	}
	return nil
}

func (s *service) storeImage(ctx context.Context, upload ImageUpload) (string, error) {
	src, err := upload.Open()
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "open image")
	}
	defer src.Close()

	result, err := s.processor.Process(src)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "only image files are allowed").
			WithDetails(map[string]any{"file": upload.Filename})
	}
	name, err := s.store.Save(ctx, imaging.OutputExt, result.Data)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store image")
	}
	return name, nil
}

// discard removes files written for a listing that was never persisted.
func (s *service) discard(ctx context.Context, names []string) {
	var errs error
	for _, name := range names {
		errs = multierr.Append(errs, s.store.Delete(ctx, name))
	}
	if errs != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", errs.Error()), "item.image_cleanup_failed")
	}
}
