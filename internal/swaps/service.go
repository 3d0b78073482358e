package swaps

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rewear/rewear-backend/internal/items"
	"github.com/rewear/rewear-backend/internal/users"
	"github.com/rewear/rewear-backend/pkg/db/models"
	"github.com/rewear/rewear-backend/pkg/enums"
	pkgerrors "github.com/rewear/rewear-backend/pkg/errors"
	"github.com/rewear/rewear-backend/pkg/logger"
	"github.com/rewear/rewear-backend/pkg/metrics"
)

// Service is the swap ledger: request creation, status transitions and the
// points settlement that runs when a swap completes.
type Service interface {
	Create(ctx context.Context, requesterID uuid.UUID, itemID uuid.UUID, swapType enums.SwapType) (*SwapDTO, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]SwapDTO, error)
	UpdateStatus(ctx context.Context, actor Actor, swapID uuid.UUID, target enums.SwapStatus) (*SwapDTO, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type swapRepository interface {
	Create(ctx context.Context, swap *models.SwapRequest) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.SwapRequest, error)
	ListByRequester(ctx context.Context, requesterID uuid.UUID) ([]models.SwapRequest, error)
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to enums.SwapStatus) error
}

type itemRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Item, error)
	MarkUnavailable(ctx context.Context, id uuid.UUID) error
}

type balanceRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	Debit(ctx context.Context, id uuid.UUID, amount int64) error
	Credit(ctx context.Context, id uuid.UUID, amount int64) error
}

// ServiceParams wires the ledger. Repositories are built per transaction from
// the factories; nil factories fall back to the gorm repositories.
type ServiceParams struct {
	DB             *gorm.DB
	TxRunner       txRunner
	SwapRepo       func(tx *gorm.DB) swapRepository
	ItemRepo       func(tx *gorm.DB) itemRepository
	UserRepo       func(tx *gorm.DB) balanceRepository
	Fees           FeeSchedule
	PlatformUserID uuid.UUID
	Metrics        *metrics.SwapMetrics
	Logger         *logger.Logger
}

type service struct {
	db         *gorm.DB
	tx         txRunner
	swapRepo   func(tx *gorm.DB) swapRepository
	itemRepo   func(tx *gorm.DB) itemRepository
	userRepo   func(tx *gorm.DB) balanceRepository
	fees       FeeSchedule
	platformID uuid.UUID
	metrics    *metrics.SwapMetrics
	logg       *logger.Logger
	now        func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("database required")
	}
	if params.TxRunner == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.PlatformUserID == uuid.Nil {
		return nil, fmt.Errorf("platform admin account required")
	}
	svc := &service{
		db:         params.DB,
		tx:         params.TxRunner,
		swapRepo:   params.SwapRepo,
		itemRepo:   params.ItemRepo,
		userRepo:   params.UserRepo,
		fees:       params.Fees,
		platformID: params.PlatformUserID,
		metrics:    params.Metrics,
		logg:       params.Logger,
		now:        time.Now,
	}
	if svc.swapRepo == nil {
		svc.swapRepo = func(tx *gorm.DB) swapRepository { return NewRepository(tx) }
	}
	if svc.itemRepo == nil {
		svc.itemRepo = func(tx *gorm.DB) itemRepository { return items.NewRepository(tx) }
	}
	if svc.userRepo == nil {
		svc.userRepo = func(tx *gorm.DB) balanceRepository { return users.NewRepository(tx) }
	}
	if svc.logg == nil {
		svc.logg = logger.Nop()
	}
	return svc, nil
}

func (s *service) Create(ctx context.Context, requesterID uuid.UUID, itemID uuid.UUID, swapType enums.SwapType) (*SwapDTO, error) {
	if !swapType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "swapType must be points or direct")
	}
	charge := s.fees.CreationCharge(swapType)

	var created *models.SwapRequest
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		item, err := s.itemRepo(tx).FindByID(ctx, itemID)
		if err != nil {
			return notFoundOr(err, "item not found", "load item")
		}
		if !item.Swappable() {
			return pkgerrors.New(pkgerrors.CodeUnavailable, "item not available")
		}
		if item.OwnerID == requesterID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "cannot request a swap on your own item")
		}

		balances := s.userRepo(tx)
		requester, err := balances.FindByID(ctx, requesterID)
		if err != nil {
			return notFoundOr(err, "user not found", "load requester")
		}
		if requester.Points < charge {
			return insufficientPoints(charge, requester.Points)
		}
		if err := balances.Debit(ctx, requesterID, charge); err != nil {
			if errors.Is(err, users.ErrInsufficientPoints) {
				return insufficientPoints(charge, requester.Points)
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "debit requester")
		}

		swap := &models.SwapRequest{
			RequesterID: requesterID,
			ItemID:      itemID,
			SwapType:    swapType,
			Status:      enums.SwapStatusPending,
		}
		if err := s.swapRepo(tx).Create(ctx, swap); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create swap request")
		}
		created = swap
		return nil
	})
	if err != nil {
		return nil, asDependency(err, "create swap request")
	}

	s.metrics.IncCreated(string(swapType))
	s.metrics.AddPoints(metrics.PartyRequester, charge)
	ctx = s.logg.WithFields(ctx, map[string]any{
		"swap_id":   created.ID.String(),
		"item_id":   itemID.String(),
		"swap_type": string(swapType),
		"charged":   charge,
	})
	s.logg.Info(ctx, "swap.created")
	return FromModel(created), nil
}

func (s *service) ListForUser(ctx context.Context, userID uuid.UUID) ([]SwapDTO, error) {
	rows, err := s.swapRepo(s.db).ListByRequester(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list swaps")
	}
	return FromModels(rows), nil
}

func (s *service) UpdateStatus(ctx context.Context, actor Actor, swapID uuid.UUID, target enums.SwapStatus) (*SwapDTO, error) {
	if target == enums.SwapStatusPending || !target.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "status must be accepted, rejected or completed")
	}

	swap, err := s.swapRepo(s.db).FindByID(ctx, swapID)
	if err != nil {
		return nil, notFoundOr(err, "swap request not found", "load swap request")
	}
	item, err := s.itemRepo(s.db).FindByID(ctx, swap.ItemID)
	if err != nil {
		return nil, notFoundOr(err, "item not found", "load item")
	}

	ctx = s.logg.WithFields(ctx, map[string]any{
		"swap_id": swap.ID.String(),
		"from":    string(swap.Status),
		"to":      string(target),
	})

	if swap.Status == target {
		s.metrics.IncTransition(string(target), metrics.OutcomeRejected)
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("swap request is already %s", target))
	}
	if actor.UserID != item.OwnerID && !actor.Role.IsAdmin() {
		s.metrics.IncTransition(string(target), metrics.OutcomeRejected)
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the item owner or an admin can update this swap")
	}
	if !swap.Status.CanTransitionTo(target) {
		s.metrics.IncTransition(string(target), metrics.OutcomeRejected)
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("cannot move swap request from %s to %s", swap.Status, target)).
			WithDetails(map[string]any{"from": swap.Status, "to": target})
	}

	if target == enums.SwapStatusCompleted {
		err = s.settle(ctx, swap, item)
	} else {
		err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			return transition(ctx, s.swapRepo(tx), swap, target)
		})
	}
	if err != nil {
		s.metrics.IncTransition(string(target), metrics.OutcomeRejected)
		return nil, asDependency(err, "update swap status")
	}

	s.metrics.IncTransition(string(target), metrics.OutcomeApplied)
	s.logg.Info(ctx, "swap.status_updated")
	swap.Status = target
	return FromModel(swap), nil
}

// settle validates every balance before any write, then applies the swap
// status, item availability and balance movements in one transaction.
func (s *service) settle(ctx context.Context, swap *models.SwapRequest, item *models.Item) error {
	plan, err := s.fees.Settle(swap.SwapType)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "price settlement")
	}
	started := s.now()

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		balances := s.userRepo(tx)

		requester, err := balances.FindByID(ctx, swap.RequesterID)
		if err != nil {
			return notFoundOr(err, "requester not found", "load requester")
		}
		owner, err := balances.FindByID(ctx, item.OwnerID)
		if err != nil {
			return notFoundOr(err, "item owner not found", "load owner")
		}
		if _, err := balances.FindByID(ctx, s.platformID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				s.logg.Error(ctx, "swap.platform_admin_missing", err)
			}
			return notFoundOr(err, "platform admin account not found", "load platform admin")
		}

		if requester.Points < plan.RequesterDebit {
			return insufficientPoints(plan.RequesterDebit, requester.Points)
		}
		if owner.Points < plan.OwnerDebit {
			return insufficientPoints(plan.OwnerDebit, owner.Points)
		}

		if err := transition(ctx, s.swapRepo(tx), swap, enums.SwapStatusCompleted); err != nil {
			return err
		}
		if err := s.itemRepo(tx).MarkUnavailable(ctx, item.ID); err != nil {
			if errors.Is(err, items.ErrItemUnavailable) {
				return pkgerrors.New(pkgerrors.CodeUnavailable, "item not available")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark item unavailable")
		}

		movements := []struct {
			userID uuid.UUID
			amount int64
			debit  bool
		}{
			{swap.RequesterID, plan.RequesterDebit, true},
			{item.OwnerID, plan.OwnerDebit, true},
			{item.OwnerID, plan.OwnerCredit, false},
			{s.platformID, plan.PlatformCredit, false},
		}
		for _, m := range movements {
			if m.debit {
				err = balances.Debit(ctx, m.userID, m.amount)
			} else {
				err = balances.Credit(ctx, m.userID, m.amount)
			}
			if errors.Is(err, users.ErrInsufficientPoints) {
				// balance moved after the pre-check; report what is there now
				current, ferr := balances.FindByID(ctx, m.userID)
				if ferr != nil {
					return pkgerrors.New(pkgerrors.CodeInsufficientFunds, "insufficient points").
						WithDetails(map[string]any{"required": m.amount})
				}
				return insufficientPoints(m.amount, current.Points)
			}
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "apply settlement")
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.metrics.ObserveSettlement(string(swap.SwapType), s.now().Sub(started))
	s.metrics.AddPoints(metrics.PartyRequester, plan.RequesterDebit)
	s.metrics.AddPoints(metrics.PartyOwner, plan.OwnerCredit-plan.OwnerDebit)
	s.metrics.AddPoints(metrics.PartyPlatform, plan.PlatformCredit)

	ctx = s.logg.WithFields(ctx, map[string]any{
		"swap_type":       string(swap.SwapType),
		"requester_debit": plan.RequesterDebit,
		"owner_delta":     plan.OwnerCredit - plan.OwnerDebit,
		"platform_credit": plan.PlatformCredit,
	})
	s.logg.Info(ctx, "swap.completed")
	return nil
}

func transition(ctx context.Context, repo swapRepository, swap *models.SwapRequest, target enums.SwapStatus) error {
	if err := repo.TransitionStatus(ctx, swap.ID, swap.Status, target); err != nil {
		if errors.Is(err, ErrStatusChanged) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "swap request was updated concurrently")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update swap status")
	}
	return nil
}

func insufficientPoints(required, available int64) error {
	return pkgerrors.New(pkgerrors.CodeInsufficientFunds, "insufficient points").
		WithDetails(map[string]any{"required": required, "available": available})
}

func notFoundOr(err error, notFound, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, notFound)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, op)
}

// asDependency keeps typed errors and classifies anything else as a storage failure.
func asDependency(err error, op string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, op)
}
