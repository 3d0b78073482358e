package swaps

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/rewear/rewear-backend/internal/items"
	"github.com/rewear/rewear-backend/internal/users"
	"github.com/rewear/rewear-backend/pkg/db"
	"github.com/rewear/rewear-backend/pkg/db/dbtest"
	"github.com/rewear/rewear-backend/pkg/db/models"
	"github.com/rewear/rewear-backend/pkg/enums"
	pkgerrors "github.com/rewear/rewear-backend/pkg/errors"
	"github.com/rewear/rewear-backend/pkg/metrics"
)

type ledgerFixture struct {
	t        *testing.T
	client   *db.Client
	svc      Service
	users    *users.Repository
	items    *items.Repository
	swaps    *Repository
	admin    *models.User
	registry *prometheus.Registry
}

func newLedgerFixture(t *testing.T) *ledgerFixture {
	t.Helper()
	client := dbtest.Open(t)
	f := &ledgerFixture{
		t:        t,
		client:   client,
		users:    users.NewRepository(client.DB()),
		items:    items.NewRepository(client.DB()),
		swaps:    NewRepository(client.DB()),
		registry: prometheus.NewRegistry(),
	}
	f.admin = f.user("admin@rewear.com", 1000, enums.RoleAdmin)
	f.svc = f.service(ServiceParams{})
	return f
}

func (f *ledgerFixture) service(params ServiceParams) Service {
	f.t.Helper()
	params.DB = f.client.DB()
	params.TxRunner = f.client
	params.Fees = NewFeeSchedule(defaultSwapConfig())
	if params.PlatformUserID == uuid.Nil {
		params.PlatformUserID = f.admin.ID
	}
	if params.Metrics == nil {
		params.Metrics = metrics.NewSwapMetrics(f.registry)
	}
	svc, err := NewService(params)
	require.NoError(f.t, err)
	return svc
}

func (f *ledgerFixture) user(email string, points int64, role enums.Role) *models.User {
	f.t.Helper()
	u, err := f.users.Create(context.Background(), users.CreateUserDTO{
		Email: email, PasswordHash: "x", Name: email, Points: points, Role: role,
	})
	require.NoError(f.t, err)
	return u
}

func (f *ledgerFixture) item(owner uuid.UUID, status enums.ModerationStatus) *models.Item {
	f.t.Helper()
	it := &models.Item{
		OwnerID: owner, Title: "Boots", Description: "Leather", Category: "shoes",
		Type: "boots", Size: "42", Condition: "good", Status: status, Available: true,
	}
	require.NoError(f.t, f.items.Create(context.Background(), it))
	return it
}

func (f *ledgerFixture) points(u *models.User) int64 {
	f.t.Helper()
	reloaded, err := f.users.FindByID(context.Background(), u.ID)
	require.NoError(f.t, err)
	return reloaded.Points
}

func (f *ledgerFixture) available(it *models.Item) bool {
	f.t.Helper()
	reloaded, err := f.items.FindByID(context.Background(), it.ID)
	require.NoError(f.t, err)
	return reloaded.Available
}

func (f *ledgerFixture) status(id uuid.UUID) enums.SwapStatus {
	f.t.Helper()
	reloaded, err := f.swaps.FindByID(context.Background(), id)
	require.NoError(f.t, err)
	return reloaded.Status
}

func owner(u *models.User) Actor { return Actor{UserID: u.ID, Role: u.Role} }

func assertCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, code, pkgerrors.As(err).Code(), err.Error())
}

func TestCreateGate(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	a := f.user("a@rewear.test", 100, enums.RoleUser)
	b := f.user("b@rewear.test", 100, enums.RoleUser)

	pending := f.item(b.ID, enums.ModerationStatusPending)
	rejected := f.item(b.ID, enums.ModerationStatusRejected)
	taken := f.item(b.ID, enums.ModerationStatusApproved)
	require.NoError(t, f.items.MarkUnavailable(ctx, taken.ID))
	open := f.item(b.ID, enums.ModerationStatusApproved)

	tests := []struct {
		name      string
		requester uuid.UUID
		itemID    uuid.UUID
		swapType  enums.SwapType
		code      pkgerrors.Code
	}{
		{"missing item", a.ID, uuid.New(), enums.SwapTypeDirect, pkgerrors.CodeNotFound},
		{"unavailable item", a.ID, taken.ID, enums.SwapTypePoints, pkgerrors.CodeUnavailable},
		{"pending moderation", a.ID, pending.ID, enums.SwapTypeDirect, pkgerrors.CodeUnavailable},
		{"rejected moderation", a.ID, rejected.ID, enums.SwapTypeDirect, pkgerrors.CodeUnavailable},
		{"own item", b.ID, open.ID, enums.SwapTypeDirect, pkgerrors.CodeForbidden},
		{"unknown type", a.ID, open.ID, enums.SwapType("barter"), pkgerrors.CodeValidation},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Create(ctx, tc.requester, tc.itemID, tc.swapType)
			assertCode(t, err, tc.code)
		})
	}

	mine, err := f.svc.ListForUser(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, mine)
	assert.Equal(t, int64(100), f.points(a))
}

func TestCreatePointsSwapDebitsUpFront(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	a := f.user("a@rewear.test", 100, enums.RoleUser)
	poor := f.user("poor@rewear.test", 49, enums.RoleUser)
	b := f.user("b@rewear.test", 100, enums.RoleUser)
	it := f.item(b.ID, enums.ModerationStatusApproved)

	swap, err := f.svc.Create(ctx, a.ID, it.ID, enums.SwapTypePoints)
	require.NoError(t, err)
	assert.Equal(t, enums.SwapStatusPending, swap.Status)
	assert.Equal(t, enums.SwapTypePoints, swap.SwapType)
	assert.Equal(t, int64(50), f.points(a))

	_, err = f.svc.Create(ctx, poor.ID, it.ID, enums.SwapTypePoints)
	assertCode(t, err, pkgerrors.CodeInsufficientFunds)
	assert.Equal(t, int64(49), f.points(poor))
	list, err := f.svc.ListForUser(ctx, poor.ID)
	require.NoError(t, err)
	assert.Empty(t, list)

	direct, err := f.svc.Create(ctx, poor.ID, it.ID, enums.SwapTypeDirect)
	require.NoError(t, err)
	assert.Equal(t, enums.SwapTypeDirect, direct.SwapType)
	assert.Equal(t, int64(49), f.points(poor))
}

func TestPointsSwapScenario(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	a := f.user("a@rewear.test", 100, enums.RoleUser)
	b := f.user("b@rewear.test", 100, enums.RoleUser)
	x := f.item(b.ID, enums.ModerationStatusApproved)

	swap, err := f.svc.Create(ctx, a.ID, x.ID, enums.SwapTypePoints)
	require.NoError(t, err)

	done, err := f.svc.UpdateStatus(ctx, owner(b), swap.ID, enums.SwapStatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, enums.SwapStatusCompleted, done.Status)

	// The requester pays at creation and again at completion.
	assert.Equal(t, int64(0), f.points(a))
	assert.Equal(t, int64(145), f.points(b))
	assert.Equal(t, int64(1010), f.points(f.admin))
	assert.False(t, f.available(x))
	assert.Equal(t, enums.SwapStatusCompleted, f.status(swap.ID))

	_, err = f.svc.UpdateStatus(ctx, owner(b), swap.ID, enums.SwapStatusCompleted)
	assertCode(t, err, pkgerrors.CodeStateConflict)
	_, err = f.svc.UpdateStatus(ctx, owner(f.admin), swap.ID, enums.SwapStatusAccepted)
	assertCode(t, err, pkgerrors.CodeStateConflict)
	assert.Equal(t, int64(145), f.points(b))

	_, err = f.svc.Create(ctx, a.ID, x.ID, enums.SwapTypeDirect)
	assertCode(t, err, pkgerrors.CodeUnavailable)

	expected := `
# HELP swap_points_moved_total Absolute points moved by settlements, by party.
# TYPE swap_points_moved_total counter
swap_points_moved_total{party="owner"} 45
swap_points_moved_total{party="platform"} 10
swap_points_moved_total{party="requester"} 100
`
	require.NoError(t, testutil.GatherAndCompare(f.registry, strings.NewReader(expected), "swap_points_moved_total"))
}

func TestPointsCompletionRequiresFullBalance(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	a := f.user("a@rewear.test", 60, enums.RoleUser)
	b := f.user("b@rewear.test", 100, enums.RoleUser)
	x := f.item(b.ID, enums.ModerationStatusApproved)

	swap, err := f.svc.Create(ctx, a.ID, x.ID, enums.SwapTypePoints)
	require.NoError(t, err)
	require.Equal(t, int64(10), f.points(a))

	_, err = f.svc.UpdateStatus(ctx, owner(b), swap.ID, enums.SwapStatusCompleted)
	assertCode(t, err, pkgerrors.CodeInsufficientFunds)

	assert.Equal(t, int64(10), f.points(a))
	assert.Equal(t, int64(100), f.points(b))
	assert.Equal(t, int64(1000), f.points(f.admin))
	assert.True(t, f.available(x))
	assert.Equal(t, enums.SwapStatusPending, f.status(swap.ID))
}

func TestDirectSwapScenarios(t *testing.T) {
	t.Run("owner cannot cover the fee", func(t *testing.T) {
		f := newLedgerFixture(t)
		ctx := context.Background()
		a := f.user("a@rewear.test", 15, enums.RoleUser)
		b := f.user("b@rewear.test", 5, enums.RoleUser)
		x := f.item(b.ID, enums.ModerationStatusApproved)

		swap, err := f.svc.Create(ctx, a.ID, x.ID, enums.SwapTypeDirect)
		require.NoError(t, err)

		_, err = f.svc.UpdateStatus(ctx, owner(b), swap.ID, enums.SwapStatusCompleted)
		assertCode(t, err, pkgerrors.CodeInsufficientFunds)
		assert.Equal(t, int64(15), f.points(a))
		assert.Equal(t, int64(5), f.points(b))
		assert.Equal(t, int64(1000), f.points(f.admin))
		assert.True(t, f.available(x))
		assert.Equal(t, enums.SwapStatusPending, f.status(swap.ID))
	})

	t.Run("settles after acceptance", func(t *testing.T) {
		f := newLedgerFixture(t)
		ctx := context.Background()
		a := f.user("a@rewear.test", 100, enums.RoleUser)
		b := f.user("b@rewear.test", 100, enums.RoleUser)
		x := f.item(b.ID, enums.ModerationStatusApproved)

		swap, err := f.svc.Create(ctx, a.ID, x.ID, enums.SwapTypeDirect)
		require.NoError(t, err)
		assert.Equal(t, int64(100), f.points(a))

		accepted, err := f.svc.UpdateStatus(ctx, owner(b), swap.ID, enums.SwapStatusAccepted)
		require.NoError(t, err)
		assert.Equal(t, enums.SwapStatusAccepted, accepted.Status)
		assert.Equal(t, int64(100), f.points(b))

		_, err = f.svc.UpdateStatus(ctx, owner(b), swap.ID, enums.SwapStatusCompleted)
		require.NoError(t, err)
		assert.Equal(t, int64(90), f.points(a))
		assert.Equal(t, int64(90), f.points(b))
		assert.Equal(t, int64(1002), f.points(f.admin))
		assert.False(t, f.available(x))
	})
}

func TestUpdateStatusAuthorization(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	a := f.user("a@rewear.test", 100, enums.RoleUser)
	b := f.user("b@rewear.test", 100, enums.RoleUser)
	c := f.user("c@rewear.test", 100, enums.RoleUser)
	x := f.item(b.ID, enums.ModerationStatusApproved)

	swap, err := f.svc.Create(ctx, a.ID, x.ID, enums.SwapTypeDirect)
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(ctx, owner(a), swap.ID, enums.SwapStatusAccepted)
	assertCode(t, err, pkgerrors.CodeForbidden)
	_, err = f.svc.UpdateStatus(ctx, owner(c), swap.ID, enums.SwapStatusCompleted)
	assertCode(t, err, pkgerrors.CodeForbidden)
	assert.Equal(t, enums.SwapStatusPending, f.status(swap.ID))

	rejected, err := f.svc.UpdateStatus(ctx, owner(f.admin), swap.ID, enums.SwapStatusRejected)
	require.NoError(t, err)
	assert.Equal(t, enums.SwapStatusRejected, rejected.Status)

	_, err = f.svc.UpdateStatus(ctx, owner(b), uuid.New(), enums.SwapStatusAccepted)
	assertCode(t, err, pkgerrors.CodeNotFound)
}

func TestUpdateStatusTransitions(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	a := f.user("a@rewear.test", 100, enums.RoleUser)
	b := f.user("b@rewear.test", 100, enums.RoleUser)
	x := f.item(b.ID, enums.ModerationStatusApproved)

	swap, err := f.svc.Create(ctx, a.ID, x.ID, enums.SwapTypeDirect)
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(ctx, owner(b), swap.ID, enums.SwapStatusPending)
	assertCode(t, err, pkgerrors.CodeValidation)

	_, err = f.svc.UpdateStatus(ctx, owner(b), swap.ID, enums.SwapStatusAccepted)
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(ctx, owner(b), swap.ID, enums.SwapStatusAccepted)
	assertCode(t, err, pkgerrors.CodeStateConflict)

	_, err = f.svc.UpdateStatus(ctx, owner(b), swap.ID, enums.SwapStatusRejected)
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(ctx, owner(b), swap.ID, enums.SwapStatusAccepted)
	assertCode(t, err, pkgerrors.CodeStateConflict)
	_, err = f.svc.UpdateStatus(ctx, owner(b), swap.ID, enums.SwapStatusCompleted)
	assertCode(t, err, pkgerrors.CodeStateConflict)

	assert.Equal(t, enums.SwapStatusRejected, f.status(swap.ID))
	assert.True(t, f.available(x))
	assert.Equal(t, int64(100), f.points(a))
}

type staleSwapRepo struct {
	swapRepository
	status enums.SwapStatus
}

func (s staleSwapRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.SwapRequest, error) {
	swap, err := s.swapRepository.FindByID(ctx, id)
	if err == nil {
		swap.Status = s.status
	}
	return swap, err
}

func TestConcurrentCompletionSettlesOnce(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	a := f.user("a@rewear.test", 100, enums.RoleUser)
	b := f.user("b@rewear.test", 100, enums.RoleUser)
	x := f.item(b.ID, enums.ModerationStatusApproved)

	swap, err := f.svc.Create(ctx, a.ID, x.ID, enums.SwapTypeDirect)
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(ctx, owner(b), swap.ID, enums.SwapStatusCompleted)
	require.NoError(t, err)

	// A second request that read the swap before the first one committed.
	racer := f.service(ServiceParams{
		SwapRepo: func(tx *gorm.DB) swapRepository {
			return staleSwapRepo{swapRepository: NewRepository(tx), status: enums.SwapStatusPending}
		},
		Metrics: metrics.NewSwapMetrics(nil),
	})
	_, err = racer.UpdateStatus(ctx, owner(b), swap.ID, enums.SwapStatusCompleted)
	assertCode(t, err, pkgerrors.CodeStateConflict)

	assert.Equal(t, int64(90), f.points(a))
	assert.Equal(t, int64(90), f.points(b))
	assert.Equal(t, int64(1002), f.points(f.admin))
}

// drainingBalances spends a user's points inside the settlement transaction
// just before the ledger debits them.
type drainingBalances struct {
	balanceRepository
	tx     *gorm.DB
	victim uuid.UUID
	leave  int64
}

func (d drainingBalances) Debit(ctx context.Context, id uuid.UUID, amount int64) error {
	if id == d.victim {
		if err := d.tx.Model(&models.User{}).Where("id = ?", id).UpdateColumn("points", d.leave).Error; err != nil {
			return err
		}
	}
	return d.balanceRepository.Debit(ctx, id, amount)
}

func TestSettlementReportsBalanceSeenAtDebit(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	a := f.user("a@rewear.test", 100, enums.RoleUser)
	b := f.user("b@rewear.test", 100, enums.RoleUser)
	x := f.item(b.ID, enums.ModerationStatusApproved)

	swap, err := f.svc.Create(ctx, a.ID, x.ID, enums.SwapTypeDirect)
	require.NoError(t, err)

	svc := f.service(ServiceParams{
		UserRepo: func(tx *gorm.DB) balanceRepository {
			return drainingBalances{balanceRepository: users.NewRepository(tx), tx: tx, victim: a.ID, leave: 4}
		},
		Metrics: metrics.NewSwapMetrics(nil),
	})
	_, err = svc.UpdateStatus(ctx, owner(b), swap.ID, enums.SwapStatusCompleted)
	assertCode(t, err, pkgerrors.CodeInsufficientFunds)

	details, ok := pkgerrors.As(err).Details().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, int64(10), details["required"])
	assert.Equal(t, int64(4), details["available"])

	assert.Equal(t, int64(100), f.points(a))
	assert.Equal(t, int64(100), f.points(b))
	assert.Equal(t, int64(1000), f.points(f.admin))
	assert.True(t, f.available(x))
	assert.Equal(t, enums.SwapStatusPending, f.status(swap.ID))
}

func TestSecondSwapOnConsumedItemIsRejected(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	a := f.user("a@rewear.test", 100, enums.RoleUser)
	c := f.user("c@rewear.test", 100, enums.RoleUser)
	b := f.user("b@rewear.test", 100, enums.RoleUser)
	x := f.item(b.ID, enums.ModerationStatusApproved)

	first, err := f.svc.Create(ctx, a.ID, x.ID, enums.SwapTypeDirect)
	require.NoError(t, err)
	second, err := f.svc.Create(ctx, c.ID, x.ID, enums.SwapTypeDirect)
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(ctx, owner(b), first.ID, enums.SwapStatusCompleted)
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(ctx, owner(b), second.ID, enums.SwapStatusCompleted)
	assertCode(t, err, pkgerrors.CodeUnavailable)
	assert.Equal(t, int64(100), f.points(c))
	assert.Equal(t, int64(90), f.points(b))
	assert.Equal(t, enums.SwapStatusPending, f.status(second.ID))
}

func TestMissingPlatformAdminBlocksSettlement(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	a := f.user("a@rewear.test", 100, enums.RoleUser)
	b := f.user("b@rewear.test", 100, enums.RoleUser)
	x := f.item(b.ID, enums.ModerationStatusApproved)

	svc := f.service(ServiceParams{PlatformUserID: uuid.New(), Metrics: metrics.NewSwapMetrics(nil)})
	swap, err := svc.Create(ctx, a.ID, x.ID, enums.SwapTypeDirect)
	require.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, owner(b), swap.ID, enums.SwapStatusCompleted)
	assertCode(t, err, pkgerrors.CodeNotFound)
	assert.Equal(t, int64(100), f.points(a))
	assert.True(t, f.available(x))
}

func TestListForUserNewestFirst(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	a := f.user("a@rewear.test", 100, enums.RoleUser)
	itemID := uuid.New()
	base := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)

	older := &models.SwapRequest{RequesterID: a.ID, ItemID: itemID, SwapType: enums.SwapTypeDirect, CreatedAt: base}
	newer := &models.SwapRequest{RequesterID: a.ID, ItemID: itemID, SwapType: enums.SwapTypePoints, CreatedAt: base.Add(time.Hour)}
	other := &models.SwapRequest{RequesterID: uuid.New(), ItemID: itemID, SwapType: enums.SwapTypeDirect, CreatedAt: base}
	for _, s := range []*models.SwapRequest{older, newer, other} {
		require.NoError(t, f.swaps.Create(ctx, s))
	}

	list, err := f.svc.ListForUser(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, newer.ID, list[0].ID)
	assert.Equal(t, older.ID, list[1].ID)
}

func TestNewServiceRequiresPlatformAdmin(t *testing.T) {
	client := dbtest.Open(t)
	_, err := NewService(ServiceParams{DB: client.DB(), TxRunner: client})
	assert.Error(t, err)
}
