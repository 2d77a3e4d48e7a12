package settlement

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"tracknow/internal/domain"
	"tracknow/internal/repository/postgres"
	apperrors "tracknow/pkg/errors"
	"tracknow/pkg/logger"
)

type mockSaleRepo struct {
	mock.Mock
}

func (m *mockSaleRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.Sale, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Sale), args.Error(1)
}

func (m *mockSaleRepo) UpdateStatusGuarded(ctx context.Context, id uuid.UUID, from, to domain.SaleStatus) error {
	args := m.Called(ctx, id, from, to)
	return args.Error(0)
}

func (m *mockSaleRepo) MarkSettled(ctx context.Context, id uuid.UUID, settledAt time.Time) error {
	args := m.Called(ctx, id, settledAt)
	return args.Error(0)
}

type mockCommissionRepo struct {
	mock.Mock
}

func (m *mockCommissionRepo) CreateIfAbsent(ctx context.Context, commission *domain.Commission) (bool, error) {
	args := m.Called(ctx, commission)
	return args.Bool(0), args.Error(1)
}

func (m *mockCommissionRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.Commission, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Commission), args.Error(1)
}

func (m *mockCommissionRepo) FindBySaleID(ctx context.Context, saleID uuid.UUID) (*domain.Commission, error) {
	args := m.Called(ctx, saleID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Commission), args.Error(1)
}

func (m *mockCommissionRepo) UpdateStatusGuarded(ctx context.Context, id uuid.UUID, from, to domain.CommissionStatus, fields postgres.TransitionFields) error {
	args := m.Called(ctx, id, from, to, fields)
	return args.Error(0)
}

func (m *mockCommissionRepo) ListByInfluencer(ctx context.Context, influencerID uuid.UUID, limit, offset int) ([]*domain.Commission, error) {
	args := m.Called(ctx, influencerID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Commission), args.Error(1)
}

func (m *mockCommissionRepo) ListByStatus(ctx context.Context, status domain.CommissionStatus, limit, offset int) ([]*domain.Commission, error) {
	args := m.Called(ctx, status, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Commission), args.Error(1)
}

type mockUserRepo struct {
	mock.Mock
}

func (m *mockUserRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

type mockRateSource struct {
	mock.Mock
}

func (m *mockRateSource) CommissionRate(ctx context.Context, productID, linkID uuid.UUID) (decimal.Decimal, error) {
	args := m.Called(ctx, productID, linkID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) KYCDecision(ctx context.Context, user *domain.User, status domain.KYCStatus, reason string) {
	m.Called(ctx, user, status, reason)
}

func (m *mockNotifier) CommissionStatusChanged(ctx context.Context, user *domain.User, commission *domain.Commission) {
	m.Called(ctx, user, commission)
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func newTestService(sales *mockSaleRepo, commissions *mockCommissionRepo, users *mockUserRepo, rates *mockRateSource, notifier *mockNotifier) *Service {
	return NewService(sales, commissions, users, rates, notifier,
		dec("5"), []string{"MAD", "EUR", "USD"}, logger.NewNop())
}

func completedSale() *domain.Sale {
	return &domain.Sale{
		ID:           uuid.New(),
		LinkID:       uuid.New(),
		ProductID:    uuid.New(),
		InfluencerID: uuid.New(),
		MerchantID:   uuid.New(),
		GrossAmount:  dec("100.00"),
		Currency:     "EUR",
		Status:       domain.SaleStatusCompleted,
	}
}

func TestComputeSplit(t *testing.T) {
	tests := []struct {
		name           string
		gross          string
		commissionRate string
		platformRate   string
		wantInfluencer string
		wantPlatform   string
		wantMerchant   string
	}{
		{"round amounts", "100.00", "15", "5", "15", "5", "80"},
		{"repeating remainder", "333.33", "15", "5", "50", "16.67", "266.66"},
		{"half rounds up", "0.10", "15", "5", "0.02", "0.01", "0.07"},
		{"zero rate", "100.00", "0", "5", "0", "5", "95"},
		{"full rate", "50.00", "100", "0", "50", "0", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			influencer, platform, merchant := ComputeSplit(dec(tt.gross), dec(tt.commissionRate), dec(tt.platformRate))

			assert.True(t, dec(tt.wantInfluencer).Equal(influencer), "influencer: got %s", influencer)
			assert.True(t, dec(tt.wantPlatform).Equal(platform), "platform: got %s", platform)
			assert.True(t, dec(tt.wantMerchant).Equal(merchant), "merchant: got %s", merchant)

			sum := influencer.Add(platform).Add(merchant)
			assert.True(t, dec(tt.gross).Equal(sum), "components must sum to gross, got %s", sum)
		})
	}
}

func TestSettle_CreatesCommission(t *testing.T) {
	sales := new(mockSaleRepo)
	commissions := new(mockCommissionRepo)
	users := new(mockUserRepo)
	rates := new(mockRateSource)
	notifier := new(mockNotifier)
	svc := newTestService(sales, commissions, users, rates, notifier)

	sale := completedSale()
	sale.GrossAmount = dec("333.33")

	sales.On("FindByID", mock.Anything, sale.ID).Return(sale, nil)
	rates.On("CommissionRate", mock.Anything, sale.ProductID, sale.LinkID).Return(dec("15"), nil)
	commissions.On("CreateIfAbsent", mock.Anything, mock.AnythingOfType("*domain.Commission")).Return(true, nil)
	sales.On("MarkSettled", mock.Anything, sale.ID, mock.AnythingOfType("time.Time")).Return(nil)

	split, commission, err := svc.Settle(context.Background(), sale.ID)
	require.NoError(t, err)

	assert.True(t, dec("50").Equal(split.InfluencerCommission))
	assert.True(t, dec("16.67").Equal(split.PlatformCommission))
	assert.True(t, dec("266.66").Equal(split.MerchantRevenue))
	assert.True(t, dec("50").Equal(commission.Amount))
	assert.Equal(t, domain.CommissionStatusPending, commission.Status)
	assert.Equal(t, sale.InfluencerID, commission.InfluencerID)

	commissions.AssertExpectations(t)
	sales.AssertExpectations(t)
}

func TestSettle_IdempotentOnRepeat(t *testing.T) {
	sales := new(mockSaleRepo)
	commissions := new(mockCommissionRepo)
	users := new(mockUserRepo)
	rates := new(mockRateSource)
	notifier := new(mockNotifier)
	svc := newTestService(sales, commissions, users, rates, notifier)

	sale := completedSale()
	existing := &domain.Commission{
		ID:           uuid.New(),
		SaleID:       sale.ID,
		InfluencerID: sale.InfluencerID,
		Amount:       dec("15"),
		Currency:     "EUR",
		Status:       domain.CommissionStatusPending,
	}

	sales.On("FindByID", mock.Anything, sale.ID).Return(sale, nil)
	rates.On("CommissionRate", mock.Anything, sale.ProductID, sale.LinkID).Return(dec("15"), nil)
	// The race loser's insert is a no-op; it must surface the winner's row.
	commissions.On("CreateIfAbsent", mock.Anything, mock.AnythingOfType("*domain.Commission")).Return(false, nil)
	commissions.On("FindBySaleID", mock.Anything, sale.ID).Return(existing, nil)

	split, commission, err := svc.Settle(context.Background(), sale.ID)
	require.NoError(t, err)

	assert.Equal(t, existing.ID, commission.ID)
	assert.True(t, existing.Amount.Equal(split.InfluencerCommission))
	sales.AssertNotCalled(t, "MarkSettled", mock.Anything, mock.Anything, mock.Anything)
	commissions.AssertExpectations(t)
}

func TestSettle_RejectsUnsettleableSale(t *testing.T) {
	for _, status := range []domain.SaleStatus{domain.SaleStatusPending, domain.SaleStatusRefunded} {
		t.Run(string(status), func(t *testing.T) {
			sales := new(mockSaleRepo)
			commissions := new(mockCommissionRepo)
			svc := newTestService(sales, commissions, new(mockUserRepo), new(mockRateSource), new(mockNotifier))

			sale := completedSale()
			sale.Status = status
			sales.On("FindByID", mock.Anything, sale.ID).Return(sale, nil)

			_, _, err := svc.Settle(context.Background(), sale.ID)
			assert.ErrorIs(t, err, apperrors.ErrInvalidSaleState)
			commissions.AssertNotCalled(t, "CreateIfAbsent", mock.Anything, mock.Anything)
		})
	}
}

func TestSettle_RejectsNonPositiveAmount(t *testing.T) {
	sales := new(mockSaleRepo)
	svc := newTestService(sales, new(mockCommissionRepo), new(mockUserRepo), new(mockRateSource), new(mockNotifier))

	sale := completedSale()
	sale.GrossAmount = dec("0")
	sales.On("FindByID", mock.Anything, sale.ID).Return(sale, nil)

	_, _, err := svc.Settle(context.Background(), sale.ID)
	assert.ErrorIs(t, err, apperrors.ErrInvalidSaleState)
}

func TestSettle_RejectsRatesExceedingGross(t *testing.T) {
	sales := new(mockSaleRepo)
	commissions := new(mockCommissionRepo)
	rates := new(mockRateSource)
	svc := newTestService(sales, commissions, new(mockUserRepo), rates, new(mockNotifier))

	// 98% influencer + 5% platform consumes 103% of the sale.
	sale := completedSale()
	sales.On("FindByID", mock.Anything, sale.ID).Return(sale, nil)
	rates.On("CommissionRate", mock.Anything, sale.ProductID, sale.LinkID).Return(dec("98"), nil)

	_, _, err := svc.Settle(context.Background(), sale.ID)
	assert.ErrorIs(t, err, apperrors.ErrInvalidRate)
	commissions.AssertNotCalled(t, "CreateIfAbsent", mock.Anything, mock.Anything)
}

func TestSettle_RejectsUnsupportedCurrency(t *testing.T) {
	sales := new(mockSaleRepo)
	svc := newTestService(sales, new(mockCommissionRepo), new(mockUserRepo), new(mockRateSource), new(mockNotifier))

	sale := completedSale()
	sale.Currency = "GBP"
	sales.On("FindByID", mock.Anything, sale.ID).Return(sale, nil)

	_, _, err := svc.Settle(context.Background(), sale.ID)
	assert.ErrorIs(t, err, apperrors.ErrUnsupportedCurrency)
}

func TestSettle_SaleNotFound(t *testing.T) {
	sales := new(mockSaleRepo)
	svc := newTestService(sales, new(mockCommissionRepo), new(mockUserRepo), new(mockRateSource), new(mockNotifier))

	id := uuid.New()
	sales.On("FindByID", mock.Anything, id).Return(nil, apperrors.ErrSaleNotFound)

	_, _, err := svc.Settle(context.Background(), id)
	assert.ErrorIs(t, err, apperrors.ErrSaleNotFound)
}

func TestTransition_RequiresAdmin(t *testing.T) {
	svc := newTestService(new(mockSaleRepo), new(mockCommissionRepo), new(mockUserRepo), new(mockRateSource), new(mockNotifier))

	for _, role := range []domain.Role{domain.RoleInfluencer, domain.RoleMerchant, domain.RoleCommercial} {
		_, err := svc.Transition(context.Background(), TransitionRequest{
			CommissionID: uuid.New(),
			To:           domain.CommissionStatusApproved,
			ActorRole:    role,
		})
		assert.ErrorIs(t, err, apperrors.ErrForbidden, "role %s must not transition", role)
	}
}

func TestTransition_Approve(t *testing.T) {
	commissions := new(mockCommissionRepo)
	users := new(mockUserRepo)
	notifier := new(mockNotifier)
	svc := newTestService(new(mockSaleRepo), commissions, users, new(mockRateSource), notifier)

	commission := &domain.Commission{
		ID:           uuid.New(),
		SaleID:       uuid.New(),
		InfluencerID: uuid.New(),
		Amount:       dec("15"),
		Currency:     "EUR",
		Status:       domain.CommissionStatusPending,
	}
	approved := *commission
	approved.Status = domain.CommissionStatusApproved
	influencer := &domain.User{ID: commission.InfluencerID, Email: "inf@example.com", FirstName: "Nadia"}

	commissions.On("FindByID", mock.Anything, commission.ID).Return(commission, nil).Once()
	commissions.On("UpdateStatusGuarded", mock.Anything, commission.ID,
		domain.CommissionStatusPending, domain.CommissionStatusApproved, mock.Anything).Return(nil)
	commissions.On("FindByID", mock.Anything, commission.ID).Return(&approved, nil).Once()
	users.On("FindByID", mock.Anything, commission.InfluencerID).Return(influencer, nil)
	notifier.On("CommissionStatusChanged", mock.Anything, influencer, &approved).Return()

	updated, err := svc.Transition(context.Background(), TransitionRequest{
		CommissionID: commission.ID,
		To:           domain.CommissionStatusApproved,
		ActorRole:    domain.RoleAdmin,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.CommissionStatusApproved, updated.Status)
	notifier.AssertExpectations(t)
}

func TestTransition_PayRequiresPaymentMethod(t *testing.T) {
	commissions := new(mockCommissionRepo)
	svc := newTestService(new(mockSaleRepo), commissions, new(mockUserRepo), new(mockRateSource), new(mockNotifier))

	commission := &domain.Commission{ID: uuid.New(), Status: domain.CommissionStatusApproved}
	commissions.On("FindByID", mock.Anything, commission.ID).Return(commission, nil)

	_, err := svc.Transition(context.Background(), TransitionRequest{
		CommissionID: commission.ID,
		To:           domain.CommissionStatusPaid,
		ActorRole:    domain.RoleAdmin,
	})
	assert.ErrorIs(t, err, apperrors.ErrPaymentMethodRequired)
	commissions.AssertNotCalled(t, "UpdateStatusGuarded",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestTransition_PaySetsMethodAndTimestamp(t *testing.T) {
	commissions := new(mockCommissionRepo)
	users := new(mockUserRepo)
	notifier := new(mockNotifier)
	svc := newTestService(new(mockSaleRepo), commissions, users, new(mockRateSource), notifier)

	commission := &domain.Commission{
		ID:           uuid.New(),
		InfluencerID: uuid.New(),
		Amount:       dec("50"),
		Currency:     "MAD",
		Status:       domain.CommissionStatusApproved,
	}
	paid := *commission
	paid.Status = domain.CommissionStatusPaid
	influencer := &domain.User{ID: commission.InfluencerID}

	commissions.On("FindByID", mock.Anything, commission.ID).Return(commission, nil).Once()
	commissions.On("UpdateStatusGuarded", mock.Anything, commission.ID,
		domain.CommissionStatusApproved, domain.CommissionStatusPaid,
		mock.MatchedBy(func(f postgres.TransitionFields) bool {
			return f.PaymentMethod != nil && *f.PaymentMethod == "bank_transfer" && f.PaidAt != nil
		})).Return(nil)
	commissions.On("FindByID", mock.Anything, commission.ID).Return(&paid, nil).Once()
	users.On("FindByID", mock.Anything, commission.InfluencerID).Return(influencer, nil)
	notifier.On("CommissionStatusChanged", mock.Anything, influencer, &paid).Return()

	updated, err := svc.Transition(context.Background(), TransitionRequest{
		CommissionID:  commission.ID,
		To:            domain.CommissionStatusPaid,
		ActorRole:     domain.RoleAdmin,
		PaymentMethod: "bank_transfer",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.CommissionStatusPaid, updated.Status)
	commissions.AssertExpectations(t)
}

func TestTransition_RejectRequiresReason(t *testing.T) {
	commissions := new(mockCommissionRepo)
	svc := newTestService(new(mockSaleRepo), commissions, new(mockUserRepo), new(mockRateSource), new(mockNotifier))

	commission := &domain.Commission{ID: uuid.New(), Status: domain.CommissionStatusPending}
	commissions.On("FindByID", mock.Anything, commission.ID).Return(commission, nil)

	_, err := svc.Transition(context.Background(), TransitionRequest{
		CommissionID: commission.ID,
		To:           domain.CommissionStatusRejected,
		ActorRole:    domain.RoleAdmin,
	})
	assert.ErrorIs(t, err, apperrors.ErrRejectReasonRequired)
}

func TestTransition_TerminalStatesAreFinal(t *testing.T) {
	commissions := new(mockCommissionRepo)
	svc := newTestService(new(mockSaleRepo), commissions, new(mockUserRepo), new(mockRateSource), new(mockNotifier))

	commission := &domain.Commission{ID: uuid.New(), Status: domain.CommissionStatusPaid}
	commissions.On("FindByID", mock.Anything, commission.ID).Return(commission, nil)

	_, err := svc.Transition(context.Background(), TransitionRequest{
		CommissionID: commission.ID,
		To:           domain.CommissionStatusRejected,
		ActorRole:    domain.RoleAdmin,
		Reason:       "late chargeback",
	})
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
}

func TestTransition_GuardLosesRace(t *testing.T) {
	commissions := new(mockCommissionRepo)
	svc := newTestService(new(mockSaleRepo), commissions, new(mockUserRepo), new(mockRateSource), new(mockNotifier))

	commission := &domain.Commission{ID: uuid.New(), Status: domain.CommissionStatusPending}
	commissions.On("FindByID", mock.Anything, commission.ID).Return(commission, nil)
	commissions.On("UpdateStatusGuarded", mock.Anything, commission.ID,
		domain.CommissionStatusPending, domain.CommissionStatusApproved, mock.Anything).
		Return(apperrors.ErrInvalidTransition)

	_, err := svc.Transition(context.Background(), TransitionRequest{
		CommissionID: commission.ID,
		To:           domain.CommissionStatusApproved,
		ActorRole:    domain.RoleAdmin,
	})
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
}

func TestRefundSale_CancelsPendingCommission(t *testing.T) {
	sales := new(mockSaleRepo)
	commissions := new(mockCommissionRepo)
	svc := newTestService(sales, commissions, new(mockUserRepo), new(mockRateSource), new(mockNotifier))

	saleID := uuid.New()
	commission := &domain.Commission{ID: uuid.New(), SaleID: saleID, Status: domain.CommissionStatusPending}

	sales.On("UpdateStatusGuarded", mock.Anything, saleID,
		domain.SaleStatusCompleted, domain.SaleStatusRefunded).Return(nil)
	commissions.On("FindBySaleID", mock.Anything, saleID).Return(commission, nil)
	commissions.On("UpdateStatusGuarded", mock.Anything, commission.ID,
		domain.CommissionStatusPending, domain.CommissionStatusRejected,
		mock.MatchedBy(func(f postgres.TransitionFields) bool {
			return f.RejectionReason != nil && *f.RejectionReason == "sale refunded"
		})).Return(nil)

	err := svc.RefundSale(context.Background(), saleID)
	require.NoError(t, err)
	commissions.AssertExpectations(t)
}

func TestRefundSale_LeavesPaidCommissionAlone(t *testing.T) {
	sales := new(mockSaleRepo)
	commissions := new(mockCommissionRepo)
	svc := newTestService(sales, commissions, new(mockUserRepo), new(mockRateSource), new(mockNotifier))

	saleID := uuid.New()
	commission := &domain.Commission{ID: uuid.New(), SaleID: saleID, Amount: dec("15"), Status: domain.CommissionStatusPaid}

	sales.On("UpdateStatusGuarded", mock.Anything, saleID,
		domain.SaleStatusCompleted, domain.SaleStatusRefunded).Return(nil)
	commissions.On("FindBySaleID", mock.Anything, saleID).Return(commission, nil)

	err := svc.RefundSale(context.Background(), saleID)
	require.NoError(t, err)
	commissions.AssertNotCalled(t, "UpdateStatusGuarded",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestGetCommission_InfluencerSeesOnlyOwn(t *testing.T) {
	commissions := new(mockCommissionRepo)
	svc := newTestService(new(mockSaleRepo), commissions, new(mockUserRepo), new(mockRateSource), new(mockNotifier))

	owner := uuid.New()
	commission := &domain.Commission{ID: uuid.New(), InfluencerID: owner, Status: domain.CommissionStatusPending}
	commissions.On("FindByID", mock.Anything, commission.ID).Return(commission, nil)

	got, err := svc.GetCommission(context.Background(), commission.ID, owner, domain.RoleInfluencer)
	require.NoError(t, err)
	assert.Equal(t, commission.ID, got.ID)

	_, err = svc.GetCommission(context.Background(), commission.ID, uuid.New(), domain.RoleInfluencer)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
}
