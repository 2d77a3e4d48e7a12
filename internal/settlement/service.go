// ==============================================================================
// SETTLEMENT SERVICE - internal/settlement/service.go
// ==============================================================================
package settlement

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tracknow/internal/domain"
	"tracknow/internal/notification"
	"tracknow/internal/repository/postgres"
	apperrors "tracknow/pkg/errors"
	"tracknow/pkg/logger"
)

// SaleRepository is the persistence the settlement service needs for sales.
type SaleRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Sale, error)
	UpdateStatusGuarded(ctx context.Context, id uuid.UUID, from, to domain.SaleStatus) error
	MarkSettled(ctx context.Context, id uuid.UUID, settledAt time.Time) error
}

// CommissionRepository is the persistence the settlement service needs for
// commissions.
type CommissionRepository interface {
	CreateIfAbsent(ctx context.Context, commission *domain.Commission) (bool, error)
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Commission, error)
	FindBySaleID(ctx context.Context, saleID uuid.UUID) (*domain.Commission, error)
	UpdateStatusGuarded(ctx context.Context, id uuid.UUID, from, to domain.CommissionStatus, fields postgres.TransitionFields) error
	ListByInfluencer(ctx context.Context, influencerID uuid.UUID, limit, offset int) ([]*domain.Commission, error)
	ListByStatus(ctx context.Context, status domain.CommissionStatus, limit, offset int) ([]*domain.Commission, error)
}

// UserRepository resolves users for notification delivery.
type UserRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

// RateSource resolves the negotiated commission rate for a sale's link.
type RateSource interface {
	CommissionRate(ctx context.Context, productID, linkID uuid.UUID) (decimal.Decimal, error)
}

// Service settles sales into commission splits and drives the commission
// lifecycle.
type Service struct {
	sales               SaleRepository
	commissions         CommissionRepository
	users               UserRepository
	rates               RateSource
	notifier            notification.Notifier
	platformRate        decimal.Decimal
	supportedCurrencies map[string]struct{}
	logger              logger.Logger
}

func NewService(
	sales SaleRepository,
	commissions CommissionRepository,
	users UserRepository,
	rates RateSource,
	notifier notification.Notifier,
	platformRate decimal.Decimal,
	supportedCurrencies []string,
	log logger.Logger,
) *Service {
	supported := make(map[string]struct{}, len(supportedCurrencies))
	for _, c := range supportedCurrencies {
		supported[c] = struct{}{}
	}
	return &Service{
		sales:               sales,
		commissions:         commissions,
		users:               users,
		rates:               rates,
		notifier:            notifier,
		platformRate:        platformRate,
		supportedCurrencies: supported,
		logger:              log,
	}
}

// ComputeSplit divides a gross amount three ways. Influencer and platform
// shares are rounded half-up to 2 decimal places; the merchant share is the
// remainder, so the three components always sum exactly to the gross amount.
func ComputeSplit(gross, commissionRate, platformRate decimal.Decimal) (influencer, platform, merchant decimal.Decimal) {
	hundred := decimal.NewFromInt(100)
	influencer = gross.Mul(commissionRate).Div(hundred).Round(2)
	platform = gross.Mul(platformRate).Div(hundred).Round(2)
	merchant = gross.Sub(influencer).Sub(platform)
	return influencer, platform, merchant
}

// Settle computes the commission split for a completed sale and records the
// influencer commission. Settling the same sale twice is safe: the second
// call returns the already-recorded commission without creating another.
func (s *Service) Settle(ctx context.Context, saleID uuid.UUID) (*domain.CommissionSplit, *domain.Commission, error) {
	sale, err := s.sales.FindByID(ctx, saleID)
	if err != nil {
		return nil, nil, err
	}

	if sale.Status != domain.SaleStatusCompleted || !sale.GrossAmount.IsPositive() {
		return nil, nil, apperrors.ErrInvalidSaleState
	}
	if _, ok := s.supportedCurrencies[sale.Currency]; !ok {
		return nil, nil, apperrors.ErrUnsupportedCurrency
	}

	rate, err := s.rates.CommissionRate(ctx, sale.ProductID, sale.LinkID)
	if err != nil {
		return nil, nil, err
	}

	influencer, platform, merchant := ComputeSplit(sale.GrossAmount, rate, s.platformRate)
	// The combined rates may not consume more than the gross amount.
	if merchant.IsNegative() {
		return nil, nil, apperrors.ErrInvalidRate
	}

	now := time.Now()
	commission := &domain.Commission{
		ID:           uuid.New(),
		SaleID:       sale.ID,
		InfluencerID: sale.InfluencerID,
		Amount:       influencer,
		Currency:     sale.Currency,
		Status:       domain.CommissionStatusPending,
		Metadata: domain.Metadata{
			"commission_rate": rate.String(),
			"platform_rate":   s.platformRate.String(),
			"gross_amount":    sale.GrossAmount.StringFixed(2),
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	created, err := s.commissions.CreateIfAbsent(ctx, commission)
	if err != nil {
		return nil, nil, err
	}
	if !created {
		// Another settlement won the race, or this sale was settled
		// before. The recorded commission is authoritative.
		existing, err := s.commissions.FindBySaleID(ctx, sale.ID)
		if err != nil {
			return nil, nil, err
		}
		commission = existing
		influencer = existing.Amount
		merchant = sale.GrossAmount.Sub(influencer).Sub(platform)
	} else {
		if err := s.sales.MarkSettled(ctx, sale.ID, now); err != nil {
			s.logger.Warn("failed to stamp sale settlement time", map[string]interface{}{
				"sale_id": sale.ID.String(),
				"error":   err.Error(),
			})
		}
		s.logger.Info("sale settled", map[string]interface{}{
			"sale_id":       sale.ID.String(),
			"commission_id": commission.ID.String(),
			"amount":        influencer.StringFixed(2),
			"currency":      sale.Currency,
		})
	}

	split := &domain.CommissionSplit{
		SaleID:               sale.ID,
		GrossAmount:          sale.GrossAmount,
		Currency:             sale.Currency,
		CommissionRate:       rate,
		PlatformRate:         s.platformRate,
		InfluencerCommission: influencer,
		PlatformCommission:   platform,
		MerchantRevenue:      merchant,
	}
	return split, commission, nil
}

// TransitionRequest describes one commission lifecycle move.
type TransitionRequest struct {
	CommissionID  uuid.UUID
	To            domain.CommissionStatus
	ActorRole     domain.Role
	PaymentMethod string
	Reason        string
}

// Transition moves a commission along its lifecycle:
//
//	pending  -> approved  (admin)
//	approved -> paid      (admin, payment method required)
//	pending  -> rejected  (admin, reason required)
//	approved -> rejected  (admin, reason required)
//
// paid and rejected are terminal.
func (s *Service) Transition(ctx context.Context, req TransitionRequest) (*domain.Commission, error) {
	if !req.ActorRole.CanDecide() {
		return nil, apperrors.ErrForbidden
	}

	commission, err := s.commissions.FindByID(ctx, req.CommissionID)
	if err != nil {
		return nil, err
	}

	var fields postgres.TransitionFields
	var from domain.CommissionStatus

	switch req.To {
	case domain.CommissionStatusApproved:
		from = domain.CommissionStatusPending
	case domain.CommissionStatusPaid:
		if req.PaymentMethod == "" {
			return nil, apperrors.ErrPaymentMethodRequired
		}
		from = domain.CommissionStatusApproved
		now := time.Now()
		fields.PaymentMethod = &req.PaymentMethod
		fields.PaidAt = &now
	case domain.CommissionStatusRejected:
		if req.Reason == "" {
			return nil, apperrors.ErrRejectReasonRequired
		}
		if commission.Status != domain.CommissionStatusPending &&
			commission.Status != domain.CommissionStatusApproved {
			return nil, apperrors.ErrInvalidTransition
		}
		from = commission.Status
		fields.RejectionReason = &req.Reason
	default:
		return nil, apperrors.ErrInvalidTransition
	}

	if err := s.commissions.UpdateStatusGuarded(ctx, req.CommissionID, from, req.To, fields); err != nil {
		return nil, err
	}

	updated, err := s.commissions.FindByID(ctx, req.CommissionID)
	if err != nil {
		return nil, err
	}

	s.notifyInfluencer(ctx, updated)
	return updated, nil
}

// RefundSale marks a completed sale refunded and cancels its commission if it
// has not been paid out yet. A paid commission is left alone and flagged in
// the logs for manual clawback.
func (s *Service) RefundSale(ctx context.Context, saleID uuid.UUID) error {
	if err := s.sales.UpdateStatusGuarded(ctx, saleID, domain.SaleStatusCompleted, domain.SaleStatusRefunded); err != nil {
		return err
	}

	commission, err := s.commissions.FindBySaleID(ctx, saleID)
	if err != nil {
		if err == apperrors.ErrCommissionNotFound {
			return nil
		}
		return err
	}

	switch commission.Status {
	case domain.CommissionStatusPending, domain.CommissionStatusApproved:
		reason := "sale refunded"
		fields := postgres.TransitionFields{RejectionReason: &reason}
		if err := s.commissions.UpdateStatusGuarded(ctx, commission.ID, commission.Status, domain.CommissionStatusRejected, fields); err != nil {
			return err
		}
	case domain.CommissionStatusPaid:
		s.logger.Warn("refunded sale has a paid commission, clawback needed", map[string]interface{}{
			"sale_id":       saleID.String(),
			"commission_id": commission.ID.String(),
			"amount":        commission.Amount.StringFixed(2),
		})
	}
	return nil
}

// GetCommission returns a commission, enforcing that influencers only see
// their own.
func (s *Service) GetCommission(ctx context.Context, id uuid.UUID, actorID uuid.UUID, actorRole domain.Role) (*domain.Commission, error) {
	commission, err := s.commissions.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actorRole.CanReview() && commission.InfluencerID != actorID {
		return nil, apperrors.ErrForbidden
	}
	return commission, nil
}

// ListInfluencerCommissions returns an influencer's commissions, newest first.
func (s *Service) ListInfluencerCommissions(ctx context.Context, influencerID uuid.UUID, limit, offset int) ([]*domain.Commission, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.commissions.ListByInfluencer(ctx, influencerID, limit, offset)
}

func (s *Service) notifyInfluencer(ctx context.Context, commission *domain.Commission) {
	if s.notifier == nil {
		return
	}
	user, err := s.users.FindByID(ctx, commission.InfluencerID)
	if err != nil {
		s.logger.Warn("failed to resolve influencer for notification", map[string]interface{}{
			"influencer_id": commission.InfluencerID.String(),
			"error":         err.Error(),
		})
		return
	}
	s.notifier.CommissionStatusChanged(ctx, user, commission)
}
