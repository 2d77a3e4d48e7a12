// ==============================================================================
// RATE CATALOG - internal/catalog/rates.go
// ==============================================================================
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"tracknow/pkg/cache"
	apperrors "tracknow/pkg/errors"
	"tracknow/pkg/logger"
)

// RateSource resolves the commission rate agreed for a tracked link.
type RateSource interface {
	CommissionRate(ctx context.Context, productID, linkID uuid.UUID) (decimal.Decimal, error)
}

// Service reads commission rates from the product catalog, preferring a
// per-link override when one was negotiated. Rates are cached in redis
// because settlement reads them far more often than merchants change them.
type Service struct {
	db           *sqlx.DB
	cache        *cache.RedisCache
	cacheTTL     time.Duration
	queryTimeout time.Duration
	logger       logger.Logger
}

func NewService(db *sqlx.DB, redisCache *cache.RedisCache, cacheTTL, queryTimeout time.Duration, log logger.Logger) *Service {
	return &Service{
		db:           db,
		cache:        redisCache,
		cacheTTL:     cacheTTL,
		queryTimeout: queryTimeout,
		logger:       log,
	}
}

func rateCacheKey(productID, linkID uuid.UUID) string {
	return fmt.Sprintf("rate:%s:%s", productID, linkID)
}

// CommissionRate returns the influencer rate as a percentage (e.g. 15 for
// 15%). Link-level overrides win over the product default.
func (s *Service) CommissionRate(ctx context.Context, productID, linkID uuid.UUID) (decimal.Decimal, error) {
	key := rateCacheKey(productID, linkID)

	if s.cache != nil {
		var cached string
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			if rate, perr := decimal.NewFromString(cached); perr == nil {
				return rate, nil
			}
		} else if !cache.Miss(err) {
			s.logger.Warn("rate cache read failed", map[string]interface{}{
				"key":   key,
				"error": err.Error(),
			})
		}
	}

	rate, err := s.lookupRate(ctx, productID, linkID)
	if err != nil {
		return decimal.Zero, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, rate.String(), s.cacheTTL); err != nil {
			s.logger.Warn("rate cache write failed", map[string]interface{}{
				"key":   key,
				"error": err.Error(),
			})
		}
	}
	return rate, nil
}

func (s *Service) lookupRate(ctx context.Context, productID, linkID uuid.UUID) (decimal.Decimal, error) {
	if s.queryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.queryTimeout)
		defer cancel()
	}

	var override sql.NullString
	err := s.db.GetContext(ctx, &override,
		`SELECT commission_rate_override FROM tracked_links WHERE id = $1`, linkID)
	if err != nil && err != sql.ErrNoRows {
		return decimal.Zero, apperrors.Wrap(err, "failed to read link rate override")
	}
	if err == nil && override.Valid {
		rate, perr := decimal.NewFromString(override.String)
		if perr != nil {
			return decimal.Zero, apperrors.ErrInvalidRate
		}
		return validateRate(rate)
	}

	var productRate string
	err = s.db.GetContext(ctx, &productRate,
		`SELECT commission_rate FROM products WHERE id = $1`, productID)
	if err == sql.ErrNoRows {
		return decimal.Zero, apperrors.ErrRateNotAvailable
	}
	if err != nil {
		return decimal.Zero, apperrors.Wrap(err, "failed to read product rate")
	}

	rate, perr := decimal.NewFromString(productRate)
	if perr != nil {
		return decimal.Zero, apperrors.ErrInvalidRate
	}
	return validateRate(rate)
}

func validateRate(rate decimal.Decimal) (decimal.Decimal, error) {
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(100)) {
		return decimal.Zero, apperrors.ErrInvalidRate
	}
	return rate, nil
}
