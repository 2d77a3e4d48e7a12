// Package domain defines the core business entities for the affiliate platform.
package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Role represents a platform role.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleCommercial Role = "commercial"
	RoleMerchant   Role = "merchant"
	RoleInfluencer Role = "influencer"
)

// CanReview reports whether the role may read the review queue.
// commercial is read-only: it may list pending work but not decide it.
func (r Role) CanReview() bool {
	return r == RoleAdmin || r == RoleCommercial
}

// CanDecide reports whether the role may approve, reject, or pay.
func (r Role) CanDecide() bool {
	return r == RoleAdmin
}

// User represents a platform user. Account lifecycle and credentials live in
// the auth collaborator; only identity and role are needed here.
type User struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Email     string    `json:"email" db:"email"`
	FirstName string    `json:"first_name" db:"first_name"`
	LastName  string    `json:"last_name" db:"last_name"`
	Phone     string    `json:"phone" db:"phone"`
	Role      Role      `json:"role" db:"role"`
	IsActive  bool      `json:"is_active" db:"is_active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// SaleStatus represents sale lifecycle states.
type SaleStatus string

const (
	SaleStatusPending   SaleStatus = "pending"
	SaleStatusCompleted SaleStatus = "completed"
	SaleStatusRefunded  SaleStatus = "refunded"
)

// PaymentStatus represents the buyer-side payment state of a sale.
type PaymentStatus string

const (
	PaymentStatusUnpaid   PaymentStatus = "unpaid"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// Sale is an immutable record of a completed transaction. Only the status
// moves (pending -> completed, completed -> refunded).
type Sale struct {
	ID            uuid.UUID       `json:"id" db:"id"`
	LinkID        uuid.UUID       `json:"link_id" db:"link_id"`
	ProductID     uuid.UUID       `json:"product_id" db:"product_id"`
	InfluencerID  uuid.UUID       `json:"influencer_id" db:"influencer_id"`
	MerchantID    uuid.UUID       `json:"merchant_id" db:"merchant_id"`
	GrossAmount   decimal.Decimal `json:"gross_amount" db:"gross_amount"`
	Currency      string          `json:"currency" db:"currency"`
	Status        SaleStatus      `json:"status" db:"status"`
	PaymentStatus PaymentStatus   `json:"payment_status" db:"payment_status"`
	SettledAt     *time.Time      `json:"settled_at,omitempty" db:"settled_at"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at" db:"updated_at"`
}

// CommissionStatus represents commission lifecycle states.
type CommissionStatus string

const (
	CommissionStatusPending  CommissionStatus = "pending"
	CommissionStatusApproved CommissionStatus = "approved"
	CommissionStatusPaid     CommissionStatus = "paid"
	CommissionStatusRejected CommissionStatus = "rejected"
)

// Terminal reports whether no further transition is permitted.
func (s CommissionStatus) Terminal() bool {
	return s == CommissionStatusPaid || s == CommissionStatusRejected
}

// Commission is a payable obligation to an influencer, with a lifecycle
// independent of the sale it derives from.
type Commission struct {
	ID              uuid.UUID        `json:"id" db:"id"`
	SaleID          uuid.UUID        `json:"sale_id" db:"sale_id"`
	InfluencerID    uuid.UUID        `json:"influencer_id" db:"influencer_id"`
	Amount          decimal.Decimal  `json:"amount" db:"amount"`
	Currency        string           `json:"currency" db:"currency"`
	Status          CommissionStatus `json:"status" db:"status"`
	PaymentMethod   *string          `json:"payment_method,omitempty" db:"payment_method"`
	RejectionReason *string          `json:"rejection_reason,omitempty" db:"rejection_reason"`
	Metadata        Metadata         `json:"metadata,omitempty" db:"metadata"`
	PaidAt          *time.Time       `json:"paid_at,omitempty" db:"paid_at"`
	CreatedAt       time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at" db:"updated_at"`
}

// CommissionSplit is the three-way division of a sale's gross amount. The
// components always reconstitute the gross amount exactly; merchant revenue
// absorbs the rounding remainder.
type CommissionSplit struct {
	SaleID               uuid.UUID       `json:"sale_id"`
	GrossAmount          decimal.Decimal `json:"gross_amount"`
	Currency             string          `json:"currency"`
	CommissionRate       decimal.Decimal `json:"commission_rate"`
	PlatformRate         decimal.Decimal `json:"platform_rate"`
	InfluencerCommission decimal.Decimal `json:"influencer_commission"`
	PlatformCommission   decimal.Decimal `json:"platform_commission"`
	MerchantRevenue      decimal.Decimal `json:"merchant_revenue"`
}

// Metadata is a JSON-compatible map
type Metadata map[string]interface{}

func (m Metadata) Value() (driver.Value, error) {
	return json.Marshal(m)
}

func (m *Metadata) Scan(value interface{}) error {
	b, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(b, &m)
}
