// ==============================================================================
// NOTIFICATION SERVICE - internal/notification/service.go
// ==============================================================================
package notification

import (
	"context"
	"fmt"

	"tracknow/internal/domain"
	"tracknow/pkg/logger"
	"tracknow/pkg/mailer"
)

// Notifier delivers lifecycle notifications. Delivery is best-effort: callers
// never fail a committed state change because a notification could not be sent.
type Notifier interface {
	KYCDecision(ctx context.Context, user *domain.User, status domain.KYCStatus, reason string)
	CommissionStatusChanged(ctx context.Context, user *domain.User, commission *domain.Commission)
}

// EmailNotifier sends notifications over SMTP.
type EmailNotifier struct {
	mailer *mailer.Mailer
	logger logger.Logger
}

func NewEmailNotifier(m *mailer.Mailer, log logger.Logger) *EmailNotifier {
	return &EmailNotifier{mailer: m, logger: log}
}

func (n *EmailNotifier) KYCDecision(ctx context.Context, user *domain.User, status domain.KYCStatus, reason string) {
	var subject, body string
	switch status {
	case domain.KYCStatusApproved:
		subject = "Your identity verification was approved"
		body = fmt.Sprintf("<p>Hello %s,</p><p>Your verification has been approved. Your account is now fully active.</p>", user.FirstName)
	case domain.KYCStatusRejected:
		subject = "Your identity verification was rejected"
		body = fmt.Sprintf("<p>Hello %s,</p><p>Your verification was rejected.</p><p>Reason: %s</p><p>You may submit a new verification from your dashboard.</p>", user.FirstName, reason)
	default:
		subject = "Your identity verification status changed"
		body = fmt.Sprintf("<p>Hello %s,</p><p>Your verification is now: %s</p>", user.FirstName, status)
	}

	if err := n.mailer.Send(user.Email, subject, body); err != nil {
		n.logger.Error("failed to send kyc notification", map[string]interface{}{
			"user_id": user.ID.String(),
			"status":  string(status),
			"error":   err.Error(),
		})
	}
}

func (n *EmailNotifier) CommissionStatusChanged(ctx context.Context, user *domain.User, commission *domain.Commission) {
	subject := fmt.Sprintf("Commission %s", commission.Status)
	body := fmt.Sprintf("<p>Hello %s,</p><p>Your commission of %s %s is now <b>%s</b>.</p>",
		user.FirstName, commission.Amount.StringFixed(2), commission.Currency, commission.Status)

	if err := n.mailer.Send(user.Email, subject, body); err != nil {
		n.logger.Error("failed to send commission notification", map[string]interface{}{
			"user_id":       user.ID.String(),
			"commission_id": commission.ID.String(),
			"error":         err.Error(),
		})
	}
}

// StubNotifier logs instead of sending. Used when SMTP is not configured.
type StubNotifier struct {
	logger logger.Logger
}

func NewStubNotifier(log logger.Logger) *StubNotifier {
	return &StubNotifier{logger: log}
}

func (n *StubNotifier) KYCDecision(ctx context.Context, user *domain.User, status domain.KYCStatus, reason string) {
	n.logger.Info("kyc notification (stub)", map[string]interface{}{
		"user_id": user.ID.String(),
		"status":  string(status),
		"reason":  reason,
	})
}

func (n *StubNotifier) CommissionStatusChanged(ctx context.Context, user *domain.User, commission *domain.Commission) {
	n.logger.Info("commission notification (stub)", map[string]interface{}{
		"user_id":       user.ID.String(),
		"commission_id": commission.ID.String(),
		"status":        string(commission.Status),
	})
}
