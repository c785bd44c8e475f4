package lending

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/domain/lending"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/domain/shared"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/domain/shared/valueobject"
	"go.uber.org/zap"
)

// Notification is a message for the collections team about one loan
type Notification struct {
	TenantID   uuid.UUID
	LoanID     uuid.UUID
	BorrowerID uuid.UUID
	Kind       string
	Message    string
}

// Notification kinds
const (
	NotificationEscalation = "ESCALATION"
	NotificationLegalCase  = "LEGAL_CASE"
	NotificationWriteOff   = "WRITE_OFF"
	NotificationRecovered  = "RECOVERED"
)

// NotificationSender delivers a notification to the collections channel
type NotificationSender interface {
	Send(ctx context.Context, n Notification) error
}

// LogNotificationSender writes notifications to the log
type LogNotificationSender struct {
	logger *zap.Logger
}

// NewLogNotificationSender creates a LogNotificationSender
func NewLogNotificationSender(logger *zap.Logger) *LogNotificationSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotificationSender{logger: logger}
}

// Send logs n
func (s *LogNotificationSender) Send(_ context.Context, n Notification) error {
	s.logger.Info("collections notification",
		zap.String("tenant_id", n.TenantID.String()),
		zap.String("loan_id", n.LoanID.String()),
		zap.String("kind", n.Kind),
		zap.String("message", n.Message),
	)
	return nil
}

// CollectionsNotifier tells the collections team when a loan escalates,
// goes to legal, is written off or recovers
type CollectionsNotifier struct {
	sender NotificationSender
	logger *zap.Logger
}

// NewCollectionsNotifier creates a CollectionsNotifier
func NewCollectionsNotifier(sender NotificationSender, logger *zap.Logger) *CollectionsNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CollectionsNotifier{sender: sender, logger: logger}
}

// EventTypes returns the event types this handler is interested in
func (h *CollectionsNotifier) EventTypes() []string {
	return []string{
		lending.EventTypeBucketChanged,
		lending.EventTypeLegalCaseOpened,
		lending.EventTypeLoanWrittenOff,
		lending.EventTypeLoanRecovered,
	}
}

// Handle formats and sends a notification for the event. De-escalations
// and cures are not notified.
func (h *CollectionsNotifier) Handle(ctx context.Context, event shared.DomainEvent) error {
	var n *Notification
	switch e := event.(type) {
	case *lending.BucketChangedEvent:
		if !e.IsEscalation() || e.To == lending.BucketLegal {
			return nil
		}
		n = &Notification{
			LoanID:     e.LoanID,
			BorrowerID: e.BorrowerID,
			Kind:       NotificationEscalation,
			Message: fmt.Sprintf("Loan %s moved from %s to %s on its %s day past due, overdue %s",
				e.LoanNumber, e.From, e.To, humanize.Ordinal(e.DPD), FormatAmount(e.Overdue)),
		}
	case *lending.LegalCaseOpenedEvent:
		n = &Notification{
			LoanID:     e.LoanID,
			BorrowerID: e.BorrowerID,
			Kind:       NotificationLegalCase,
			Message: fmt.Sprintf("Legal case %s opened for loan %s at %s DPD, outstanding %s",
				e.CaseNumber, e.LoanNumber, humanize.Comma(int64(e.OpenedDPD)), FormatAmount(e.Outstanding)),
		}
	case *lending.LoanWrittenOffEvent:
		n = &Notification{
			LoanID: e.LoanID,
			Kind:   NotificationWriteOff,
			Message: fmt.Sprintf("Loan %s written off from %s, outstanding %s: %s",
				e.LoanNumber, e.From, FormatAmount(e.Outstanding), e.Reason),
		}
	case *lending.LoanRecoveredEvent:
		n = &Notification{
			LoanID:  e.LoanID,
			Kind:    NotificationRecovered,
			Message: fmt.Sprintf("Loan %s fully repaid, credit balance %s", e.LoanNumber, FormatAmount(e.CreditBalance)),
		}
	default:
		h.logger.Error("unexpected event type", zap.String("actual", event.EventType()))
		return fmt.Errorf("unexpected event type: %s", event.EventType())
	}

	n.TenantID = event.TenantID()
	if err := h.sender.Send(ctx, *n); err != nil {
		h.logger.Error("failed to send collections notification",
			zap.String("loan_id", n.LoanID.String()),
			zap.String("kind", n.Kind),
			zap.Error(err),
		)
		return fmt.Errorf("failed to send notification: %w", err)
	}
	return nil
}

// FormatAmount renders money with thousands separators, e.g. "INR 123,456.07"
func FormatAmount(m valueobject.Money) string {
	minor := m.MinorUnits()
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	scale := m.Currency().Scale()
	if scale <= 0 {
		return fmt.Sprintf("%s %s%s", m.Currency(), sign, humanize.Comma(minor))
	}
	unit := int64(1)
	for range scale {
		unit *= 10
	}
	return fmt.Sprintf("%s %s%s.%0*d", m.Currency(), sign, humanize.Comma(minor/unit), int(scale), minor%unit)
}

var _ shared.EventHandler = (*CollectionsNotifier)(nil)
