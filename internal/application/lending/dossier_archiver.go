package lending

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/domain/lending"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/domain/shared"
	"go.uber.org/zap"
)

// DossierStore stores archived legal dossiers
type DossierStore interface {
	Upload(ctx context.Context, storageKey string, data []byte, contentType string) error
}

// LegalDossier is the snapshot archived when a legal case opens or closes
type LegalDossier struct {
	Event       string               `json:"event"`
	GeneratedAt time.Time            `json:"generated_at"`
	Case        LegalCaseResponse    `json:"case"`
	Loan        LoanResponse         `json:"loan"`
	Payments    []PaymentResult      `json:"payments"`
	Transitions []TransitionResponse `json:"transitions"`
}

// LegalDossierArchiver uploads a dossier of the loan, its payments and its
// bucket history to object storage whenever a legal case opens or closes
type LegalDossierArchiver struct {
	loanRepo    lending.LoanRepository
	paymentRepo lending.PaymentRepository
	store       DossierStore
	prefix      string
	logger      *zap.Logger
	clock       func() time.Time
}

// NewLegalDossierArchiver creates a LegalDossierArchiver. Keys are written
// under prefix, which defaults to "legal-dossiers".
func NewLegalDossierArchiver(
	loanRepo lending.LoanRepository,
	paymentRepo lending.PaymentRepository,
	store DossierStore,
	prefix string,
	logger *zap.Logger,
) *LegalDossierArchiver {
	if prefix == "" {
		prefix = "legal-dossiers"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LegalDossierArchiver{
		loanRepo:    loanRepo,
		paymentRepo: paymentRepo,
		store:       store,
		prefix:      prefix,
		logger:      logger,
		clock:       time.Now,
	}
}

// EventTypes returns the event types this handler is interested in
func (h *LegalDossierArchiver) EventTypes() []string {
	return []string{lending.EventTypeLegalCaseOpened, lending.EventTypeLegalCaseClosed}
}

// Handle builds and uploads the dossier for a legal case event
func (h *LegalDossierArchiver) Handle(ctx context.Context, event shared.DomainEvent) error {
	var loanID, caseID uuid.UUID
	switch e := event.(type) {
	case *lending.LegalCaseOpenedEvent:
		loanID, caseID = e.LoanID, e.CaseID
	case *lending.LegalCaseClosedEvent:
		loanID, caseID = e.LoanID, e.CaseID
	default:
		h.logger.Error("unexpected event type", zap.String("actual", event.EventType()))
		return fmt.Errorf("unexpected event type: %s", event.EventType())
	}

	loan, err := h.loanRepo.FindByIDForTenant(ctx, event.TenantID(), loanID)
	if err != nil {
		return fmt.Errorf("failed to load loan: %w", err)
	}
	if loan == nil {
		h.logger.Warn("loan not found for legal dossier, skipping", zap.String("loan_id", loanID.String()))
		return nil
	}
	var lc *lending.LegalCase
	for i := range loan.LegalCases {
		if loan.LegalCases[i].ID == caseID {
			lc = &loan.LegalCases[i]
		}
	}
	if lc == nil {
		h.logger.Warn("legal case not found on loan, skipping",
			zap.String("loan_id", loanID.String()),
			zap.String("case_id", caseID.String()),
		)
		return nil
	}

	payments, err := h.paymentRepo.FindByLoan(ctx, loanID)
	if err != nil {
		return fmt.Errorf("failed to load payments: %w", err)
	}
	transitions, err := h.loanRepo.FindTransitions(ctx, loanID)
	if err != nil {
		return fmt.Errorf("failed to load transitions: %w", err)
	}

	now := h.clock()
	dossier := LegalDossier{
		Event:       event.EventType(),
		GeneratedAt: now,
		Case:        *toLegalCaseResponse(lc),
		Loan:        ToLoanResponse(loan, now, true),
		Payments:    make([]PaymentResult, 0, len(payments)),
		Transitions: make([]TransitionResponse, 0, len(transitions)),
	}
	for i := range payments {
		dossier.Payments = append(dossier.Payments, *toPaymentResult(loan, &payments[i], false))
	}
	for _, t := range transitions {
		dossier.Transitions = append(dossier.Transitions, toTransitionResponse(t))
	}

	data, err := json.MarshalIndent(dossier, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode legal dossier: %w", err)
	}
	key := h.storageKey(loan, lc, event.EventType())
	if err := h.store.Upload(ctx, key, data, "application/json"); err != nil {
		h.logger.Error("failed to upload legal dossier",
			zap.String("loan_id", loanID.String()),
			zap.String("key", key),
			zap.Error(err),
		)
		return fmt.Errorf("failed to upload legal dossier: %w", err)
	}
	h.logger.Info("legal dossier archived",
		zap.String("loan_id", loanID.String()),
		zap.String("case_number", lc.CaseNumber),
		zap.String("key", key),
	)
	return nil
}

// storageKey is <prefix>/<tenant>/<loan number>/<case number>/<event>.json
func (h *LegalDossierArchiver) storageKey(loan *lending.Loan, lc *lending.LegalCase, eventType string) string {
	return fmt.Sprintf("%s/%s/%s/%s/%s.json", h.prefix, loan.TenantID, loan.LoanNumber, lc.CaseNumber, eventType)
}

var _ shared.EventHandler = (*LegalDossierArchiver)(nil)
