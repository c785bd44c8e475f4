package lending

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/domain/lending"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type memoryDossierStore struct {
	objects map[string][]byte
	err     error
}

func (s *memoryDossierStore) Upload(_ context.Context, key string, data []byte, contentType string) error {
	if s.err != nil {
		return s.err
	}
	if contentType != "application/json" {
		return fmt.Errorf("unexpected content type %s", contentType)
	}
	if s.objects == nil {
		s.objects = make(map[string][]byte)
	}
	s.objects[key] = data
	return nil
}

func escalatedLoan(t *testing.T, f *fixture) (*lending.Loan, *lending.LegalCaseOpenedEvent) {
	t.Helper()
	loan := f.newTestLoan(t, uuid.New())
	_, err := loan.EscalateToLegal(uuid.New(), "absconding", testToday, f.engine)
	require.NoError(t, err)
	event := eventOfType(t, loan.GetDomainEvents(), lending.EventTypeLegalCaseOpened).(*lending.LegalCaseOpenedEvent)
	loan.ClearDomainEvents()
	return loan, event
}

func TestLegalDossierArchiver_CaseOpened(t *testing.T) {
	f := newFixture(t)
	loan, event := escalatedLoan(t, f)
	f.loanRepo.On("FindByIDForTenant", mock.Anything, loan.TenantID, loan.ID).Return(loan, nil)
	f.paymentRepo.On("FindByLoan", mock.Anything, loan.ID).Return([]lending.Payment{}, nil)
	f.loanRepo.On("FindTransitions", mock.Anything, loan.ID).Return(loan.PendingTransitions(), nil)
	store := &memoryDossierStore{}

	h := NewLegalDossierArchiver(f.loanRepo, f.paymentRepo, store, "", nil)
	require.NoError(t, h.Handle(context.Background(), event))

	key := fmt.Sprintf("legal-dossiers/%s/LN-2024-0001/%s/LegalCaseOpened.json", loan.TenantID, event.CaseNumber)
	require.Contains(t, store.objects, key)

	var dossier LegalDossier
	require.NoError(t, json.Unmarshal(store.objects[key], &dossier))
	assert.Equal(t, lending.EventTypeLegalCaseOpened, dossier.Event)
	assert.Equal(t, event.CaseID, dossier.Case.ID)
	assert.Equal(t, lending.LegalCaseOpen, dossier.Case.Status)
	assert.Equal(t, loan.ID, dossier.Loan.ID)
	assert.Len(t, dossier.Loan.Installments, 12)
	require.Len(t, dossier.Transitions, 1)
	assert.Equal(t, lending.BucketLegal, dossier.Transitions[0].To)
}

func TestLegalDossierArchiver_CaseClosedUsesPrefix(t *testing.T) {
	f := newFixture(t)
	loan, _ := escalatedLoan(t, f)
	_, err := loan.CloseLegalCase(uuid.New(), "settled", testToday)
	require.NoError(t, err)
	closed := eventOfType(t, loan.GetDomainEvents(), lending.EventTypeLegalCaseClosed).(*lending.LegalCaseClosedEvent)

	f.loanRepo.On("FindByIDForTenant", mock.Anything, loan.TenantID, loan.ID).Return(loan, nil)
	f.paymentRepo.On("FindByLoan", mock.Anything, loan.ID).Return([]lending.Payment{}, nil)
	f.loanRepo.On("FindTransitions", mock.Anything, loan.ID).Return([]lending.BucketTransition{}, nil)
	store := &memoryDossierStore{}

	h := NewLegalDossierArchiver(f.loanRepo, f.paymentRepo, store, "archive", nil)
	require.NoError(t, h.Handle(context.Background(), closed))

	key := fmt.Sprintf("archive/%s/LN-2024-0001/%s/LegalCaseClosed.json", loan.TenantID, closed.CaseNumber)
	require.Contains(t, store.objects, key)
	var dossier LegalDossier
	require.NoError(t, json.Unmarshal(store.objects[key], &dossier))
	assert.Equal(t, lending.LegalCaseClosed, dossier.Case.Status)
	assert.Equal(t, "settled", dossier.Case.ClosureReason)
}

func TestLegalDossierArchiver_LoanMissingIsSkipped(t *testing.T) {
	f := newFixture(t)
	loan, event := escalatedLoan(t, f)
	f.loanRepo.On("FindByIDForTenant", mock.Anything, loan.TenantID, loan.ID).Return(nil, nil)
	store := &memoryDossierStore{}

	h := NewLegalDossierArchiver(f.loanRepo, f.paymentRepo, store, "", nil)
	require.NoError(t, h.Handle(context.Background(), event))
	assert.Empty(t, store.objects)
	f.paymentRepo.AssertNotCalled(t, "FindByLoan", mock.Anything, mock.Anything)
}

func TestLegalDossierArchiver_UploadFails(t *testing.T) {
	f := newFixture(t)
	loan, event := escalatedLoan(t, f)
	f.loanRepo.On("FindByIDForTenant", mock.Anything, loan.TenantID, loan.ID).Return(loan, nil)
	f.paymentRepo.On("FindByLoan", mock.Anything, loan.ID).Return([]lending.Payment{}, nil)
	f.loanRepo.On("FindTransitions", mock.Anything, loan.ID).Return([]lending.BucketTransition{}, nil)
	store := &memoryDossierStore{err: errors.New("bucket not found")}

	h := NewLegalDossierArchiver(f.loanRepo, f.paymentRepo, store, "", nil)
	err := h.Handle(context.Background(), event)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to upload legal dossier")
}
