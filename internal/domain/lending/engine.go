package lending

import "github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/domain/shared/valueobject"

// Policy carries every tunable the engine uses. It is built from
// configuration by the caller; the domain holds no defaults of its own.
type Policy struct {
	Currency         valueobject.Currency
	PenaltyRateBps   int64
	ProcessingFeeBps int64
	AdvancePolicy    AdvancePolicy
	Thresholds       ThresholdTable
}

// Engine bundles the lending components configured from one Policy
type Engine struct {
	Generator  *ScheduleGenerator
	Penalty    *PenaltyCalculator
	Allocator  *PaymentAllocator
	Classifier *DelinquencyClassifier
	Machine    *BucketStateMachine
	policy     Policy
}

// NewEngine validates p and wires the components
func NewEngine(p Policy) (*Engine, error) {
	if !p.Currency.IsValid() {
		return nil, invalidTerms("unsupported currency %q", p.Currency)
	}
	if p.ProcessingFeeBps < 0 || p.ProcessingFeeBps > MaxAnnualRateBps {
		return nil, invalidTerms("processing fee must be between 0 and %d bps, got %d", MaxAnnualRateBps, p.ProcessingFeeBps)
	}
	if len(p.Thresholds.thresholds) == 0 {
		return nil, invalidTerms("threshold table is required")
	}
	penalty, err := NewPenaltyCalculator(p.PenaltyRateBps)
	if err != nil {
		return nil, err
	}
	allocator, err := NewPaymentAllocator(p.AdvancePolicy)
	if err != nil {
		return nil, err
	}
	return &Engine{
		Generator:  NewScheduleGenerator(),
		Penalty:    penalty,
		Allocator:  allocator,
		Classifier: NewDelinquencyClassifier(p.Thresholds),
		Machine:    NewBucketStateMachine(p.Thresholds),
		policy:     p,
	}, nil
}

// Policy returns the policy the engine was built from
func (e *Engine) Policy() Policy {
	return e.policy
}
