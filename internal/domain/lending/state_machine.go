package lending

import (
	"time"

	"github.com/google/uuid"
)

// TransitionTrigger names what caused a bucket change
type TransitionTrigger string

const (
	TriggerClassification  TransitionTrigger = "CLASSIFICATION"   // DPD recomputation
	TriggerLegalEscalation TransitionTrigger = "LEGAL_ESCALATION" // operator forces Legal
	TriggerWriteOff        TransitionTrigger = "WRITE_OFF"        // operator writes the loan off
	TriggerOperatorCure    TransitionTrigger = "OPERATOR_CURE"    // operator releases a loan from Legal
	TriggerRecovery        TransitionTrigger = "RECOVERY"         // outstanding balance reached zero
)

// IsOperatorAction returns true for triggers that need an operator
func (t TransitionTrigger) IsOperatorAction() bool {
	return t == TriggerLegalEscalation || t == TriggerWriteOff || t == TriggerOperatorCure
}

// TransitionInput is what the state machine decides on
type TransitionInput struct {
	Trigger    TransitionTrigger
	DPD        int
	Settled    bool
	OperatorID *uuid.UUID
	Reason     string
	At         time.Time
}

// BucketTransition is one entry of a loan's bucket history
type BucketTransition struct {
	ID         uuid.UUID
	LoanID     uuid.UUID
	From       Bucket
	To         Bucket
	Trigger    TransitionTrigger
	DPD        int
	OperatorID *uuid.UUID
	Reason     string
	At         time.Time
}

// Decision is the outcome of evaluating an input against the current bucket.
// OpensLegal is set when the loan enters Legal from another bucket.
type Decision struct {
	From       Bucket
	To         Bucket
	Trigger    TransitionTrigger
	OpensLegal bool
}

// Changed returns true when the bucket moves
func (d Decision) Changed() bool {
	return d.From != d.To
}

// BucketStateMachine governs movement between buckets.
//
// Classification moves a loan to whatever bucket its DPD warrants, upward
// or downward, except that Legal is sticky: only an operator cure moves a
// loan out of Legal. Write-off is only possible from M3 or Legal.
// Recovered and WrittenOff are terminal.
type BucketStateMachine struct {
	table ThresholdTable
}

// NewBucketStateMachine creates a state machine over the given table
func NewBucketStateMachine(table ThresholdTable) *BucketStateMachine {
	return &BucketStateMachine{table: table}
}

// Apply evaluates in against current. It never mutates anything;
// illegal requests return an IllegalTransition error.
func (m *BucketStateMachine) Apply(current Bucket, in TransitionInput) (Decision, error) {
	if !current.IsValid() {
		return Decision{}, illegalTransition("unknown bucket %q", current)
	}
	if in.Trigger.IsOperatorAction() && (in.OperatorID == nil || *in.OperatorID == uuid.Nil) {
		return Decision{}, illegalTransition("%s requires an operator", in.Trigger)
	}
	stay := Decision{From: current, To: current, Trigger: in.Trigger}

	if current.IsTerminal() {
		if in.Trigger == TriggerClassification {
			return stay, nil
		}
		return Decision{}, illegalTransition("loan in %s cannot move on %s", current, in.Trigger)
	}

	switch in.Trigger {
	case TriggerClassification, TriggerRecovery:
		if in.Settled {
			return Decision{From: current, To: BucketRecovered, Trigger: TriggerRecovery}, nil
		}
		if in.Trigger == TriggerRecovery {
			return Decision{}, illegalTransition("loan still has an outstanding balance")
		}
		if current == BucketLegal {
			return stay, nil
		}
		target := m.table.BucketFor(in.DPD)
		return Decision{From: current, To: target, Trigger: in.Trigger, OpensLegal: target == BucketLegal}, nil

	case TriggerLegalEscalation:
		if current == BucketLegal {
			return Decision{}, illegalTransition("loan is already in %s", BucketLegal)
		}
		return Decision{From: current, To: BucketLegal, Trigger: in.Trigger, OpensLegal: true}, nil

	case TriggerWriteOff:
		if current != BucketLegal && current != BucketM3 {
			return Decision{}, illegalTransition("write-off requires %s or %s, loan is in %s", BucketM3, BucketLegal, current)
		}
		return Decision{From: current, To: BucketWrittenOff, Trigger: in.Trigger}, nil

	case TriggerOperatorCure:
		if current != BucketLegal {
			return Decision{}, illegalTransition("operator cure only applies to %s, loan is in %s", BucketLegal, current)
		}
		target := m.table.BucketFor(in.DPD)
		if target == BucketLegal {
			return Decision{}, illegalTransition("DPD %d still warrants %s", in.DPD, BucketLegal)
		}
		return Decision{From: current, To: target, Trigger: in.Trigger}, nil
	}
	return Decision{}, illegalTransition("unknown trigger %q", in.Trigger)
}
