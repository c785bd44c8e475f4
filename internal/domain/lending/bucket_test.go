package lending

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThresholdTable_BucketFor(t *testing.T) {
	table := StandardThresholds()
	tests := []struct {
		dpd  int
		want Bucket
	}{
		{-5, BucketCurrent},
		{0, BucketCurrent},
		{1, BucketX},
		{30, BucketX},
		{31, BucketY},
		{45, BucketY},
		{60, BucketY},
		{61, BucketM1},
		{90, BucketM1},
		{91, BucketM2},
		{180, BucketM2},
		{181, BucketM3},
		{365, BucketM3},
		{366, BucketLegal},
		{370, BucketLegal},
		{5000, BucketLegal},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("dpd_%d", tt.dpd), func(t *testing.T) {
			assert.Equal(t, tt.want, table.BucketFor(tt.dpd))
		})
	}
}

func TestThresholdTable_BucketsAreOrderedByDPD(t *testing.T) {
	table := StandardThresholds()
	prev := table.BucketFor(0).Rank()
	for dpd := 1; dpd <= 800; dpd++ {
		rank := table.BucketFor(dpd).Rank()
		assert.GreaterOrEqual(t, rank, prev, "dpd %d", dpd)
		prev = rank
	}
}

func TestThresholdTable_Range(t *testing.T) {
	table := StandardThresholds()
	lo, hi, ok := table.Range(BucketM2)
	require.True(t, ok)
	assert.Equal(t, 91, lo)
	assert.Equal(t, 180, hi)

	lo, hi, ok = table.Range(BucketLegal)
	require.True(t, ok)
	assert.Equal(t, 366, lo)
	assert.Equal(t, -1, hi)

	_, _, ok = table.Range(BucketRecovered)
	assert.False(t, ok)
	assert.Equal(t, 366, table.LegalThreshold())
	assert.Equal(t, "CURRENT:0-0 X:1-30 Y:31-60 M1:61-90 M2:91-180 M3:181-365 LEGAL:366+", table.String())
}

func TestNewThresholdTable_Validation(t *testing.T) {
	_, err := NewThresholdTable(0, 31, 61, 91, 181, 366)
	assert.Error(t, err)
	_, err = NewThresholdTable(1, 31, 31, 91, 181, 366)
	assert.Error(t, err)
	_, err = NewThresholdTable(1, 31, 61, 91, 400, 366)
	assert.Error(t, err)

	custom, err := NewThresholdTable(1, 16, 31, 61, 91, 181)
	require.NoError(t, err)
	assert.Equal(t, BucketLegal, custom.BucketFor(200))
}

func TestComputeDPD(t *testing.T) {
	s := scenarioSchedule(t)

	assert.Equal(t, 0, ComputeDPD(s, date(2024, 1, 20)), "floored at zero before the first due date")
	assert.Equal(t, 0, ComputeDPD(s, date(2024, 2, 5)))
	assert.Equal(t, 45, ComputeDPD(s, date(2024, 3, 21)))

	dpd, bucket := NewDelinquencyClassifier(StandardThresholds()).Classify(s, date(2024, 3, 21))
	assert.Equal(t, 45, dpd)
	assert.Equal(t, BucketY, bucket)
}

func TestComputeDPD_MonotonicWithoutPayments(t *testing.T) {
	s, err := NewScheduleGenerator().Generate(reducingTerms("100000", 2400, 12))
	require.NoError(t, err)
	prev := 0
	for day := 0; day < 800; day += 3 {
		dpd := ComputeDPD(s, date(2024, 1, 15).AddDate(0, 0, day))
		assert.GreaterOrEqual(t, dpd, prev)
		prev = dpd
	}
}

func TestComputeDPD_MeasuredFromOldestUnpaid(t *testing.T) {
	s := scenarioSchedule(t)
	s.Installments[0].PaidInterest = s.Installments[0].Interest
	s.Installments[0].PaidPrincipal = s.Installments[0].Principal

	// installment 2 is due 2024-03-05
	assert.Equal(t, 16, ComputeDPD(s, date(2024, 3, 21)))
}

func operator() *uuid.UUID {
	id := uuid.New()
	return &id
}

func TestBucketStateMachine_Apply(t *testing.T) {
	m := NewBucketStateMachine(StandardThresholds())
	tests := []struct {
		name       string
		current    Bucket
		in         TransitionInput
		wantTo     Bucket
		wantLegal  bool
		wantErr    bool
		wantChange bool
	}{
		{"current stays current", BucketCurrent, TransitionInput{Trigger: TriggerClassification, DPD: 0}, BucketCurrent, false, false, false},
		{"current to X", BucketCurrent, TransitionInput{Trigger: TriggerClassification, DPD: 3}, BucketX, false, false, true},
		{"dpd jump to M2", BucketX, TransitionInput{Trigger: TriggerClassification, DPD: 120}, BucketM2, false, false, true},
		{"jump to legal opens case", BucketM3, TransitionInput{Trigger: TriggerClassification, DPD: 370}, BucketLegal, true, false, true},
		{"cure from M1 to current", BucketM1, TransitionInput{Trigger: TriggerClassification, DPD: 0}, BucketCurrent, false, false, true},
		{"legal is sticky on cure", BucketLegal, TransitionInput{Trigger: TriggerClassification, DPD: 10}, BucketLegal, false, false, false},
		{"legal stays on higher dpd", BucketLegal, TransitionInput{Trigger: TriggerClassification, DPD: 380}, BucketLegal, false, false, false},
		{"settled recovers", BucketM2, TransitionInput{Trigger: TriggerClassification, Settled: true}, BucketRecovered, false, false, true},
		{"legal recovers", BucketLegal, TransitionInput{Trigger: TriggerClassification, Settled: true}, BucketRecovered, false, false, true},
		{"recovered is terminal", BucketRecovered, TransitionInput{Trigger: TriggerClassification, DPD: 40}, BucketRecovered, false, false, false},
		{"manual legal", BucketX, TransitionInput{Trigger: TriggerLegalEscalation, DPD: 4, OperatorID: operator()}, BucketLegal, true, false, true},
		{"manual legal needs operator", BucketX, TransitionInput{Trigger: TriggerLegalEscalation, DPD: 4}, "", false, true, false},
		{"manual legal when already legal", BucketLegal, TransitionInput{Trigger: TriggerLegalEscalation, OperatorID: operator()}, "", false, true, false},
		{"write off from M3", BucketM3, TransitionInput{Trigger: TriggerWriteOff, OperatorID: operator()}, BucketWrittenOff, false, false, true},
		{"write off from legal", BucketLegal, TransitionInput{Trigger: TriggerWriteOff, OperatorID: operator()}, BucketWrittenOff, false, false, true},
		{"write off from current", BucketCurrent, TransitionInput{Trigger: TriggerWriteOff, OperatorID: operator()}, "", false, true, false},
		{"write off from M2", BucketM2, TransitionInput{Trigger: TriggerWriteOff, OperatorID: operator()}, "", false, true, false},
		{"written off is terminal", BucketWrittenOff, TransitionInput{Trigger: TriggerLegalEscalation, OperatorID: operator()}, "", false, true, false},
		{"operator cure from legal", BucketLegal, TransitionInput{Trigger: TriggerOperatorCure, DPD: 40, OperatorID: operator()}, BucketY, false, false, true},
		{"operator cure blocked by dpd", BucketLegal, TransitionInput{Trigger: TriggerOperatorCure, DPD: 400, OperatorID: operator()}, "", false, true, false},
		{"operator cure outside legal", BucketM1, TransitionInput{Trigger: TriggerOperatorCure, DPD: 0, OperatorID: operator()}, "", false, true, false},
		{"recovery with balance", BucketX, TransitionInput{Trigger: TriggerRecovery}, "", false, true, false},
		{"unknown bucket", Bucket("Z"), TransitionInput{Trigger: TriggerClassification}, "", false, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := m.Apply(tt.current, tt.in)
			if tt.wantErr {
				assert.Equal(t, KindIllegalTransition, KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.current, d.From)
			assert.Equal(t, tt.wantTo, d.To)
			assert.Equal(t, tt.wantLegal, d.OpensLegal)
			assert.Equal(t, tt.wantChange, d.Changed())
		})
	}
}
