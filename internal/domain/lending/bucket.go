package lending

import (
	"fmt"
	"time"
)

// Bucket is a loan's delinquency classification
type Bucket string

const (
	BucketCurrent    Bucket = "CURRENT"
	BucketX          Bucket = "X"
	BucketY          Bucket = "Y"
	BucketM1         Bucket = "M1"
	BucketM2         Bucket = "M2"
	BucketM3         Bucket = "M3"
	BucketLegal      Bucket = "LEGAL"
	BucketRecovered  Bucket = "RECOVERED"
	BucketWrittenOff Bucket = "WRITTEN_OFF"
)

// DelinquencyBuckets lists the DPD-driven buckets in ascending severity
var DelinquencyBuckets = []Bucket{BucketCurrent, BucketX, BucketY, BucketM1, BucketM2, BucketM3, BucketLegal}

// AllBuckets lists every bucket a loan can be in
var AllBuckets = append(append([]Bucket{}, DelinquencyBuckets...), BucketRecovered, BucketWrittenOff)

// IsValid checks if the bucket is known
func (b Bucket) IsValid() bool {
	return b.Rank() >= 0 || b.IsTerminal()
}

// IsTerminal returns true for buckets a loan never leaves
func (b Bucket) IsTerminal() bool {
	return b == BucketRecovered || b == BucketWrittenOff
}

// Rank orders the delinquency buckets by severity (Current = 0, Legal = 6).
// Terminal and unknown buckets return -1.
func (b Bucket) Rank() int {
	for i, d := range DelinquencyBuckets {
		if d == b {
			return i
		}
	}
	return -1
}

// Threshold is the minimum DPD at which a bucket starts
type Threshold struct {
	Bucket Bucket
	MinDPD int
}

// ThresholdTable maps days past due to a bucket. It is the single source
// of bucket boundaries for classification, reporting and the API.
type ThresholdTable struct {
	thresholds []Threshold
}

// StandardThresholds returns the standard collections table:
// Current 0, X 1-30, Y 31-60, M1 61-90, M2 91-180, M3 181-365, Legal 366+.
func StandardThresholds() ThresholdTable {
	t, _ := NewThresholdTable(1, 31, 61, 91, 181, 366)
	return t
}

// NewThresholdTable builds a table from the first DPD of each bucket after Current
func NewThresholdTable(x, y, m1, m2, m3, legal int) (ThresholdTable, error) {
	starts := []int{0, x, y, m1, m2, m3, legal}
	if x < 1 {
		return ThresholdTable{}, invalidTerms("bucket X must start at 1 DPD or later, got %d", x)
	}
	t := ThresholdTable{thresholds: make([]Threshold, len(DelinquencyBuckets))}
	for i, b := range DelinquencyBuckets {
		if i > 0 && starts[i] <= starts[i-1] {
			return ThresholdTable{}, invalidTerms("bucket %s must start after bucket %s", b, DelinquencyBuckets[i-1])
		}
		t.thresholds[i] = Threshold{Bucket: b, MinDPD: starts[i]}
	}
	return t, nil
}

// BucketFor classifies a DPD value. Negative DPD is treated as zero.
func (t ThresholdTable) BucketFor(dpd int) Bucket {
	result := BucketCurrent
	for _, th := range t.thresholds {
		if dpd >= th.MinDPD {
			result = th.Bucket
		}
	}
	return result
}

// Range returns the inclusive DPD range of b. Max is -1 for the open-ended Legal bucket.
func (t ThresholdTable) Range(b Bucket) (lo, hi int, ok bool) {
	for i, th := range t.thresholds {
		if th.Bucket != b {
			continue
		}
		if i == len(t.thresholds)-1 {
			return th.MinDPD, -1, true
		}
		return th.MinDPD, t.thresholds[i+1].MinDPD - 1, true
	}
	return 0, 0, false
}

// Thresholds returns a copy of the table rows in ascending order
func (t ThresholdTable) Thresholds() []Threshold {
	return append([]Threshold(nil), t.thresholds...)
}

// LegalThreshold returns the DPD at which a loan is classified Legal
func (t ThresholdTable) LegalThreshold() int {
	return t.thresholds[len(t.thresholds)-1].MinDPD
}

// String renders the table for logs
func (t ThresholdTable) String() string {
	s := ""
	for _, th := range t.thresholds {
		lo, hi, _ := t.Range(th.Bucket)
		if s != "" {
			s += " "
		}
		if hi < 0 {
			s += fmt.Sprintf("%s:%d+", th.Bucket, lo)
		} else {
			s += fmt.Sprintf("%s:%d-%d", th.Bucket, lo, hi)
		}
	}
	return s
}

// DelinquencyClassifier derives DPD and bucket from a schedule
type DelinquencyClassifier struct {
	table ThresholdTable
}

// NewDelinquencyClassifier creates a classifier over the given table
func NewDelinquencyClassifier(table ThresholdTable) *DelinquencyClassifier {
	return &DelinquencyClassifier{table: table}
}

// Table returns the classifier's threshold table
func (c *DelinquencyClassifier) Table() ThresholdTable {
	return c.table
}

// Classify returns DPD and bucket for s as of asOf
func (c *DelinquencyClassifier) Classify(s *Schedule, asOf time.Time) (int, Bucket) {
	dpd := ComputeDPD(s, asOf)
	return dpd, c.table.BucketFor(dpd)
}

// ComputeDPD returns the days past due of the oldest unpaid installment,
// floored at zero. Only interest and principal count; outstanding penalty
// alone does not make a loan delinquent.
func ComputeDPD(s *Schedule, asOf time.Time) int {
	inst, ok := s.OldestUnpaid()
	if !ok {
		return 0
	}
	return max(DaysBetween(inst.DueDate, asOf), 0)
}
