package telemetry

import (
	"context"
	"maps"
	"slices"
	"strings"

	"github.com/grafana/pyroscope-go"
)

// Profiling label keys.
const (
	ProfilingLabelController = "controller"
	ProfilingLabelRoute      = "route"
	ProfilingLabelMethod     = "method"
	ProfilingLabelTenantID   = "tenant_id"
	ProfilingLabelOperation  = "operation"
	ProfilingLabelVariant    = "variant"
)

// Lending operations used as profiling label values.
const (
	OperationDisburse       = "disburse"
	OperationApplyPayment   = "apply_payment"
	OperationRecompute      = "recompute_delinquency"
	OperationOperatorAction = "operator_action"
	OperationSweep          = "delinquency_sweep"
)

// MaxLabelValueLength caps label values to keep Pyroscope series bounded.
const MaxLabelValueLength = 128

// HighCardinalityLabels are dropped from profiling labels. Do not modify at runtime.
var HighCardinalityLabels = map[string]bool{
	"user_id":           true,
	"request_id":        true,
	"loan_id":           true,
	"payment_reference": true,
	"trace_id":          true,
	"span_id":           true,
}

// WithProfilingLabels runs fn with Pyroscope labels attached to ctx.
// Empty, oversized and high-cardinality labels are filtered out first.
func WithProfilingLabels(ctx context.Context, labels map[string]string, fn func(context.Context)) {
	pairs := sanitizeLabels(labels)
	if len(pairs) == 0 {
		fn(ctx)
		return
	}
	pyroscope.TagWrapper(ctx, pyroscope.Labels(pairs...), fn)
}

// LendingOperationLabels returns labels for a lending operation. variant is
// optional and narrows the operation (the trigger of an operator action, the
// interest method of a disbursement).
func LendingOperationLabels(operation, variant string) map[string]string {
	labels := map[string]string{ProfilingLabelOperation: operation}
	if variant != "" {
		labels[ProfilingLabelVariant] = strings.ToLower(variant)
	}
	return labels
}

// HTTPRequestLabels returns the labels the HTTP middleware attaches to a request.
func HTTPRequestLabels(controller, route, method, tenantID string) map[string]string {
	labels := make(map[string]string, 4)
	for k, v := range map[string]string{
		ProfilingLabelController: controller,
		ProfilingLabelRoute:      route,
		ProfilingLabelMethod:     method,
		ProfilingLabelTenantID:   tenantID,
	} {
		if v != "" {
			labels[k] = v
		}
	}
	return labels
}

// sanitizeLabels returns a deterministic key/value slice
func sanitizeLabels(labels map[string]string) []string {
	if len(labels) == 0 {
		return nil
	}
	keys := slices.Sorted(maps.Keys(labels))
	pairs := make([]string, 0, len(labels)*2)
	for _, key := range keys {
		value := labels[key]
		if key == "" || value == "" || HighCardinalityLabels[key] {
			continue
		}
		if len(value) > MaxLabelValueLength {
			value = value[:MaxLabelValueLength]
		}
		if k := sanitizeLabelKey(key); k != "" {
			pairs = append(pairs, k, value)
		}
	}
	return pairs
}

// sanitizeLabelKey lowercases key and keeps only [a-z0-9_]
func sanitizeLabelKey(key string) string {
	key = strings.ToLower(key)
	key = strings.NewReplacer(" ", "_", "-", "_").Replace(key)
	var b strings.Builder
	for i := 0; i < len(key); i++ {
		c := key[i]
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '_' {
			b.WriteByte(c)
		}
	}
	return b.String()
}
