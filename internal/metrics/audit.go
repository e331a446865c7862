package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/metric"

	"github.com/allisson/zeroalloc/internal/audit"
)

// RegisterAuditor exports the auditor's free count and its current verdict
// (1 when every logged free was zero) as observable gauges.
func RegisterAuditor(
	meterProvider metric.MeterProvider,
	namespace string,
	auditor *audit.Auditor,
) (metric.Registration, error) {
	meter := meterProvider.Meter(namespace)

	frees, err := meter.Int64ObservableGauge(
		fmt.Sprintf("%s_audit_frees", namespace),
		metric.WithDescription("Frees observed by the auditor since the last clear"),
		metric.WithUnit("{free}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create audit frees gauge: %w", err)
	}

	verdict, err := meter.Int64ObservableGauge(
		fmt.Sprintf("%s_audit_all_zeroed", namespace),
		metric.WithDescription("1 when every logged free was all zero, 0 otherwise"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create audit verdict gauge: %w", err)
	}

	return meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveInt64(frees, int64(auditor.FreeCount()))
		var zeroed int64
		if auditor.VerifyAllZeroed() {
			zeroed = 1
		}
		o.ObserveInt64(verdict, zeroed)
		return nil
	}, frees, verdict)
}
