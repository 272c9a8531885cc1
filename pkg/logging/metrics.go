package logging

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsWriter records every numeric value of a record as an OpenTelemetry
// gauge named prefix_key. Non-numeric values are ignored.
type MetricsWriter struct {
	meter   metric.Meter
	prefix  string
	attrs   metric.MeasurementOption
	records metric.Int64Counter

	mu     sync.Mutex
	gauges map[string]metric.Float64Gauge
}

func NewMetricsWriter(meter metric.Meter, prefix, label string) (*MetricsWriter, error) {
	records, err := meter.Int64Counter(
		prefix+"_records_total",
		metric.WithDescription("Total records written"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create records counter: %w", err)
	}
	return &MetricsWriter{
		meter:   meter,
		prefix:  prefix,
		attrs:   metric.WithAttributes(attribute.String("label", label)),
		records: records,
		gauges:  make(map[string]metric.Float64Gauge),
	}, nil
}

func (w *MetricsWriter) Write(ctx context.Context, data Data) error {
	for _, k := range data.Keys() {
		v, ok := toFloat(data[k])
		if !ok {
			continue
		}
		g, err := w.gauge(k)
		if err != nil {
			return err
		}
		g.Record(ctx, v, w.attrs)
	}
	w.records.Add(ctx, 1, w.attrs)
	return nil
}

func (w *MetricsWriter) gauge(key string) (metric.Float64Gauge, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if g, ok := w.gauges[key]; ok {
		return g, nil
	}
	g, err := w.meter.Float64Gauge(w.prefix + "_" + key)
	if err != nil {
		return nil, fmt.Errorf("failed to create gauge %q: %w", key, err)
	}
	w.gauges[key] = g
	return g, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}
