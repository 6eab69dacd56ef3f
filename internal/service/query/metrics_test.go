package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestRegisterGauge_ReportsCountsByStatus(t *testing.T) {
	svc, _ := newService(t, fixtureOrders()...)

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	reg, err := svc.registerGauge(provider.Meter("test"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = reg.Unregister() })

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	require.Len(t, rm.ScopeMetrics, 1)
	require.Len(t, rm.ScopeMetrics[0].Metrics, 1)

	m := rm.ScopeMetrics[0].Metrics[0]
	assert.Equal(t, "bloom.orders.by_status", m.Name)
	gauge, ok := m.Data.(metricdata.Gauge[int64])
	require.True(t, ok)

	got := make(map[string]int64, len(gauge.DataPoints))
	for _, dp := range gauge.DataPoints {
		status, _ := dp.Attributes.Value(attribute.Key("status"))
		got[status.AsString()] = dp.Value
	}
	assert.Equal(t, map[string]int64{"pending": 1, "completed": 1, "billed": 2}, got)
}
