package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := NewPrometheusRecorder(reg).(*PrometheusRecorder)

	rec.IncCounter("login_success", map[string]string{"chain": "ethereum"})
	rec.IncCounter("login_success", map[string]string{"chain": "ethereum"})
	rec.ObserveLatency("login", 20*time.Millisecond, map[string]string{"chain": "ethereum"})

	assert.Equal(t, 2.0, testutil.ToFloat64(rec.counters.WithLabelValues("login_success", "ethereum")))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.Len(t, families, 2)
}
