package metrics

import (
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveRequest(t *testing.T) {
	m := NewWith(prometheus.NewRegistry())

	m.ObserveRequest(http.MethodPost, "/v1/underwriting/evaluate", http.StatusOK, 20*time.Millisecond)
	m.ObserveRequest(http.MethodPost, "/v1/underwriting/evaluate", http.StatusOK, 30*time.Millisecond)
	m.ObserveRequest(http.MethodPost, "/v1/underwriting/evaluate", http.StatusBadRequest, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Requests.WithLabelValues(http.MethodPost, "/v1/underwriting/evaluate", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues(http.MethodPost, "/v1/underwriting/evaluate", "400")))
}

func TestTrackInFlight(t *testing.T) {
	m := NewWith(prometheus.NewRegistry())

	done := m.TrackInFlight()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.InFlight))
	done()
	assert.Equal(t, 0.0, testutil.ToFloat64(m.InFlight))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.ObserveRequest(http.MethodGet, "/healthz", http.StatusOK, time.Millisecond)
		m.TrackInFlight()()
	})
}
