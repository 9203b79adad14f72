package metrics

import (
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistry(t *testing.T) {
	reg := NewRegistry()

	reg.RecordScan("completed", 1.5)
	reg.RecordScan("completed", 0.2)
	reg.RecordScan("timed-out", 300)
	reg.ActiveScans.Inc()
	reg.StoreWriteErrors.Inc()
	reg.EventsPublished.WithLabelValues("host-updated").Inc()
	reg.SubscribersDropped.Inc()

	assert.Equal(t, 2.0, testutil.ToFloat64(reg.ScansTotal.WithLabelValues("completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.ScansTotal.WithLabelValues("timed-out")))
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.ActiveScans))
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.StoreWriteErrors))
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.EventsPublished.WithLabelValues("host-updated")))
}

func TestRegistriesAreIsolated(t *testing.T) {
	a := NewRegistry()
	b := NewRegistry()

	a.StoreWriteErrors.Inc()
	assert.Equal(t, 1.0, testutil.ToFloat64(a.StoreWriteErrors))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.StoreWriteErrors))
}

func TestHandler(t *testing.T) {
	reg := NewRegistry()
	reg.RecordScan("completed", 1)

	rec := httptest.NewRecorder()
	reg.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "violette_scans_total")
}
