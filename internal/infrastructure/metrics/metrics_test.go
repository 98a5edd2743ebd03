package metrics

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	m := New()

	m.TokenIssued("ivr")
	m.TokenIssued("ivr")
	m.TokenIssued("walk_in")
	m.SMSSent("otp", nil)
	m.SMSSent("otp", errors.New("gateway down"))
	m.StatusChanged("completed")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.tokensIssued.WithLabelValues("ivr")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.tokensIssued.WithLabelValues("walk_in")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.smsSent.WithLabelValues("otp", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.smsSent.WithLabelValues("otp", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.statusChanges.WithLabelValues("completed")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.TokenIssued("ivr")
		m.ObserveHTTP("GET", "/health", "200", time.Millisecond)
		m.ReminderDispatched("sent")
	})
}

func TestHandlerExposesNamespace(t *testing.T) {
	m := New()
	m.ObserveHTTP("GET", "/health", "200", 5*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), `clinicq_http_requests_total{method="GET",route="/health",status="200"} 1`)
}
