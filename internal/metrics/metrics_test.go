package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderCounters(t *testing.T) {
	r := New()

	r.Activation(PathLicense, "success")
	r.Activation(PathLicense, "success")
	r.Activation(PathByKey, "conflict")
	r.Check("active")
	r.LicensesIssued("CuBIT Designer", 3)
	r.Expired(2)
	r.SweepRun(nil)
	r.SweepRun(errors.New("db down"))

	assert.Equal(t, 2.0, testutil.ToFloat64(r.activations.WithLabelValues(PathLicense, "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.activations.WithLabelValues(PathByKey, "conflict")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.checks.WithLabelValues("active")))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.licensesIssued.WithLabelValues("CuBIT Designer")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.expirations))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.sweepRuns.WithLabelValues("error")))
}

func TestNilRecorderIsNoop(t *testing.T) {
	var r *Recorder

	assert.NotPanics(t, func() {
		r.Activation(PathDirect, "success")
		r.Check("not_found")
		r.LicensesIssued("CuBIT Analyzer", 1)
		r.Expired(1)
		r.SweepRun(nil)
		r.Order("fulfilled")
		r.HTTPRequest(http.MethodGet, "/health", http.StatusOK, time.Millisecond)
	})
	assert.Nil(t, r.Registry())
}

func TestHandlerExposesMetrics(t *testing.T) {
	r := New()
	r.HTTPRequest(http.MethodPost, "/v1/activation/check", http.StatusOK, 5*time.Millisecond)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `cubit_http_requests_total{method="POST",route="/v1/activation/check",status="200"} 1`))
	assert.True(t, strings.Contains(body, "go_goroutines"))
}
