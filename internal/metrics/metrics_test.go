package metrics

import (
	"context"
	"encoding/json"
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

func TestCollector(t *testing.T) {
	c := New()
	c.ObserveTransfer("pub2priv", "confirmed", time.Second)
	c.ObserveTransfer("pub2priv", "confirmed", time.Second)
	c.ObserveTransfer("priv2pub", "failed", time.Second)
	c.ObserveStage("pub2priv", "witness", time.Millisecond, errors.New("boom"))
	c.ObserveStage("pub2priv", "proof", time.Millisecond, nil)
	c.ObserveSearch(time.Millisecond, 100, true)
	c.ObserveSearch(time.Millisecond, 50, false)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.transfers.WithLabelValues("pub2priv", "confirmed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.transfers.WithLabelValues("priv2pub", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.stageErrors.WithLabelValues("pub2priv", "witness")))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.stageErrors.WithLabelValues("pub2priv", "proof")))
	assert.Equal(t, 150.0, testutil.ToFloat64(c.searchSteps))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.searchMisses))

	expected := `
# HELP axiompay_dlog_not_found_total Searches that exhausted the bound.
# TYPE axiompay_dlog_not_found_total counter
axiompay_dlog_not_found_total 1
`
	require.NoError(t, testutil.GatherAndCompare(c.Registry(), strings.NewReader(expected), "axiompay_dlog_not_found_total"))
}

func TestHandler(t *testing.T) {
	c := New()
	c.RecordCircuitSetup("priv2priv")

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `axiompay_circuit_setups_total{kind="priv2priv"} 1`)
}

func TestHealthChecker(t *testing.T) {
	hc := NewHealthChecker("test")
	hc.RegisterComponent("keystore", func(context.Context) error { return nil })
	hc.RegisterComponent("artifacts", nil)

	h := hc.CheckHealth(context.Background())
	assert.Equal(t, Healthy, h.OverallStatus)
	require.Len(t, h.Components, 2)
	assert.Equal(t, "artifacts", h.Components[0].Name)

	hc.UpdateComponent("artifacts", Degraded, "verifying key missing")
	assert.Equal(t, Degraded, hc.CheckHealth(context.Background()).OverallStatus)

	hc.RegisterComponent("ledger", func(context.Context) error { return errors.New("unreachable") })
	rec := httptest.NewRecorder()
	hc.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var got SystemHealth
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, Unhealthy, got.OverallStatus)
	assert.Equal(t, "test", got.Version)
}

func TestHealthCheckerDegraded(t *testing.T) {
	hc := NewHealthChecker("test")
	hc.RegisterComponent("keystore", func(context.Context) error {
		return errors.Join(ErrDegraded, errors.New("key not generated"))
	})

	h := hc.CheckHealth(context.Background())
	assert.Equal(t, Degraded, h.OverallStatus)
	require.Len(t, h.Components, 1)
	assert.Contains(t, h.Components[0].Message, "key not generated")

	rec := httptest.NewRecorder()
	hc.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
