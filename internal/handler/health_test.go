package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/applysync/internal/handler"
	"github.com/sakif/applysync/internal/service"
)

type stubReporter struct {
	report service.HealthReport
}

func (s stubReporter) Report(context.Context) service.HealthReport { return s.report }

func getHealth(t *testing.T, r handler.Reporter) map[string]string {
	t.Helper()
	rr := httptest.NewRecorder()
	handler.NewHealthHandler(r).HandleHealth(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var body map[string]string
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	return body
}

func TestHandleHealth_Connected(t *testing.T) {
	ts := time.Date(2026, 10, 15, 8, 1, 2, 345_000_000, time.UTC)

	body := getHealth(t, stubReporter{service.HealthReport{Status: "UP", Timestamp: ts, StoreConnected: true}})

	assert.Equal(t, "UP", body["status"])
	assert.Equal(t, "Connected", body["database"])
	assert.Equal(t, "2026-10-15T08:01:02.345Z", body["timestamp"])
}

func TestHandleHealth_Disconnected(t *testing.T) {
	ts := time.Date(2026, 10, 15, 10, 0, 0, 0, time.FixedZone("CEST", 2*3600))

	body := getHealth(t, stubReporter{service.HealthReport{Status: "UP", Timestamp: ts}})

	assert.Equal(t, "UP", body["status"])
	assert.Equal(t, "Disconnected", body["database"])
	// Always rendered in UTC.
	assert.Equal(t, "2026-10-15T08:00:00.000Z", body["timestamp"])
}
