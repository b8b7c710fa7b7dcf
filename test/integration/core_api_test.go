//go:build integration

package integration

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	notifiedBody  = `{"type":"IndexerNotified","uri":"https://x/a","byteLength":1000000,"startTime":"2023-01-01T00:00:00Z"}`
	completedBody = `{"type":"IndexerCompleted","uri":"https://x/a","byteLength":1,"indexing":{"startTime":"2023-01-01T00:00:00Z","endTime":"2023-01-01T00:01:00Z"}}`
)

func TestCoreAPI_EventsAndMetrics(t *testing.T) {
	adapter, _ := openPostgres(t)
	defer adapter.Close()

	h := startHarness(t, adapter, map[string]string{"a": "A", "b": "B"})
	defer h.close(t)

	status, body := h.do(t, http.MethodGet, "/", "", "")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "indexer-metrics-collector", body)

	status, _ = h.do(t, http.MethodPost, "/events", submitter, notifiedBody)
	require.Equal(t, http.StatusAccepted, status)
	status, _ = h.do(t, http.MethodPost, "/events", submitter, completedBody)
	require.Equal(t, http.StatusAccepted, status)

	status, body = h.do(t, http.MethodGet, "/metrics", reader, "")
	require.Equal(t, http.StatusOK, status)
	require.Contains(t, body, `file_size_bytes_count{a="A",b="B"} 1`)
	require.Contains(t, body, `indexing_duration_seconds_sum{a="A",b="B"} 60`)
}

func TestCoreAPI_StatePersistsAcrossRestart(t *testing.T) {
	adapter, _ := openPostgres(t)
	defer adapter.Close()

	first := startHarness(t, adapter, nil)
	for i := 0; i < 3; i++ {
		status, _ := first.do(t, http.MethodPost, "/events", submitter, notifiedBody)
		require.Equal(t, http.StatusAccepted, status)
	}
	first.close(t)

	second := startHarness(t, adapter, nil)
	defer second.close(t)

	_, body := second.do(t, http.MethodGet, "/metrics", reader, "")
	require.Contains(t, body, "file_size_bytes_count 3")
}

func TestCoreAPI_RejectionsApplyNothing(t *testing.T) {
	adapter, _ := openPostgres(t)
	defer adapter.Close()

	h := startHarness(t, adapter, nil)
	defer h.close(t)

	status, _ := h.do(t, http.MethodPost, "/events", "", notifiedBody)
	require.Equal(t, http.StatusUnauthorized, status)
	status, _ = h.do(t, http.MethodPost, "/events", reader, notifiedBody)
	require.Equal(t, http.StatusForbidden, status)
	status, _ = h.do(t, http.MethodPost, "/events", submitter, `{"type":"IndexerNotified"}`)
	require.Equal(t, http.StatusBadRequest, status)

	status, body := h.do(t, http.MethodPost, "/v1/schemas/IndexerNotified/validate", submitter, `{"type":"IndexerNotified"}`)
	require.Equal(t, http.StatusUnprocessableEntity, status)
	require.Contains(t, body, "schema_violation")

	_, body = h.do(t, http.MethodGet, "/metrics", reader, "")
	require.Contains(t, body, "file_size_bytes_count 0")
}
