package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gathered(t *testing.T) map[string]bool {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	return names
}

func TestRecordHelpers_RegisterSeries(t *testing.T) {
	RecordRequest("POST", "/api/v1/conversations/start", "201", 0.02)
	RecordTransport("send_message", "timeout", 30)

	names := gathered(t)
	assert.True(t, names["api_requests_total"])
	assert.True(t, names["api_request_duration_seconds"])
	assert.True(t, names["retention_transport_duration_seconds"])
}
