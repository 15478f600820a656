package telemetrytest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/retention-chat/internal/model"
)

func TestRecorder_Last(t *testing.T) {
	r := &Recorder{}
	r.Track(model.EventMessageSent, map[string]any{"n": 1})
	r.Track(model.EventMessageSent, map[string]any{"n": 2})

	last, ok := r.Last(model.EventMessageSent)
	require.True(t, ok)
	assert.Equal(t, 2, last.Props["n"])
	assert.Equal(t, 2, r.Count(model.EventMessageSent))
	assert.Len(t, r.Events(), 2)

	_, ok = r.Last(model.EventOfferAccepted)
	assert.False(t, ok)
}
