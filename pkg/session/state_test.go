package session

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-callassist/pkg/transcript"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to State
		want     bool
	}{
		{StateIdle, StateDialing, true},
		{StateDialing, StateConnecting, true},
		{StateConnecting, StateActive, true},
		{StateActive, StateSummarizing, true},
		{StateSummarizing, StateComplete, true},
		{StateActive, StateComplete, true},
		{StateComplete, StateIdle, true},
		{StateActive, StateError, true},
		{StateError, StateIdle, true},
		{StateIdle, StateActive, false},
		{StateSummarizing, StateError, false},
		{StateComplete, StateDialing, false},
		{StateError, StateActive, false},
	}
	for _, tt := range tests {
		t.Run(tt.from.String()+"->"+tt.to.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestState_JSON(t *testing.T) {
	raw, err := json.Marshal(Snapshot{State: StateSummarizing})
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"state":"summarizing"`)
	assert.Equal(t, "unknown", State(42).String())
	assert.False(t, StateIdle.Live())
	assert.True(t, StateActive.Live())
}

func TestIsFatal(t *testing.T) {
	assert.True(t, IsFatal(&CaptureDeniedError{Cause: assert.AnError}))
	assert.True(t, IsFatal(&ConnectionError{Cause: assert.AnError}))
	assert.False(t, IsFatal(&SummarizationError{Cause: assert.AnError}))
	assert.False(t, IsFatal(&DecodeError{Err: assert.AnError}))
	assert.ErrorIs(t, &SummarizationError{Cause: assert.AnError}, assert.AnError)
}

func TestMetrics_RecordSession(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	h := newHarness(t)
	h.engine.metrics = m

	ms := h.startActive()
	ms.SimulatePartial(transcript.SpeakerLocal, "Hello")
	ms.SimulateTurnComplete()
	require.Eventually(t, func() bool { return len(h.engine.Transcript()) == 1 }, waitFor, waitTick)

	_, err := h.engine.EndSession(context.Background(), true)
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionsStarted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionsEnded.WithLabelValues(string(EndedByUser))))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Utterances.WithLabelValues("local")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Summaries.WithLabelValues("success")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ActiveSessions))

	n, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	assert.Positive(t, n)
}
