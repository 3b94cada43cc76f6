package persona

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-callassist/pkg/transcript"
)

func TestFollowUpCall(t *testing.T) {
	p, err := FollowUpCall(ClientContext{
		Name:       "Dana Reyes",
		Occupation: "nurse",
		Policies:   []string{"Term life", "Auto"},
	})
	require.NoError(t, err)

	assert.Equal(t, KindFollowUpCall, p.Kind)
	assert.Contains(t, p.SystemInstruction, "follow-up phone call")
	assert.Contains(t, p.SystemInstruction, "Dana Reyes")
	assert.Contains(t, p.SystemInstruction, "Term life, Auto")
	assert.NotContains(t, p.SystemInstruction, "Agent notes")
	assert.False(t, p.WantRecommendations)
	assert.Equal(t, "Agent", p.Labels.Label(transcript.SpeakerLocal))
}

func TestSimulatedClient(t *testing.T) {
	p, err := SimulatedClient(ClientContext{Name: "Sam", Notes: "two kids"})
	require.NoError(t, err)

	assert.Equal(t, KindSimulatedClient, p.Kind)
	assert.Contains(t, p.SystemInstruction, "role-playing")
	assert.Contains(t, p.SystemInstruction, "named Sam")
	assert.Contains(t, p.SystemInstruction, "two kids")
	assert.True(t, p.WantRecommendations)
	assert.Equal(t, "Sam", p.Labels.Label(transcript.SpeakerRemote))

	anon, err := SimulatedClient(ClientContext{})
	require.NoError(t, err)
	assert.Equal(t, "Client", anon.Labels.Label(transcript.SpeakerRemote))
}

func TestParseKind(t *testing.T) {
	tests := map[string]Kind{
		"followup":   KindFollowUpCall,
		"Follow-Up":  KindFollowUpCall,
		"onboarding": KindSimulatedClient,
		" client ":   KindSimulatedClient,
	}
	for in, want := range tests {
		got, err := ParseKind(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := ParseKind("sales")
	assert.Error(t, err)

	_, err = ForKind("sales", ClientContext{})
	assert.Error(t, err)
}
