package app

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-callassist/internal/config"
	"github.com/teslashibe/go-callassist/pkg/audioio"
	"github.com/teslashibe/go-callassist/pkg/interaction"
	"github.com/teslashibe/go-callassist/pkg/live"
	"github.com/teslashibe/go-callassist/pkg/playback"
	"github.com/teslashibe/go-callassist/pkg/session"
	"github.com/teslashibe/go-callassist/pkg/summary"
	"github.com/teslashibe/go-callassist/pkg/transcript"
)

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Server.Enabled = false
	cfg.Store.Path = filepath.Join(t.TempDir(), "callassist.db")
	cfg.Persona.Client.Name = "Sam Lee"
	cfg.Session.DialDelay = 0
	cfg.Session.Audio.Backend = audioio.BackendMock
	return cfg
}

func testDeps(dialer *live.Mock, sum *summary.Mock) Dependencies {
	return Dependencies{
		Dialer:     dialer,
		Summarizer: sum,
		Source: func() (audioio.Source, error) {
			return audioio.NewMockSource(audioio.DefaultConfig(), quiet(), audioio.WithManualFrames()), nil
		},
		Output: func() (playback.Output, error) {
			return playback.NewMockOutput(), nil
		},
	}
}

func waitActive(t *testing.T, a *App) {
	t.Helper()
	require.Eventually(t, func() bool {
		return a.Engine().State() == session.StateActive
	}, 2*time.Second, 5*time.Millisecond)
}

func TestApp_RunEndsAndStoresSession(t *testing.T) {
	dialer := live.NewMock(live.WithAutoOpen())
	sum := summary.NewMock()
	a, err := New(context.Background(), testConfig(t), Options{AutoStart: true}, testDeps(dialer, sum), quiet())
	require.NoError(t, err)
	defer a.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- a.Run(ctx) }()

	waitActive(t, a)
	ms := dialer.Last()
	require.NotNil(t, ms)
	ms.SimulatePartial(transcript.SpeakerLocal, "Hi, it's Sam")
	ms.SimulatePartial(transcript.SpeakerRemote, "Hello Sam")
	ms.SimulateTurnComplete()
	require.Eventually(t, func() bool { return len(a.Engine().Transcript()) == 2 }, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-errc:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}

	o := a.LastOutcome()
	require.NotNil(t, o)
	assert.Equal(t, session.EndedByUser, o.EndedBy)
	require.True(t, o.Summarized())
	assert.Len(t, sum.Calls(), 1)

	var records []interaction.Record
	require.Eventually(t, func() bool {
		records, err = a.store.List(context.Background(), 10)
		return err == nil && len(records) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, o.SessionID, records[0].SessionID)
	assert.Equal(t, "Sam Lee", records[0].ClientName)
	assert.Contains(t, records[0].SummaryJSON, "Mock client profile")
}

func TestApp_ShutdownAfterRunKeepsRecord(t *testing.T) {
	for i := 0; i < 5; i++ {
		dialer := live.NewMock(live.WithAutoOpen())
		cfg := testConfig(t)
		a, err := New(context.Background(), cfg, Options{AutoStart: true}, testDeps(dialer, summary.NewMock()), quiet())
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		errc := make(chan error, 1)
		go func() { errc <- a.Run(ctx) }()

		waitActive(t, a)
		ms := dialer.Last()
		ms.SimulatePartial(transcript.SpeakerLocal, "Hi")
		ms.SimulateTurnComplete()
		require.Eventually(t, func() bool { return len(a.Engine().Transcript()) == 1 }, 2*time.Second, 5*time.Millisecond)

		cancel()
		require.NoError(t, <-errc)
		a.Shutdown()

		store, err := interaction.Open(cfg.Store.Path)
		require.NoError(t, err)
		records, err := store.List(context.Background(), 10)
		require.NoError(t, store.Close())
		require.NoError(t, err)
		require.Len(t, records, 1, "run %d", i)
		assert.Equal(t, a.LastOutcome().SessionID, records[0].SessionID)
	}
}

func TestApp_RunReturnsWhenSessionCompletes(t *testing.T) {
	dialer := live.NewMock(live.WithAutoOpen())
	cfg := testConfig(t)
	cfg.Store.Enabled = false
	a, err := New(context.Background(), cfg, Options{AutoStart: true}, testDeps(dialer, summary.NewMock()), quiet())
	require.NoError(t, err)
	defer a.Shutdown()

	errc := make(chan error, 1)
	go func() { errc <- a.Run(context.Background()) }()

	waitActive(t, a)
	dialer.Last().SimulateRemoteClose("bye")

	select {
	case err := <-errc:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}
	assert.Equal(t, session.EndedByRemote, a.LastOutcome().EndedBy)
}

func TestApp_ShutdownIsIdempotent(t *testing.T) {
	a, err := New(context.Background(), testConfig(t), Options{}, testDeps(live.NewMock(), summary.NewMock()), quiet())
	require.NoError(t, err)
	a.Shutdown()
	assert.NotPanics(t, a.Shutdown)
}

func TestApp_ShutdownAfterRunError(t *testing.T) {
	cfg := testConfig(t)
	a, err := New(context.Background(), cfg, Options{AutoStart: true}, testDeps(live.NewMock(), summary.NewMock()), quiet())
	require.NoError(t, err)
	require.NoError(t, a.Engine().Close())

	err = a.Run(context.Background())
	require.ErrorIs(t, err, session.ErrEngineClosed)
	a.Shutdown()

	store, err := interaction.Open(cfg.Store.Path)
	require.NoError(t, err)
	assert.NoError(t, store.Close())
}
