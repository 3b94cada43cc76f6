package live

import (
	"github.com/teslashibe/go-callassist/pkg/transcript"
)

// Event is an inbound session event. The set of variants is closed.
type Event interface {
	// Kind returns the event name used in logs and metrics.
	Kind() string
	isEvent()
}

// Opened reports that the session is ready for audio.
type Opened struct{}

// PartialTranscript carries an incremental transcription fragment.
type PartialTranscript struct {
	Speaker transcript.Speaker
	Text    string
}

// TurnComplete marks the end of a conversational turn.
type TurnComplete struct{}

// AudioChunk carries synthesized PCM16 audio. Data is nil when the payload
// could not be decoded from the wire.
type AudioChunk struct {
	Data     []byte
	MIMEType string
}

// Interrupted reports that the remote side detected barge-in.
type Interrupted struct{}

// Error reports a failure of the channel. A Closed event follows.
type Error struct {
	Err error
}

// Closed is the terminal event.
type Closed struct {
	Reason string
}

func (Opened) Kind() string            { return "opened" }
func (PartialTranscript) Kind() string { return "partial_transcript" }
func (TurnComplete) Kind() string      { return "turn_complete" }
func (AudioChunk) Kind() string        { return "audio_chunk" }
func (Interrupted) Kind() string       { return "interrupted" }
func (Error) Kind() string             { return "error" }
func (Closed) Kind() string            { return "closed" }

func (Opened) isEvent()            {}
func (PartialTranscript) isEvent() {}
func (TurnComplete) isEvent()      {}
func (AudioChunk) isEvent()        {}
func (Interrupted) isEvent()       {}
func (Error) isEvent()             {}
func (Closed) isEvent()            {}

// Fragment converts a partial transcript to an aggregator fragment.
func (p PartialTranscript) Fragment() transcript.Fragment {
	return transcript.Fragment{Speaker: p.Speaker, Text: p.Text}
}
