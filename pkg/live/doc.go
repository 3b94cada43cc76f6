// Package live is a duplex streaming client for conversational AI sessions.
//
// A Dialer opens a Session. Callers stream microphone audio with Send and
// consume inbound events from Events. Events form a closed set of variants
// and are meant to be handled with an exhaustive type switch:
//
//	for ev := range sess.Events() {
//		switch ev := ev.(type) {
//		case live.Opened:
//		case live.PartialTranscript:
//		case live.TurnComplete:
//		case live.AudioChunk:
//		case live.Interrupted:
//		case live.Error:
//		case live.Closed:
//		}
//	}
//
// Every Session guarantees that Opened arrives exactly once and before any
// data event, that Closed arrives at most once as the terminal event, and
// that Close is idempotent.
//
// Gemini implements the protocol over the Gemini Live websocket API. Mock
// provides a scripted session for tests.
package live
