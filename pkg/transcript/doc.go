// Package transcript merges streamed transcription fragments into whole
// utterances and keeps the ordered transcript of a conversation.
//
// Fragments arrive per speaker while a turn is in progress. The Aggregator
// concatenates them losslessly and only emits utterances when the turn is
// complete, in the order each speaker first spoke during that turn.
package transcript
