// Package playback schedules decoded speech for gapless playback and stops
// it on barge-in.
//
// Every inbound audio chunk becomes one Handle. The Scheduler places each
// handle on the Output clock immediately after the previous one, or at
// "now" if playback has drained, so successive starts never overlap:
//
//	start[i] >= start[i-1] + duration[i-1]
//
// StopAll silences everything at once and resets the schedule to now. The
// Interrupter maps protocol and user interruptions onto StopAll.
package playback
