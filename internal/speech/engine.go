// Package speech turns text into audible speech and keeps at most one
// utterance playing at a time.
package speech

import "context"

// Engine plays a single piece of text.
//
// Say blocks until playback has finished. It must return promptly once
// ctx is cancelled, which is how a newer utterance interrupts it.
type Engine interface {
	Say(ctx context.Context, text string) error
	Name() string
}
