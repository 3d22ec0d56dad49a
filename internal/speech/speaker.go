package speech

import (
	"context"
	"log/slog"
	"sync"
)

// Utterance is one request to speak one string
type Utterance struct {
	Text string

	done      chan struct{}
	mu        sync.Mutex
	completed bool
	err       error
}

// Done is closed once playback ended, was superseded, or was cancelled
func (u *Utterance) Done() <-chan struct{} {
	return u.done
}

// Completed reports whether playback ended on its own. It is false for
// an utterance that was superseded or cancelled. Only meaningful after Done.
func (u *Utterance) Completed() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.completed
}

// Err is the engine error, if any. Only meaningful after Done.
func (u *Utterance) Err() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.err
}

// Speaker plays utterances through an Engine, one at a time
type Speaker struct {
	engine Engine
	logger *slog.Logger

	mu      sync.Mutex
	current *Utterance
	cancel  context.CancelFunc
}

// NewSpeaker creates a speaker backed by the given engine
func NewSpeaker(engine Engine, logger *slog.Logger) *Speaker {
	return &Speaker{
		engine: engine,
		logger: logger,
	}
}

// Engine returns the engine the speaker plays through
func (s *Speaker) Engine() Engine {
	return s.engine
}

// Speak cancels whatever is playing and starts text. onComplete, when not
// nil, runs once after this utterance finishes and never if a later Speak
// or Cancel supersedes it, even one that arrives after the engine is done
// but before the callback starts. Engine failures count as finished.
func (s *Speaker) Speak(text string, onComplete func()) *Utterance {
	u := &Utterance{Text: text, done: make(chan struct{})}
	ctx, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.current = u
	s.cancel = cancel
	s.mu.Unlock()

	go s.play(ctx, u, onComplete)
	return u
}

func (s *Speaker) play(ctx context.Context, u *Utterance, onComplete func()) {
	err := s.engine.Say(ctx, u.Text)

	if err != nil && ctx.Err() == nil {
		s.logger.Warn("speech engine failed", "engine", s.engine.Name(), "err", err)
	}

	// decided right before the callback so a late Speak still wins
	s.mu.Lock()
	finished := s.current == u && ctx.Err() == nil
	s.mu.Unlock()

	// u stays current while the callback runs so Wait covers it
	if finished && onComplete != nil {
		onComplete()
	}

	u.mu.Lock()
	u.completed = finished
	u.err = err
	u.mu.Unlock()

	s.mu.Lock()
	if s.current == u {
		s.current = nil
		s.cancel()
		s.cancel = nil
	}
	s.mu.Unlock()
	close(u.done)
}

// Cancel stops the current utterance without firing its callback
func (s *Speaker) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	s.current = nil
	s.cancel = nil
}

// Current returns the utterance being played, or nil when idle
func (s *Speaker) Current() *Utterance {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Wait blocks until nothing is playing or ctx is done
func (s *Speaker) Wait(ctx context.Context) error {
	for {
		u := s.Current()
		if u == nil {
			return nil
		}
		select {
		case <-u.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
