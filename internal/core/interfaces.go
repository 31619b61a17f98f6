// Package core defines the core types and interfaces for the TTS playground.
package core

import "context"

// Store defines the interface for a durable string-keyed, string-valued store.
// Writes are upserts by key, so concurrent writers of the same key are harmless.
type Store interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string) error
	Close() error
}

// SpeechClient performs one remote synthesis call for a piece of text.
type SpeechClient interface {
	Synthesize(ctx context.Context, text string, cfg SynthesisConfig) (AudioPayload, error)
}

// ProgressFunc receives the completed fraction of a synthesis request, in [0, 1].
// It is advisory; a nil ProgressFunc is valid everywhere one is accepted.
type ProgressFunc func(fraction float64)

// Report calls the function if it is set.
func (f ProgressFunc) Report(fraction float64) {
	if f != nil {
		f(fraction)
	}
}
