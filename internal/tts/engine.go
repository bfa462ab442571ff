// Package tts talks to the speech model. The model itself lives in a worker
// process that owns the accelerator memory; this package spawns or connects
// to that worker and exposes it as a Model, the artifact held by the
// resident manager.
package tts

import (
	"context"

	"ttsd/internal/audio"
)

// DefaultCFGCoef is the classifier-free guidance coefficient used when a
// request does not set one.
const DefaultCFGCoef = 2.0

// Request contains parameters for one synthesis.
type Request struct {
	Text string
	// Voice names a catalog voice. Ignored when Embedding is set.
	Voice string
	// Embedding is a precomputed speaker embedding (custom voices).
	Embedding []float32
	CFGCoef   float64
}

// Model is a loaded speech model. Close releases the accelerator memory it
// holds. Implementations are safe for concurrent use; any serialization of
// inference is the worker's business.
type Model interface {
	Close() error
	SampleRate() int
	Synthesize(ctx context.Context, req Request) (audio.Clip, error)
	// Stream delivers audio chunks as the worker produces them.
	Stream(ctx context.Context, req Request, onChunk func(audio.Clip) error) error
	// Embed extracts a speaker embedding from a reference WAV on disk.
	Embed(ctx context.Context, voicePath string) ([]float32, error)
}
