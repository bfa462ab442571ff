package tts

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

const defaultUnloadTimeout = 30 * time.Second

// RemoteWorker is a long-running worker managed elsewhere (e.g. a sidecar
// container). Construction asks it to load the model; Close asks it to unload.
type RemoteWorker struct {
	workerModel
	log zerolog.Logger
}

// Connect asks the worker at baseURL to load its model and waits up to
// timeout for it to finish.
func Connect(baseURL string, timeout time.Duration, log zerolog.Logger) (*RemoteWorker, error) {
	if timeout <= 0 {
		timeout = defaultReadyTimeout
	}
	c := NewClient(baseURL)
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	rate, err := c.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load remote model: %w", err)
	}
	w := &RemoteWorker{
		workerModel: workerModel{client: c, sampleRate: rate},
		log:         log.With().Str("component", "worker").Str("url", c.BaseURL()).Logger(),
	}
	w.workerModel.close = w.unload
	w.log.Info().Int("sample_rate", rate).Msg("remote model loaded")
	return w, nil
}

func (w *RemoteWorker) unload() error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultUnloadTimeout)
	defer cancel()
	if err := w.client.Unload(ctx); err != nil {
		return fmt.Errorf("unload remote model: %w", err)
	}
	w.log.Info().Msg("remote model unloaded")
	return nil
}
