// Package service joins the resident speech model with voice storage and
// device probing. It is the only production caller of the resident manager;
// the HTTP and tool-call front ends sit on top of it.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"ttsd/internal/audio"
	"ttsd/internal/gpu"
	"ttsd/internal/resident"
	"ttsd/internal/tts"
	"ttsd/internal/voices"
	"ttsd/pkg/types"
)

const (
	minCFGCoef = 1.0
	maxCFGCoef = 3.0
)

// Options wires the collaborators of a Service. Nil fields get inert
// defaults: an empty catalog, no custom voice directory, no device.
type Options struct {
	Catalog    *voices.Catalog
	Custom     *voices.CustomStore
	Embeddings *voices.EmbeddingCache
	Probe      gpu.Probe
	// Events is the history the manager publishes to, reported by GPUStatus.
	Events       *resident.History
	DefaultVoice string
	Logger       zerolog.Logger
}

// Service implements the speech operations exposed over HTTP and MCP.
type Service struct {
	models       *resident.Manager[tts.Model]
	load         resident.Factory[tts.Model]
	catalog      *voices.Catalog
	custom       *voices.CustomStore
	embeds       *voices.EmbeddingCache
	probe        gpu.Probe
	events       *resident.History
	defaultVoice string
	log          zerolog.Logger

	preloading atomic.Bool
	closed     atomic.Bool
}

// New returns a Service that obtains its model from models, constructing it
// with load when absent.
func New(models *resident.Manager[tts.Model], load resident.Factory[tts.Model], opts Options) *Service {
	s := &Service{
		models:       models,
		load:         load,
		catalog:      opts.Catalog,
		custom:       opts.Custom,
		embeds:       opts.Embeddings,
		probe:        opts.Probe,
		events:       opts.Events,
		defaultVoice: opts.DefaultVoice,
		log:          opts.Logger,
	}
	if s.catalog == nil {
		s.catalog = voices.NewCatalog("")
	}
	if s.custom == nil {
		s.custom = voices.NewCustomStore("", 0)
	}
	if s.embeds == nil {
		s.embeds = voices.NewEmbeddingCache()
	}
	if s.probe == nil {
		s.probe = gpu.None
	}
	return s
}

// Synthesize renders req to a single clip.
func (s *Service) Synthesize(ctx context.Context, req types.SynthesisRequest) (audio.Clip, error) {
	start := time.Now()
	clip, err := s.synthesize(ctx, req)
	s.observe("full", start, err)
	if err == nil {
		audioSecondsTotal.Add(clip.Duration().Seconds())
	}
	return clip, err
}

func (s *Service) synthesize(ctx context.Context, req types.SynthesisRequest) (audio.Clip, error) {
	r, refPath, err := s.prepare(req)
	if err != nil {
		return audio.Clip{}, err
	}
	m, err := s.models.Acquire(ctx, s.load)
	if err != nil {
		return audio.Clip{}, err
	}
	if err := s.condition(ctx, m, &r, refPath); err != nil {
		return audio.Clip{}, err
	}
	return m.Synthesize(ctx, r)
}

// Stream renders req and hands audio to onChunk as it is produced. An error
// from onChunk stops generation and is returned.
func (s *Service) Stream(ctx context.Context, req types.SynthesisRequest, onChunk func(audio.Clip) error) error {
	start := time.Now()
	err := s.stream(ctx, req, func(c audio.Clip) error {
		audioSecondsTotal.Add(c.Duration().Seconds())
		return onChunk(c)
	})
	s.observe("stream", start, err)
	return err
}

func (s *Service) stream(ctx context.Context, req types.SynthesisRequest, onChunk func(audio.Clip) error) error {
	r, refPath, err := s.prepare(req)
	if err != nil {
		return err
	}
	m, err := s.models.Acquire(ctx, s.load)
	if err != nil {
		return err
	}
	if err := s.condition(ctx, m, &r, refPath); err != nil {
		return err
	}
	return m.Stream(ctx, r, onChunk)
}

func (s *Service) observe(mode string, start time.Time, err error) {
	result := "ok"
	switch {
	case err == nil:
	case IsBadRequest(err):
		result = "invalid"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		result = "canceled"
	default:
		result = "error"
	}
	synthesisTotal.WithLabelValues(mode, result).Inc()
	synthesisDuration.WithLabelValues(mode).Observe(time.Since(start).Seconds())
}

func validate(req *types.SynthesisRequest) error {
	if strings.TrimSpace(req.Text) == "" {
		return badRequestError{msg: "text is required"}
	}
	if req.CFGCoef != 0 && (req.CFGCoef < minCFGCoef || req.CFGCoef > maxCFGCoef || math.IsNaN(req.CFGCoef)) {
		return badRequestError{msg: fmt.Sprintf("cfg_coef must be between %.0f and %.0f", minCFGCoef, maxCFGCoef)}
	}
	return nil
}

// prepare validates req and resolves its voice without touching the model,
// so bad requests never trigger a load. A custom voice with a cached
// embedding is conditioned here; otherwise refPath names the reference clip
// the embedding must be extracted from.
func (s *Service) prepare(req types.SynthesisRequest) (r tts.Request, refPath string, err error) {
	if err := validate(&req); err != nil {
		return tts.Request{}, "", err
	}
	voice := strings.TrimSpace(req.Voice)
	if voice == "" {
		voice = s.defaultVoice
	}
	r = tts.Request{Text: req.Text, Voice: voice, CFGCoef: req.CFGCoef}
	if r.CFGCoef == 0 {
		r.CFGCoef = tts.DefaultCFGCoef
	}
	if !voices.IsCustom(voice) {
		return r, "", nil
	}
	// The cache is keyed by the canonical id so aliases share one entry and
	// a re-upload invalidates all of them.
	voice, err = voices.CanonicalID(voice)
	if err != nil {
		if errors.Is(err, voices.ErrInvalidVoiceName) {
			return tts.Request{}, "", badRequestError{msg: err.Error()}
		}
		return tts.Request{}, "", err
	}
	r.Voice = voice
	if emb, ok := s.embeds.Get(voice); ok {
		embeddingLookups.WithLabelValues("hit").Inc()
		r.Embedding = emb
		return r, "", nil
	}
	embeddingLookups.WithLabelValues("miss").Inc()
	refPath, err = s.custom.Resolve(voice)
	if err != nil {
		return tts.Request{}, "", err
	}
	return r, refPath, nil
}

// condition extracts and caches the embedding for a custom voice that
// prepare could not serve from the cache.
func (s *Service) condition(ctx context.Context, m tts.Model, r *tts.Request, refPath string) error {
	if refPath == "" {
		return nil
	}
	emb, err := m.Embed(ctx, refPath)
	if err != nil {
		return fmt.Errorf("extract embedding for %s: %w", r.Voice, err)
	}
	s.embeds.Put(r.Voice, emb)
	s.log.Debug().Str("voice", r.Voice).Int("dims", len(emb)).Msg("embedding cached")
	r.Embedding = emb
	return nil
}

// UploadVoice stores a reference clip under name and caches its embedding,
// loading the model if necessary. A clip stored before a failed extraction
// stays usable; its embedding is extracted on first synthesis instead.
func (s *Service) UploadVoice(ctx context.Context, name string, r io.Reader) (types.VoiceUploadResponse, error) {
	c, err := s.custom.Save(name, r)
	if err != nil {
		switch {
		case errors.Is(err, voices.ErrInvalidVoiceName), errors.Is(err, voices.ErrNotWAV), errors.Is(err, voices.ErrTooLarge):
			return types.VoiceUploadResponse{}, badRequestError{msg: err.Error()}
		}
		return types.VoiceUploadResponse{}, err
	}
	s.embeds.Delete(c.ID)
	s.log.Info().Str("voice", c.ID).Dur("duration", c.Info.Duration).Msg("custom voice stored")

	m, err := s.models.Acquire(ctx, s.load)
	if err != nil {
		return types.VoiceUploadResponse{}, err
	}
	emb, err := m.Embed(ctx, c.Path)
	if err != nil {
		return types.VoiceUploadResponse{}, fmt.Errorf("extract embedding for %s: %w", c.ID, err)
	}
	s.embeds.Put(c.ID, emb)
	return types.VoiceUploadResponse{
		Status:          "success",
		VoicePath:       c.ID,
		EmbeddingCached: true,
		DurationSeconds: c.Info.Duration.Seconds(),
		Message:         fmt.Sprintf("Voice uploaded and cached. Use %q", c.ID),
	}, nil
}

// Voices lists the built-in catalog.
func (s *Service) Voices() ([]string, error) { return s.catalog.List() }

// CustomVoices lists uploaded voices.
func (s *Service) CustomVoices() ([]string, error) { return s.custom.List() }

// Health reports liveness and whether a device is visible.
func (s *Service) Health(ctx context.Context) types.HealthResponse {
	mem, err := s.probe.Memory(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("gpu probe")
	}
	return types.HealthResponse{Status: "ok", GPU: mem.Available}
}

// GPUStatus reports residency and device memory without loading anything.
func (s *Service) GPUStatus(ctx context.Context) types.GPUStatus {
	st := s.models.Status()
	out := types.GPUStatus{
		Loaded:             st.State == resident.StateResident,
		State:              string(st.State),
		IdleTimeoutSeconds: int64(st.IdleTimeout / time.Second),
		Loads:              st.Loads,
		LoadFailures:       st.LoadFailures,
		Releases:           st.Releases,
		CachedEmbeddings:   s.embeds.Len(),
		LastError:          st.LastError,
	}
	if out.IdleTimeoutSeconds < 0 {
		out.IdleTimeoutSeconds = 0
	}
	if !st.LastUsed.IsZero() {
		out.LastUsed = st.LastUsed.Unix()
	}
	if s.events != nil {
		out.RecentEvents = lifecycleEvents(s.events.Events())
	}
	mem, err := s.probe.Memory(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("gpu probe")
		return out
	}
	out.Available = mem.Available
	out.MemoryUsedGB = mibToGiB(mem.UsedMB)
	out.MemoryTotalGB = mibToGiB(mem.TotalMB)
	return out
}

func lifecycleEvents(evts []resident.Event) []types.LifecycleEvent {
	out := make([]types.LifecycleEvent, 0, len(evts))
	for _, e := range evts {
		le := types.LifecycleEvent{Event: e.Name, AtUnix: e.Time.Unix()}
		if v, ok := e.Fields["reason"].(string); ok {
			le.Reason = v
		}
		if v, ok := e.Fields["dur_ms"].(int); ok {
			le.DurationMS = v
		}
		if v, ok := e.Fields["error"].(string); ok {
			le.Error = v
		}
		out = append(out, le)
	}
	return out
}

func mibToGiB(mb int64) float64 {
	return math.Round(float64(mb)/1024*100) / 100
}

// Offload releases the model if it is resident.
func (s *Service) Offload() types.OffloadResponse {
	released := s.models.ForceRelease()
	s.log.Info().Bool("released", released).Msg("offload requested")
	return types.OffloadResponse{Status: "offloaded", Released: released}
}

// Preload constructs the model ahead of the first request. Ready reports
// false while it runs.
func (s *Service) Preload(ctx context.Context) error {
	s.preloading.Store(true)
	defer s.preloading.Store(false)
	start := time.Now()
	if _, err := s.models.Acquire(ctx, s.load); err != nil {
		s.log.Error().Err(err).Msg("preload failed")
		return err
	}
	s.log.Info().Dur("dur", time.Since(start)).Msg("preload complete")
	return nil
}

// Ready reports whether the service accepts work. The model loads on
// demand, so this is true unless a preload is running or Close was called.
func (s *Service) Ready() bool {
	return !s.closed.Load() && !s.preloading.Load()
}

// Close releases the model and rejects further synthesis.
func (s *Service) Close() error {
	s.closed.Store(true)
	return s.models.Close()
}
