package main

import (
	"context"

	"github.com/rs/zerolog"

	"ttsd/internal/common/fsutil"
	"ttsd/internal/config"
	"ttsd/internal/gpu"
	"ttsd/internal/resident"
	"ttsd/internal/service"
	"ttsd/internal/tts"
	"ttsd/internal/voices"
)

func newVoiceStores(cfg config.Config) (*voices.Catalog, *voices.CustomStore, error) {
	var voicesDir string
	if cfg.Voices.Dir != "" {
		d, err := fsutil.ResolveDir(cfg.Voices.Dir)
		if err != nil {
			return nil, nil, err
		}
		voicesDir = d
	}
	customDir, err := fsutil.ResolveDir(cfg.Voices.CustomDir)
	if err != nil {
		return nil, nil, err
	}
	return voices.NewCatalog(voicesDir), voices.NewCustomStore(customDir, cfg.MaxUploadBytes), nil
}

// buildService wires the manager, loader and voice stores shared by serve
// and mcp.
func buildService(cfg config.Config, log zerolog.Logger) (*service.Service, error) {
	catalog, custom, err := newVoiceStores(cfg)
	if err != nil {
		return nil, err
	}
	probe := gpu.NvidiaSMI{}
	events := resident.NewHistory(0)
	models := resident.New[tts.Model](resident.Config{
		Name:         "tts",
		IdleTimeout:  cfg.IdleTimeout(),
		PollInterval: cfg.MonitorInterval(),
		Logger:       log,
		Publisher:    events,
		// Runs under the manager lock; the probe can take seconds.
		OnRelease: func() { go logReleasedMemory(context.Background(), probe, log) },
	})
	loader := tts.NewLoader(tts.LoaderConfig{
		Mode: cfg.Engine.Mode,
		Worker: tts.WorkerConfig{
			Bin:       cfg.Engine.WorkerBin,
			Args:      cfg.Engine.WorkerArgs,
			Host:      cfg.Engine.Host,
			PortStart: cfg.Engine.PortStart,
			PortEnd:   cfg.Engine.PortEnd,
			Device:    cfg.Engine.Device,
			HFRepo:    cfg.Engine.HFRepo,
			VoiceRepo: cfg.Engine.VoiceRepo,
		},
		RemoteURL:    cfg.Engine.WorkerURL,
		ReadyTimeout: cfg.ReadyTimeout(),
	}, log)
	svc := service.New(models, loader.Load, service.Options{
		Catalog:      catalog,
		Custom:       custom,
		Embeddings:   voices.NewEmbeddingCache(),
		Probe:        probe,
		Events:       events,
		DefaultVoice: cfg.Voices.Default,
		Logger:       log,
	})
	log.Info().
		Str("mode", cfg.Engine.Mode).
		Dur("idle_timeout", cfg.IdleTimeout()).
		Str("voices_dir", catalog.Dir()).
		Msg("service configured")
	return svc, nil
}

// logReleasedMemory reports device memory after the model was released, so
// operators can confirm the worker actually gave it back.
func logReleasedMemory(ctx context.Context, probe gpu.Probe, log zerolog.Logger) {
	mem, err := probe.Memory(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("gpu probe after release")
		return
	}
	if !mem.Available {
		return
	}
	log.Info().Int64("used_mb", mem.UsedMB).Int64("total_mb", mem.TotalMB).Msg("gpu memory after release")
}
