package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"ttsd/internal/config"
	"ttsd/internal/httpapi"
	"ttsd/internal/mcptool"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(f *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Example: "  ttsd serve --addr :8900\n" +
			"  ttsd serve --worker-url http://gpu-box:9000 --idle-timeout 300",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := f.loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg)
		},
	}
	fl := cmd.Flags()
	fl.String("addr", "", "HTTP listen address, e.g. :8900")
	fl.Int("idle-timeout", 0, "Seconds of inactivity before the model is released (0=60, negative disables)")
	fl.Bool("preload", true, "Load the model at startup")
	fl.String("worker-bin", "", "Worker executable for spawn mode")
	fl.String("worker-args", "", "Comma-separated arguments passed to the worker before --host/--port")
	fl.String("worker-url", "", "Base URL of an already running worker (switches to remote mode)")
	fl.String("voices-dir", "", "Directory of builtin voice embeddings")
	fl.String("cors-origins", "", "Comma-separated allowed CORS origins (enables CORS)")
	fl.Bool("mcp-http", false, "Expose MCP tools at /mcp")
	return cmd
}

// applyServeFlags overlays the serve flags that were set explicitly.
// Commands without these flags are left untouched.
func applyServeFlags(cmd *cobra.Command, cfg *config.Config) error {
	fl := cmd.Flags()
	var err error
	if fl.Changed("addr") {
		cfg.Addr, err = fl.GetString("addr")
	}
	if err == nil && fl.Changed("idle-timeout") {
		cfg.IdleTimeoutSeconds, err = fl.GetInt("idle-timeout")
	}
	if err == nil && fl.Changed("preload") {
		cfg.Preload, err = fl.GetBool("preload")
	}
	if err == nil && fl.Changed("worker-bin") {
		cfg.Engine.WorkerBin, err = fl.GetString("worker-bin")
	}
	if err == nil && fl.Changed("worker-args") {
		var s string
		s, err = fl.GetString("worker-args")
		cfg.Engine.WorkerArgs = splitCSV(s)
	}
	if err == nil && fl.Changed("worker-url") {
		cfg.Engine.WorkerURL, err = fl.GetString("worker-url")
		cfg.Engine.Mode = "remote"
	}
	if err == nil && fl.Changed("voices-dir") {
		cfg.Voices.Dir, err = fl.GetString("voices-dir")
	}
	if err == nil && fl.Changed("cors-origins") {
		var s string
		s, err = fl.GetString("cors-origins")
		cfg.CORS.Origins = splitCSV(s)
		cfg.CORS.Enabled = len(cfg.CORS.Origins) > 0
	}
	if err == nil && fl.Changed("mcp-http") {
		cfg.MCP.HTTPEnabled, err = fl.GetBool("mcp-http")
	}
	return err
}

func runServe(ctx context.Context, cfg config.Config) error {
	log := newLogger(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	svc, err := buildService(cfg, log)
	if err != nil {
		return err
	}

	httpapi.SetLogger(log)
	httpapi.SetRequestLogLevel(cfg.LogLevel)
	httpapi.SetBaseContext(ctx)
	httpapi.SetMaxUploadBytes(cfg.MaxUploadBytes)
	httpapi.SetCORSOptions(cfg.CORS.Enabled, cfg.CORS.Origins, cfg.CORS.Methods, cfg.CORS.Headers)

	var opts []httpapi.Option
	if cfg.MCP.HTTPEnabled {
		tools := mcptool.New(svc, mcptool.Config{OffloadAfterCall: cfg.MCP.OffloadAfterCall, Logger: log})
		opts = append(opts, httpapi.WithMCP(tools.HTTPHandler()))
	}
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.NewMux(svc, opts...),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if cfg.Preload {
		go func() {
			if err := svc.Preload(ctx); err != nil {
				log.Warn().Err(err).Msg("continuing without preloaded model; it will load on first request")
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("ttsd listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			_ = svc.Close()
			return err
		}
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown error")
	}
	if err := svc.Close(); err != nil {
		log.Error().Err(err).Msg("release on shutdown")
	}
	return nil
}
