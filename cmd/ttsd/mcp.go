package main

import (
	"os"

	"github.com/spf13/cobra"

	"ttsd/internal/mcptool"
)

func newMCPCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve MCP tools over stdio",
		Long:  "Serve the text_to_speech, get_gpu_status and offload_gpu tools over stdio. Logs go to stderr.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := f.loadConfig(cmd)
			if err != nil {
				return err
			}
			log := newLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat)
			svc, err := buildService(cfg, log)
			if err != nil {
				return err
			}
			defer func() {
				if err := svc.Close(); err != nil {
					log.Error().Err(err).Msg("release on exit")
				}
			}()
			tools := mcptool.New(svc, mcptool.Config{OffloadAfterCall: cfg.MCP.OffloadAfterCall, Logger: log})
			return tools.ServeStdio()
		},
	}
}
