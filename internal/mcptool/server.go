// Package mcptool exposes speech synthesis as Model Context Protocol tools,
// over stdio for local agents and over streamable HTTP when mounted by the
// server.
package mcptool

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"ttsd/internal/audio"
	"ttsd/internal/common/fsutil"
	"ttsd/pkg/types"
)

// Service is the subset of the speech service the tools call.
type Service interface {
	Synthesize(ctx context.Context, req types.SynthesisRequest) (audio.Clip, error)
	GPUStatus(ctx context.Context) types.GPUStatus
	Offload() types.OffloadResponse
}

type Config struct {
	Name    string
	Version string
	// OffloadAfterCall releases the model after every text_to_speech call,
	// successful or not, for hosts that share the device with other work.
	OffloadAfterCall bool
	Logger           zerolog.Logger
}

// Server holds the tool registry.
type Server struct {
	mcp     *server.MCPServer
	svc     Service
	offload bool
	log     zerolog.Logger
}

func New(svc Service, cfg Config) *Server {
	if cfg.Name == "" {
		cfg.Name = "ttsd"
	}
	if cfg.Version == "" {
		cfg.Version = "1.0.0"
	}
	s := &Server{
		mcp: server.NewMCPServer(cfg.Name, cfg.Version,
			server.WithToolCapabilities(true),
			server.WithRecovery(),
		),
		svc:     svc,
		offload: cfg.OffloadAfterCall,
		log:     cfg.Logger.With().Str("component", "mcp").Logger(),
	}
	s.setupTools()
	return s
}

func (s *Server) setupTools() {
	s.mcp.AddTool(mcp.NewTool("text_to_speech",
		mcp.WithDescription("Convert text to speech and save it as a WAV file"),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("Text to synthesize"),
		),
		mcp.WithString("output_path",
			mcp.Required(),
			mcp.Description("Path to save the audio file (must end with .wav)"),
		),
		mcp.WithString("voice",
			mcp.Description("Voice name; custom/<name>.wav for uploaded voices (default: server default voice)"),
		),
		mcp.WithNumber("cfg_coef",
			mcp.Description("CFG coefficient (1.0-3.0, default: 2.0)"),
			mcp.Min(1),
			mcp.Max(3),
		),
	), s.handleTextToSpeech)

	s.mcp.AddTool(mcp.NewTool("get_gpu_status",
		mcp.WithDescription("Get GPU status and memory usage"),
	), s.handleGPUStatus)

	s.mcp.AddTool(mcp.NewTool("offload_gpu",
		mcp.WithDescription("Force offload the model from GPU to free memory"),
	), s.handleOffload)
}

// MCPServer returns the underlying protocol server.
func (s *Server) MCPServer() *server.MCPServer { return s.mcp }

// ServeStdio serves tools on stdin/stdout until EOF or a signal.
func (s *Server) ServeStdio() error { return server.ServeStdio(s.mcp) }

// HTTPHandler returns a streamable HTTP transport for mounting at /mcp.
func (s *Server) HTTPHandler() http.Handler { return server.NewStreamableHTTPServer(s.mcp) }

type ttsResult struct {
	Status          string  `json:"status"`
	OutputPath      string  `json:"output_path,omitempty"`
	DurationSeconds float64 `json:"duration_seconds,omitempty"`
	SampleRate      int     `json:"sample_rate,omitempty"`
	Error           string  `json:"error,omitempty"`
}

func (s *Server) handleTextToSpeech(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.offload {
		defer s.svc.Offload()
	}
	text, err := request.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, err := request.RequireString("output_path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !strings.HasSuffix(strings.ToLower(out), ".wav") {
		return errorResult("output_path must end with .wav"), nil
	}
	out, err = fsutil.ExpandHome(out)
	if err != nil {
		return errorResult(err.Error()), nil
	}

	clip, err := s.svc.Synthesize(ctx, types.SynthesisRequest{
		Text:    text,
		Voice:   request.GetString("voice", ""),
		CFGCoef: request.GetFloat("cfg_coef", 0),
	})
	if err != nil {
		s.log.Error().Err(err).Msg("text_to_speech")
		return errorResult(err.Error()), nil
	}
	if dir := filepath.Dir(out); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errorResult(err.Error()), nil
		}
	}
	if err := audio.WriteWAVFile(out, clip); err != nil {
		return errorResult(err.Error()), nil
	}
	s.log.Info().Str("path", out).Dur("audio", clip.Duration()).Msg("text_to_speech")
	return jsonResult(ttsResult{
		Status:          "success",
		OutputPath:      out,
		DurationSeconds: clip.Duration().Seconds(),
		SampleRate:      clip.SampleRate,
	}), nil
}

type gpuResult struct {
	Available     bool    `json:"available"`
	ModelLoaded   bool    `json:"model_loaded"`
	State         string  `json:"state"`
	MemoryUsedGB  float64 `json:"memory_used_gb,omitempty"`
	MemoryTotalGB float64 `json:"memory_total_gb,omitempty"`
}

func (s *Server) handleGPUStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st := s.svc.GPUStatus(ctx)
	return jsonResult(gpuResult{
		Available:     st.Available,
		ModelLoaded:   st.Loaded,
		State:         st.State,
		MemoryUsedGB:  st.MemoryUsedGB,
		MemoryTotalGB: st.MemoryTotalGB,
	}), nil
}

func (s *Server) handleOffload(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res := s.svc.Offload()
	msg := "GPU memory released"
	if !res.Released {
		msg = "no model was loaded"
	}
	return jsonResult(map[string]any{"status": msg, "released": res.Released}), nil
}

func jsonResult(v any) *mcp.CallToolResult {
	b, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode result: %v", err))
	}
	return mcp.NewToolResultText(string(b))
}

func errorResult(msg string) *mcp.CallToolResult {
	b, _ := json.Marshal(ttsResult{Status: "error", Error: msg})
	return mcp.NewToolResultError(string(b))
}
