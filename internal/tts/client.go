package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"ttsd/internal/audio"
)

// streamChunkSamples is how many samples are handed to Stream callbacks at a
// time (200ms at 24kHz).
const streamChunkSamples = 4800

// Client speaks the worker HTTP protocol:
//
//	GET  /health     -> {"status":"ok","sample_rate":N}
//	POST /load       -> {"sample_rate":N}
//	POST /unload     -> 200
//	POST /synthesize -> little-endian int16 PCM body, X-Sample-Rate header
//	POST /embed      -> {"embedding":[...]}
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient returns a client for the worker at baseURL. The underlying
// http.Client has no timeout; every call carries a context instead.
func NewClient(baseURL string) *Client {
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), httpClient: &http.Client{Timeout: 0}}
}

// BaseURL returns the worker address.
func (c *Client) BaseURL() string { return c.baseURL }

type healthResponse struct {
	Status     string `json:"status"`
	SampleRate int    `json:"sample_rate"`
}

type synthesizeRequest struct {
	Text           string    `json:"text"`
	Voice          string    `json:"voice,omitempty"`
	VoiceEmbedding []float32 `json:"voice_embedding,omitempty"`
	CFGCoef        float64   `json:"cfg_coef"`
}

type embedRequest struct {
	VoicePath string `json:"voice_path"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Health returns the worker sample rate when it is ready.
func (c *Client) Health(ctx context.Context) (int, error) {
	var hr healthResponse
	if err := c.doJSON(ctx, http.MethodGet, "/health", nil, &hr); err != nil {
		return 0, err
	}
	return hr.SampleRate, nil
}

// Load asks a remote worker to bring the model into accelerator memory.
func (c *Client) Load(ctx context.Context) (int, error) {
	var hr healthResponse
	if err := c.doJSON(ctx, http.MethodPost, "/load", struct{}{}, &hr); err != nil {
		return 0, err
	}
	return hr.SampleRate, nil
}

// Unload asks a remote worker to free its accelerator memory.
func (c *Client) Unload(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodPost, "/unload", struct{}{}, nil)
}

// Embed extracts a speaker embedding from a WAV file visible to the worker.
func (c *Client) Embed(ctx context.Context, voicePath string) ([]float32, error) {
	var er embedResponse
	if err := c.doJSON(ctx, http.MethodPost, "/embed", embedRequest{VoicePath: voicePath}, &er); err != nil {
		return nil, err
	}
	if len(er.Embedding) == 0 {
		return nil, errors.New("worker returned empty embedding")
	}
	return er.Embedding, nil
}

// Stream posts a synthesis request and delivers PCM chunks as they arrive.
// fallbackRate is used when the worker omits X-Sample-Rate.
func (c *Client) Stream(ctx context.Context, req Request, fallbackRate int, onChunk func(audio.Clip) error) error {
	cfg := req.CFGCoef
	if cfg == 0 {
		cfg = DefaultCFGCoef
	}
	payload := synthesizeRequest{Text: req.Text, CFGCoef: cfg}
	if len(req.Embedding) > 0 {
		payload.VoiceEmbedding = req.Embedding
	} else {
		payload.Voice = req.Voice
	}
	resp, err := c.do(ctx, http.MethodPost, "/synthesize", payload)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	rate := fallbackRate
	if v := resp.Header.Get("X-Sample-Rate"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			rate = n
		}
	}
	buf := make([]byte, 2*streamChunkSamples)
	for {
		n, rerr := io.ReadFull(resp.Body, buf)
		if n >= 2 {
			if err := onChunk(audio.Clip{PCM: audio.DecodePCM16(buf[:n]), SampleRate: rate}); err != nil {
				return err
			}
		}
		if rerr != nil {
			if errors.Is(rerr, io.EOF) || errors.Is(rerr, io.ErrUnexpectedEOF) {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read worker audio: %w", rerr)
		}
	}
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	resp, err := c.do(ctx, method, path, in)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode worker %s: %w", path, err)
	}
	return nil
}

// do sends the request and converts transport failures and non-2xx replies
// into typed errors. On success the caller owns resp.Body.
func (c *Client) do(ctx context.Context, method, path string, in any) (*http.Response, error) {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, ErrWorkerUnavailable(fmt.Sprintf("worker %s unreachable: %v", c.baseURL, err))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &WorkerError{Status: resp.StatusCode, Msg: strings.TrimSpace(string(b))}
	}
	return resp, nil
}

// waitHealthy polls /health until it succeeds, exited fires, or timeout.
func (c *Client) waitHealthy(timeout time.Duration, exited <-chan struct{}) (int, error) {
	deadline := time.Now().Add(timeout)
	for {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		rate, err := c.Health(ctx)
		cancel()
		if err == nil {
			return rate, nil
		}
		if time.Now().After(deadline) {
			return 0, ErrWorkerUnavailable(fmt.Sprintf("worker not ready in %s: %s", timeout, c.baseURL))
		}
		select {
		case <-exited:
			return 0, ErrWorkerUnavailable("worker exited before ready")
		case <-time.After(100 * time.Millisecond):
		}
	}
}

// workerModel implements Model on top of a Client. close is the
// mode-specific release (stop the process, or ask the worker to unload).
type workerModel struct {
	client     *Client
	sampleRate int
	close      func() error
}

func (m *workerModel) SampleRate() int { return m.sampleRate }

func (m *workerModel) Synthesize(ctx context.Context, req Request) (audio.Clip, error) {
	var out audio.Clip
	err := m.client.Stream(ctx, req, m.sampleRate, func(c audio.Clip) error {
		return out.Append(c)
	})
	if out.SampleRate == 0 {
		out.SampleRate = m.sampleRate
	}
	return out, err
}

func (m *workerModel) Stream(ctx context.Context, req Request, onChunk func(audio.Clip) error) error {
	return m.client.Stream(ctx, req, m.sampleRate, onChunk)
}

func (m *workerModel) Embed(ctx context.Context, voicePath string) ([]float32, error) {
	return m.client.Embed(ctx, voicePath)
}

func (m *workerModel) Close() error { return m.close() }
