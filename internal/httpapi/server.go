// Package httpapi exposes the speech service over HTTP with chi.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ttsd/internal/audio"
	"ttsd/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	Synthesize(ctx context.Context, req types.SynthesisRequest) (audio.Clip, error)
	Stream(ctx context.Context, req types.SynthesisRequest, onChunk func(audio.Clip) error) error
	UploadVoice(ctx context.Context, name string, r io.Reader) (types.VoiceUploadResponse, error)
	Voices() ([]string, error)
	CustomVoices() ([]string, error)
	Health(ctx context.Context) types.HealthResponse
	GPUStatus(ctx context.Context) types.GPUStatus
	Offload() types.OffloadResponse
	Ready() bool
}

type muxOptions struct {
	mcp http.Handler
}

// Option customizes NewMux.
type Option func(*muxOptions)

// WithMCP mounts a tool-call protocol handler at /mcp.
func WithMCP(h http.Handler) Option {
	return func(o *muxOptions) { o.mcp = h }
}

func NewMux(svc Service, opts ...Option) http.Handler {
	var o muxOptions
	for _, fn := range opts {
		fn(&o)
	}

	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	// Compression applies to JSON and HTML; audio passes through untouched.
	r.Use(middleware.Compress(5))
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
			ExposedHeaders: []string{"X-Sample-Rate", "X-Request-Id"},
			MaxAge:         300,
		}))
	}
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/", serveIndex)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, svc.Health(r.Context()))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("loading"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/voices", func(w http.ResponseWriter, r *http.Request) {
			list, err := svc.Voices()
			if err != nil {
				writeJSONError(w, http.StatusInternalServerError, err.Error())
				return
			}
			writeJSON(w, types.VoicesResponse{Voices: list})
		})
		r.Get("/voices/custom", func(w http.ResponseWriter, r *http.Request) {
			list, err := svc.CustomVoices()
			if err != nil {
				writeJSONError(w, http.StatusInternalServerError, err.Error())
				return
			}
			writeJSON(w, types.VoicesResponse{Voices: list})
		})
		r.Post("/tts", handleSynthesize(svc))
		r.Post("/tts/stream", handleStream(svc))
		r.Post("/voice/upload", handleUpload(svc))
		r.Get("/gpu/status", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, svc.GPUStatus(r.Context()))
		})
		r.Post("/gpu/offload", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, svc.Offload())
		})
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	MountSwagger(r)
	if o.mcp != nil {
		r.Handle("/mcp", o.mcp)
	}
	return r
}

// parseSynthesisRequest reads a JSON body or form fields.
func parseSynthesisRequest(w http.ResponseWriter, r *http.Request) (types.SynthesisRequest, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req types.SynthesisRequest
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "application/json" {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return req, errors.New("invalid JSON body")
		}
		return req, nil
	}
	if ct == "multipart/form-data" {
		if err := r.ParseMultipartForm(maxBodyBytes); err != nil {
			return req, errors.New("invalid form body")
		}
	} else if err := r.ParseForm(); err != nil {
		return req, errors.New("invalid form body")
	}
	req.Text = r.FormValue("text")
	req.Voice = r.FormValue("voice")
	if v := strings.TrimSpace(r.FormValue("cfg_coef")); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return req, errors.New("cfg_coef must be a number")
		}
		req.CFGCoef = f
	}
	return req, nil
}

func handleSynthesize(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rl := startRequestLog(r, "tts")
		req, err := parseSynthesisRequest(w, r)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			rl.end(http.StatusBadRequest, err)
			return
		}
		// Join server base context with request context so shutdown cancels work too.
		ctx, cancel := requestContext(r)
		defer cancel()
		clip, err := svc.Synthesize(ctx, req)
		if err != nil {
			if canceled(r) {
				rl.end(499, err)
				return
			}
			status := statusFor(err)
			writeJSONError(w, status, err.Error())
			rl.end(status, err)
			return
		}

		path := filepath.Join(os.TempDir(), "ttsd-"+uuid.NewString()+".wav")
		defer os.Remove(path)
		if err := audio.WriteWAVFile(path, clip); err != nil {
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			rl.end(http.StatusInternalServerError, err)
			return
		}
		f, err := os.Open(path)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			rl.end(http.StatusInternalServerError, err)
			return
		}
		defer f.Close()
		fi, err := f.Stat()
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			rl.end(http.StatusInternalServerError, err)
			return
		}
		w.Header().Set("Content-Type", "audio/wav")
		w.Header().Set("Content-Disposition", `inline; filename="speech.wav"`)
		w.Header().Set("X-Sample-Rate", strconv.Itoa(clip.SampleRate))
		http.ServeContent(w, r, "speech.wav", fi.ModTime(), f)
		audioBytesTotal.WithLabelValues("tts").Add(float64(fi.Size()))
		rl.debug().Dur("audio", clip.Duration()).Msg("tts audio")
		rl.end(http.StatusOK, nil)
	}
}

func handleStream(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rl := startRequestLog(r, "tts stream")
		req, err := parseSynthesisRequest(w, r)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			rl.end(http.StatusBadRequest, err)
			return
		}
		ctx, cancel := requestContext(r)
		defer cancel()

		flusher, _ := w.(http.Flusher)
		started := false
		var written int64
		startStream := func(rate int) {
			w.Header().Set("Content-Type", fmt.Sprintf("audio/L16; rate=%d; channels=1", rate))
			w.Header().Set("X-Sample-Rate", strconv.Itoa(rate))
			w.Header().Set("Cache-Control", "no-store")
			w.WriteHeader(http.StatusOK)
			started = true
		}
		err = svc.Stream(ctx, req, func(c audio.Clip) error {
			if !started {
				startStream(c.SampleRate)
			}
			n, err := w.Write(audio.PCM16Bytes(c.PCM))
			written += int64(n)
			if err != nil {
				return err
			}
			if flusher != nil {
				flusher.Flush()
			}
			rl.debug().Int("samples", len(c.PCM)).Msg("chunk")
			return nil
		})
		audioBytesTotal.WithLabelValues("stream").Add(float64(written))
		switch {
		case err != nil && canceled(r):
			rl.end(499, err)
		case err != nil && !started:
			status := statusFor(err)
			writeJSONError(w, status, err.Error())
			rl.end(status, err)
		case err != nil:
			// Headers are gone; cutting the stream short is all that is left.
			rl.end(http.StatusOK, err)
		default:
			if !started {
				startStream(0)
			}
			rl.end(http.StatusOK, nil)
		}
	}
}

func handleUpload(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rl := startRequestLog(r, "voice upload")
		fail := func(status int, err error) {
			writeJSONError(w, status, err.Error())
			rl.end(status, err)
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes+multipartOverhead)
		if err := r.ParseMultipartForm(8 << 20); err != nil {
			var mbe *http.MaxBytesError
			if errors.As(err, &mbe) {
				fail(http.StatusRequestEntityTooLarge, errors.New("upload too large"))
				return
			}
			fail(http.StatusBadRequest, errors.New("expected multipart form"))
			return
		}
		defer r.MultipartForm.RemoveAll()
		file, hdr, err := r.FormFile("voice_file")
		if err != nil {
			fail(http.StatusBadRequest, errors.New("no voice file"))
			return
		}
		defer file.Close()
		if !strings.HasSuffix(strings.ToLower(hdr.Filename), ".wav") {
			fail(http.StatusBadRequest, errors.New("only WAV files are accepted"))
			return
		}
		if hdr.Size > maxUploadBytes {
			fail(http.StatusRequestEntityTooLarge, errors.New("upload too large"))
			return
		}
		ctx, cancel := requestContext(r)
		defer cancel()
		resp, err := svc.UploadVoice(ctx, r.FormValue("voice_name"), file)
		if err != nil {
			if canceled(r) {
				rl.end(499, err)
				return
			}
			fail(statusFor(err), err)
			return
		}
		writeJSON(w, resp)
		rl.end(http.StatusOK, nil)
	}
}
