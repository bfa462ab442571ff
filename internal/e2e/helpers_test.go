package e2e

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"ttsd/internal/audio"
	"ttsd/internal/httpapi"
	"ttsd/internal/resident"
	"ttsd/internal/service"
	"ttsd/internal/tts"
	"ttsd/internal/voices"
)

const workerRate = 24000

// worker is an in-process stand-in for the model worker. It speaks the
// worker HTTP protocol and counts model loads so tests can observe
// residency from the outside.
type worker struct {
	loaded  atomic.Bool
	loads   atomic.Int32
	unloads atomic.Int32
	embeds  atomic.Int32
	srv     *httptest.Server
}

func newWorker(t *testing.T) *worker {
	t.Helper()
	w := &worker{}
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(rw http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(rw).Encode(map[string]any{"status": "ok", "sample_rate": workerRate})
	})
	mux.HandleFunc("/load", func(rw http.ResponseWriter, r *http.Request) {
		w.loads.Add(1)
		w.loaded.Store(true)
		_ = json.NewEncoder(rw).Encode(map[string]any{"status": "ok", "sample_rate": workerRate})
	})
	mux.HandleFunc("/unload", func(rw http.ResponseWriter, r *http.Request) {
		w.unloads.Add(1)
		w.loaded.Store(false)
	})
	mux.HandleFunc("/embed", func(rw http.ResponseWriter, r *http.Request) {
		w.embeds.Add(1)
		_ = json.NewEncoder(rw).Encode(map[string]any{"embedding": []float32{0.1, 0.2, 0.3}})
	})
	mux.HandleFunc("/synthesize", func(rw http.ResponseWriter, r *http.Request) {
		if !w.loaded.Load() {
			http.Error(rw, "model not loaded", http.StatusServiceUnavailable)
			return
		}
		var req struct {
			Text string `json:"text"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(rw, err.Error(), http.StatusBadRequest)
			return
		}
		// 10ms of audio per character
		pcm := make([]int16, len(req.Text)*workerRate/100)
		rw.Header().Set("X-Sample-Rate", strconv.Itoa(workerRate))
		_, _ = rw.Write(audio.PCM16Bytes(pcm))
	})
	w.srv = httptest.NewServer(mux)
	t.Cleanup(w.srv.Close)
	return w
}

type harness struct {
	srv    *httptest.Server
	worker *worker
	models *resident.Manager[tts.Model]
	svc    *service.Service
}

// newHarness wires the full stack against an in-process worker in remote
// mode. idle of 0 disables eviction.
func newHarness(t *testing.T, idle time.Duration) *harness {
	t.Helper()
	w := newWorker(t)
	log := zerolog.Nop()
	events := resident.NewHistory(0)
	models := resident.New[tts.Model](resident.Config{
		Name:         "tts",
		IdleTimeout:  idle,
		PollInterval: 10 * time.Millisecond,
		Logger:       log,
		Publisher:    events,
	})
	loader := tts.NewLoader(tts.LoaderConfig{Mode: tts.ModeRemote, RemoteURL: w.srv.URL, ReadyTimeout: 5 * time.Second}, log)

	builtin := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(builtin, "expresso"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(builtin, "expresso", "ex03.wav.abc123@240.safetensors"), nil, 0o644))

	svc := service.New(models, loader.Load, service.Options{
		Catalog:      voices.NewCatalog(builtin),
		Custom:       voices.NewCustomStore(t.TempDir(), 1<<20),
		Embeddings:   voices.NewEmbeddingCache(),
		Events:       events,
		DefaultVoice: "expresso/ex03.wav",
		Logger:       log,
	})
	t.Cleanup(func() { _ = svc.Close() })

	srv := httptest.NewServer(httpapi.NewMux(svc))
	t.Cleanup(srv.Close)
	return &harness{srv: srv, worker: w, models: models, svc: svc}
}

func httpGet(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, b
}

func httpPostJSON(t *testing.T, url string, body string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, b
}

func uploadVoice(t *testing.T, url, name string, wav []byte) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("voice_name", name))
	fw, err := mw.CreateFormFile("voice_file", name+".wav")
	require.NoError(t, err)
	_, err = fw.Write(wav)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	resp, err := http.Post(url, mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, b
}

func wavBytes(t *testing.T, seconds float64) []byte {
	t.Helper()
	p := filepath.Join(t.TempDir(), "ref.wav")
	clip := audio.Clip{PCM: make([]int16, int(seconds*workerRate)), SampleRate: workerRate}
	require.NoError(t, audio.WriteWAVFile(p, clip))
	b, err := os.ReadFile(p)
	require.NoError(t, err)
	return b
}
