package tts

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync/atomic"

	"ttsd/internal/audio"
)

const fakeRate = 24000

// fakeWorker implements the worker protocol with deterministic audio:
// one sample per byte of text, valued by the byte.
type fakeWorker struct {
	loads   atomic.Int32
	unloads atomic.Int32
	last    atomic.Value // synthesizeRequest
}

func (f *fakeWorker) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(healthResponse{Status: "ok", SampleRate: fakeRate})
	})
	mux.HandleFunc("/load", func(w http.ResponseWriter, r *http.Request) {
		f.loads.Add(1)
		_ = json.NewEncoder(w).Encode(healthResponse{Status: "ok", SampleRate: fakeRate})
	})
	mux.HandleFunc("/unload", func(w http.ResponseWriter, r *http.Request) {
		f.unloads.Add(1)
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/embed", func(w http.ResponseWriter, r *http.Request) {
		var req embedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.VoicePath == "" {
			http.Error(w, "voice_path required", http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(embedResponse{Embedding: []float32{float32(len(req.VoicePath)), 0.5}})
	})
	mux.HandleFunc("/synthesize", func(w http.ResponseWriter, r *http.Request) {
		var req synthesizeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if req.Voice == "missing" {
			http.Error(w, "unknown voice", http.StatusNotFound)
			return
		}
		if req.Text == "explode" {
			http.Error(w, "CUDA error", http.StatusInternalServerError)
			return
		}
		f.last.Store(req)
		pcm := make([]int16, len(req.Text))
		for i := 0; i < len(req.Text); i++ {
			pcm[i] = int16(req.Text[i])
		}
		w.Header().Set("X-Sample-Rate", strconv.Itoa(fakeRate))
		_, _ = w.Write(audio.PCM16Bytes(pcm))
	})
	return mux
}

func (f *fakeWorker) lastRequest() synthesizeRequest {
	v, _ := f.last.Load().(synthesizeRequest)
	return v
}
