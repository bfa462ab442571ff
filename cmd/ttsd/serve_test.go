package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"ttsd/internal/config"
)

// findFreePort picks an available TCP port on localhost.
func findFreePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func waitStatus(t *testing.T, url string, want int, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		resp, err := http.Get(url)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == want {
				return
			}
		}
		if time.Now().After(deadline) {
			t.Fatalf("%s did not return %d in time", url, want)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestRunServe_PreloadsAndReleasesOnShutdown(t *testing.T) {
	var loads, unloads atomic.Int32
	worker := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/load":
			loads.Add(1)
			_ = json.NewEncoder(w).Encode(map[string]any{"status": "ok", "sample_rate": 24000})
		case "/unload":
			unloads.Add(1)
		default:
			http.NotFound(w, r)
		}
	}))
	defer worker.Close()

	port := findFreePort(t)
	cfg := config.Defaults()
	cfg.Addr = fmt.Sprintf("127.0.0.1:%d", port)
	cfg.LogLevel = "error"
	cfg.Engine.Mode = "remote"
	cfg.Engine.WorkerURL = worker.URL
	cfg.Voices.CustomDir = t.TempDir()
	cfg.IdleTimeoutSeconds = -1

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runServe(ctx, cfg) }()

	base := fmt.Sprintf("http://127.0.0.1:%d", port)
	waitStatus(t, base+"/healthz", http.StatusOK, 5*time.Second)
	deadline := time.Now().Add(5 * time.Second)
	for loads.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("model was not preloaded")
		}
		time.Sleep(20 * time.Millisecond)
	}
	waitStatus(t, base+"/readyz", http.StatusOK, 5*time.Second)

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("runServe: %v", err)
		}
	case <-time.After(shutdownTimeout + 5*time.Second):
		t.Fatalf("runServe did not return after cancel")
	}
	if got := unloads.Load(); got != 1 {
		t.Fatalf("unloads=%d, want 1 on shutdown", got)
	}
}
