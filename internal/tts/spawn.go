package tts

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultReadyTimeout = 5 * time.Minute
	defaultStopGrace    = 10 * time.Second
	stderrTailBytes     = 4096
)

// WorkerConfig describes how to spawn a worker process.
type WorkerConfig struct {
	// Bin is the worker executable; Args are passed before the generated
	// --host/--port flags (e.g. ["-m", "tts_worker"] for a python module).
	Bin  string
	Args []string
	// Env is appended to the current environment.
	Env       []string
	Host      string
	PortStart int
	PortEnd   int
	Device    string
	HFRepo    string
	VoiceRepo string
	// ReadyTimeout bounds model download + load. Default 5m.
	ReadyTimeout time.Duration
	// StopGrace is how long Close waits after SIGTERM before killing.
	StopGrace time.Duration
}

// SpawnedWorker is a worker process owned by this daemon. Stopping the
// process is what returns its accelerator memory to the driver.
type SpawnedWorker struct {
	workerModel
	cmd    *exec.Cmd
	pid    int
	exited chan struct{}
	waitMu sync.Mutex
	waitEr error
	stderr *tailBuffer
	grace  time.Duration
	log    zerolog.Logger
	once   sync.Once
}

// Spawn starts a worker and blocks until it reports healthy, exits, or the
// ready timeout passes. On failure the process is not left running.
func Spawn(cfg WorkerConfig, log zerolog.Logger) (*SpawnedWorker, error) {
	if strings.TrimSpace(cfg.Bin) == "" {
		return nil, ErrWorkerUnavailable("worker binary not configured")
	}
	host := strings.TrimSpace(cfg.Host)
	if host == "" {
		host = "127.0.0.1"
	}
	var (
		port int
		err  error
	)
	if cfg.PortStart > 0 && cfg.PortEnd >= cfg.PortStart {
		port, err = pickPortInRange(host, cfg.PortStart, cfg.PortEnd)
	} else {
		port, err = pickFreePort(host)
	}
	if err != nil {
		return nil, ErrWorkerUnavailable(err.Error())
	}

	args := append([]string(nil), cfg.Args...)
	args = append(args, "--host", host, "--port", strconv.Itoa(port))
	if cfg.Device != "" {
		args = append(args, "--device", cfg.Device)
	}
	if cfg.HFRepo != "" {
		args = append(args, "--hf-repo", cfg.HFRepo)
	}
	if cfg.VoiceRepo != "" {
		args = append(args, "--voice-repo", cfg.VoiceRepo)
	}

	cmd := exec.Command(cfg.Bin, args...)
	cmd.Env = append(os.Environ(), cfg.Env...)
	tail := &tailBuffer{max: stderrTailBytes}
	wlog := log.With().Str("component", "worker").Logger()
	cmd.Stdout = &lineLogger{log: wlog, stream: "stdout"}
	cmd.Stderr = io.MultiWriter(tail, &lineLogger{log: wlog, stream: "stderr"})
	if err := cmd.Start(); err != nil {
		return nil, ErrWorkerUnavailable(fmt.Sprintf("start worker: %v", err))
	}

	baseURL := "http://" + net.JoinHostPort(host, strconv.Itoa(port))
	w := &SpawnedWorker{
		workerModel: workerModel{client: NewClient(baseURL)},
		cmd:         cmd,
		pid:         cmd.Process.Pid,
		exited:      make(chan struct{}),
		stderr:      tail,
		grace:       cfg.StopGrace,
		log:         wlog.With().Int("pid", cmd.Process.Pid).Logger(),
	}
	if w.grace <= 0 {
		w.grace = defaultStopGrace
	}
	w.workerModel.close = w.stop
	go func() {
		err := cmd.Wait()
		w.waitMu.Lock()
		w.waitEr = err
		w.waitMu.Unlock()
		close(w.exited)
	}()
	w.log.Info().Str("url", baseURL).Msg("worker start")

	timeout := cfg.ReadyTimeout
	if timeout <= 0 {
		timeout = defaultReadyTimeout
	}
	rate, err := w.client.waitHealthy(timeout, w.exited)
	if err != nil {
		select {
		case <-w.exited:
			w.waitMu.Lock()
			werr := w.waitEr
			w.waitMu.Unlock()
			err = ErrWorkerUnavailable(fmt.Sprintf("worker exited before ready: %v; stderr tail: %s", werr, tail.String()))
		default:
			_ = w.stop()
		}
		w.log.Error().Err(err).Msg("worker failed to become ready")
		return nil, err
	}
	w.sampleRate = rate
	w.log.Info().Int("sample_rate", rate).Msg("worker ready")
	return w, nil
}

// PID returns the worker process id.
func (w *SpawnedWorker) PID() int { return w.pid }

// Exited is closed once the worker process has exited.
func (w *SpawnedWorker) Exited() <-chan struct{} { return w.exited }

// stop sends SIGTERM, waits up to the grace period, then kills.
func (w *SpawnedWorker) stop() error {
	var err error
	w.once.Do(func() {
		select {
		case <-w.exited:
			return
		default:
		}
		if serr := w.cmd.Process.Signal(syscall.SIGTERM); serr != nil && !errors.Is(serr, os.ErrProcessDone) {
			w.log.Warn().Err(serr).Msg("worker sigterm")
		}
		select {
		case <-w.exited:
		case <-time.After(w.grace):
			w.log.Warn().Dur("grace", w.grace).Msg("worker did not exit, killing")
			if kerr := w.cmd.Process.Kill(); kerr != nil && !errors.Is(kerr, os.ErrProcessDone) {
				err = fmt.Errorf("kill worker %d: %w", w.pid, kerr)
				return
			}
			<-w.exited
		}
		w.log.Info().Msg("worker stopped")
	})
	return err
}

func pickPortInRange(host string, start, end int) (int, error) {
	for p := start; p <= end; p++ {
		l, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(p)))
		if err != nil {
			continue
		}
		_ = l.Close()
		return p, nil
	}
	return 0, fmt.Errorf("no free port in range %d-%d", start, end)
}

func pickFreePort(host string) (int, error) {
	l, err := net.Listen("tcp", net.JoinHostPort(host, "0"))
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	max int
	buf []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	t.buf = append(t.buf, p...)
	if len(t.buf) > t.max {
		t.buf = t.buf[len(t.buf)-t.max:]
	}
	t.mu.Unlock()
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}

// lineLogger logs complete lines of worker output at debug level.
type lineLogger struct {
	log    zerolog.Logger
	stream string
	buf    []byte
}

func (lw *lineLogger) Write(p []byte) (int, error) {
	lw.buf = append(lw.buf, p...)
	for {
		idx := bytes.IndexByte(lw.buf, '\n')
		if idx < 0 {
			break
		}
		line := strings.TrimRight(string(lw.buf[:idx]), "\r")
		if len(line) > 0 {
			lw.log.Debug().Str("stream", lw.stream).Msg(line)
		}
		lw.buf = lw.buf[idx+1:]
	}
	return len(p), nil
}
