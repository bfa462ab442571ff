package httpapi

import (
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// zlog is the structured logger used by the HTTP layer. Nop until SetLogger.
var zlog = zerolog.Nop()

// SetLogger installs a structured logger used by the HTTP layer.
func SetLogger(l zerolog.Logger) { zlog = l }

// LogLevel controls per-request logging behavior.
type LogLevel int

const (
	LevelOff LogLevel = iota
	LevelError
	LevelInfo
	LevelDebug
)

func parseLevel(s string) LogLevel {
	switch s {
	case "off", "":
		return LevelOff
	case "error":
		return LevelError
	case "info":
		return LevelInfo
	case "debug":
		return LevelDebug
	default:
		return LevelInfo
	}
}

// defaultLogLevel applies to synthesis requests without an override.
var defaultLogLevel = func() LogLevel {
	if v, ok := os.LookupEnv("TTSD_HTTP_LOG_LEVEL"); ok {
		return parseLevel(v)
	}
	return LevelInfo
}()

// SetRequestLogLevel overrides the default per-request log level.
func SetRequestLogLevel(s string) { defaultLogLevel = parseLevel(s) }

func requestLogLevel(r *http.Request) LogLevel {
	if v := r.URL.Query().Get("log"); v != "" {
		if v == "1" {
			return LevelDebug
		}
		return parseLevel(v)
	}
	if v := r.Header.Get("X-Log-Level"); v != "" {
		return parseLevel(v)
	}
	return defaultLogLevel
}

// requestLog tracks one synthesis request from start to end.
type requestLog struct {
	lvl   LogLevel
	op    string
	rid   string
	start time.Time
}

func startRequestLog(r *http.Request, op string) requestLog {
	rl := requestLog{lvl: requestLogLevel(r), op: op, rid: middleware.GetReqID(r.Context()), start: time.Now()}
	if rl.lvl >= LevelInfo {
		ev := zlog.Info().Str("path", r.URL.Path)
		if rl.rid != "" {
			ev = ev.Str("request_id", rl.rid)
		}
		ev.Msg(op + " start")
	}
	return rl
}

func (rl requestLog) end(status int, err error) {
	var ev *zerolog.Event
	switch {
	case err != nil && status >= http.StatusInternalServerError && rl.lvl >= LevelError:
		ev = zlog.Error()
	case rl.lvl >= LevelInfo:
		ev = zlog.Info()
	default:
		return
	}
	ev = ev.Int("status", status).Dur("dur", time.Since(rl.start))
	if rl.rid != "" {
		ev = ev.Str("request_id", rl.rid)
	}
	if err != nil {
		ev = ev.Err(err)
	}
	ev.Msg(rl.op + " end")
}

func (rl requestLog) debug() *zerolog.Event {
	if rl.lvl < LevelDebug {
		return nil
	}
	return zlog.Debug().Str("request_id", rl.rid)
}
