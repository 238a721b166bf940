package main

import (
	"fmt"
	"io"
	stdslog "log/slog"
	"sync"

	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/unkn0wn-root/remoteval"
	asynchook "github.com/unkn0wn-root/remoteval/hooks/async"
	lrlog "github.com/unkn0wn-root/remoteval/log/logrus"
	rslog "github.com/unkn0wn-root/remoteval/log/slog"
	zlog "github.com/unkn0wn-root/remoteval/log/zap"
	"github.com/unkn0wn-root/remoteval/sloghooks"
)

// lockedWriter lets the hook worker and the command share stderr.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

func newZap(level string, w io.Writer) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	enc := zap.NewDevelopmentEncoderConfig()
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.AddSync(w), lvl)
	return zap.New(core), nil
}

// realmLogger builds the codec's logger on the configured backend.
func realmLogger(backend, level string, z *zap.Logger, w io.Writer) (remoteval.Logger, error) {
	switch backend {
	case "", "zap":
		return zlog.New(z), nil
	case "logrus":
		lvl, err := logrus.ParseLevel(level)
		if err != nil {
			return nil, err
		}
		l := logrus.New()
		l.SetOutput(w)
		l.SetLevel(lvl)
		return lrlog.New(l), nil
	case "slog":
		var lvl stdslog.Level
		if err := lvl.UnmarshalText([]byte(level)); err != nil {
			return nil, err
		}
		return rslog.Logger{L: stdslog.New(stdslog.NewTextHandler(w, &stdslog.HandlerOptions{Level: lvl}))}, nil
	}
	return nil, fmt.Errorf("unknown log backend %q", backend)
}

// traceHooks logs every registry event to w off the engine goroutine. The
// returned func flushes the queue.
func traceHooks(w io.Writer) (remoteval.Hooks, func()) {
	l := stdslog.New(stdslog.NewTextHandler(w, &stdslog.HandlerOptions{Level: stdslog.LevelDebug}))
	h := asynchook.New(sloghooks.New(l, sloghooks.Options{LogMints: true}), 1, 1024)
	return h, h.Close
}
