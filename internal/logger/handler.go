package logger

import (
	"context"
	"fmt"
	"go/build"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
)

// Options select the log output. Zero value means text at info level to stderr.
type Options struct {
	// Format is text or json
	Format string
	// Level is one of debug, info, warn, error
	Level string
	// RootPath is stripped from source file paths
	RootPath string
	Output   io.Writer
}

var defaultHandler *handler

func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("log level must be one of: debug, info, warn, error")
	}
}

// Setup installs handler with the requested format as slog default. Source file paths
// are reported relative to RootPath or GOPATH.
func Setup(o Options) error {
	lvl, err := ParseLevel(o.Level)
	if err != nil {
		return err
	}

	out := o.Output
	if out == nil {
		out = os.Stderr
	}

	ho := slog.HandlerOptions{
		Level: lvl,
	}

	var h slog.Handler
	switch strings.ToLower(o.Format) {
	case "json":
		h = slog.NewJSONHandler(out, &ho)
	case "text", "":
		h = slog.NewTextHandler(out, &ho)
	default:
		return fmt.Errorf("log format must be json or text")
	}

	defaultHandler = newHandler(h, o.RootPath)
	slog.SetDefault(slog.New(defaultHandler))
	return nil
}

func newHandler(base slog.Handler, rootPath string) *handler {
	gopath := os.Getenv("GOPATH")
	if gopath == "" {
		gopath = build.Default.GOPATH
	}

	return &handler{
		baseHandler: base,
		rootPath:    strings.TrimSuffix(rootPath, "/") + "/",
		goPath:      strings.TrimSuffix(gopath, "/") + "/",
	}
}

type handler struct {
	baseHandler slog.Handler
	rootPath    string
	goPath      string
}

func (e *handler) Enabled(ctx context.Context, level slog.Level) bool {
	return e.baseHandler.Enabled(ctx, level)
}

// Handle attaches the caller source to warnings and errors which don't carry one yet
func (e *handler) Handle(ctx context.Context, record slog.Record) error {
	if record.Level < slog.LevelWarn || record.PC == 0 {
		return e.baseHandler.Handle(ctx, record)
	}

	record = record.Clone()

	hasSource := false
	record.Attrs(func(attr slog.Attr) bool {
		if attr.Key == slog.SourceKey {
			hasSource = true
			return false
		}

		return true
	})

	if !hasSource {
		record.AddAttrs(e.getSourceAttr(record.PC))
	}

	return e.baseHandler.Handle(ctx, record)
}

func (e *handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &handler{
		baseHandler: e.baseHandler.WithAttrs(attrs),
		rootPath:    e.rootPath,
		goPath:      e.goPath,
	}
}

func (e *handler) WithGroup(name string) slog.Handler {
	return &handler{
		baseHandler: e.baseHandler.WithGroup(name),
		rootPath:    e.rootPath,
		goPath:      e.goPath,
	}
}

func (e *handler) getSourceAttr(pc uintptr) slog.Attr {
	fs := runtime.CallersFrames([]uintptr{pc})
	f, _ := fs.Next()
	file := f.File
	if strings.HasPrefix(file, e.rootPath) {
		file = file[len(e.rootPath):]
	} else if strings.HasPrefix(file, e.goPath) {
		file = file[len(e.goPath):]
	}

	return slog.Any(slog.SourceKey, slog.Source{
		Function: f.Function,
		File:     file,
		Line:     f.Line,
	})
}

// GetSourceAttr reports the caller skipFrames above the current function. Works before
// Setup too, paths are then left untrimmed.
func GetSourceAttr(skipFrames int) slog.Attr {
	var pcs [1]uintptr
	// skip [runtime.Callers, this function, skipFrames...]
	runtime.Callers(2+skipFrames, pcs[:])

	h := defaultHandler
	if h == nil {
		h = &handler{}
	}

	return h.getSourceAttr(pcs[0])
}
