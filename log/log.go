// log/log.go
// Copyright(c) 2025 sarplan contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package log wraps slog with a rotating JSON file sink and call stack
// annotation. A nil *Logger is valid: debug and info records are dropped
// and warnings and errors go to the default slog logger.
package log

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"strings"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

type Logger struct {
	*slog.Logger
	// Dir is where the log file and any crash reports are written; it is
	// empty for loggers built with NewHandler.
	Dir   string
	Start time.Time
}

const (
	logName  = "deconflict.slog"
	appDir   = "deconflict"
	maxSize  = 32  // MB
	debugMax = 256 // MB, when logging at debug level
)

// New returns a logger writing JSON records at the given level to a
// rotating file in dir, or in the user config directory if dir is empty.
func New(level string, dir string) *Logger {
	if dir == "" {
		if cfg, err := os.UserConfigDir(); err != nil {
			fmt.Fprintf(os.Stderr, "Unable to find user config dir: %v\n", err)
			dir = "."
		} else {
			dir = filepath.Join(cfg, appDir)
		}
	}

	lvl := ParseLevel(level)
	sink := &lumberjack.Logger{
		Filename:   filepath.Join(dir, logName),
		MaxSize:    maxSize,
		MaxBackups: 2,
		Compress:   true,
	}
	if lvl <= slog.LevelDebug {
		sink.MaxSize = debugMax
	}

	l := &Logger{
		Logger: slog.New(slog.NewJSONHandler(sink, &slog.HandlerOptions{Level: lvl})),
		Dir:    dir,
		Start:  time.Now(),
	}
	l.logStartup()
	return l
}

func (l *Logger) logStartup() {
	l.Info("logging started",
		slog.Time("start", l.Start),
		slog.String("platform", runtime.GOOS+"/"+runtime.GOARCH),
		slog.Int("cpus", runtime.NumCPU()),
		slog.Int("gomaxprocs", runtime.GOMAXPROCS(0)))

	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	deps := make([]any, 0, len(bi.Deps))
	for _, dep := range bi.Deps {
		deps = append(deps, slog.String(dep.Path, dep.Version))
	}
	l.Info("build", slog.String("go", bi.GoVersion), slog.String("main", bi.Main.Path),
		slog.Group("deps", deps...))
}

// NewHandler wraps an arbitrary slog handler; used by tools and tests
// that want output somewhere other than the rotating log file.
func NewHandler(h slog.Handler) *Logger {
	return &Logger{Logger: slog.New(h), Start: time.Now()}
}

// ParseLevel maps a level name to its slog level. Unknown names log a
// complaint to stderr and give info.
func ParseLevel(level string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		if level != "" {
			fmt.Fprintf(os.Stderr, "%s: invalid log level\n", level)
		}
		return slog.LevelInfo
	}
	return lvl
}

// emit writes a record with the stack of whoever called the public
// logging method attached.
func (l *Logger) emit(lvl slog.Level, msg string, args []any) {
	target := slog.Default()
	if l != nil {
		target = l.Logger
	} else if lvl < slog.LevelWarn {
		return
	}

	ctx := context.Background()
	if !target.Enabled(ctx, lvl) {
		return
	}
	args = append([]any{slog.Any("callstack", Callstack(2))}, args...)
	target.Log(ctx, lvl, msg, args...)
}

func (l *Logger) Debug(msg string, args ...any) { l.emit(slog.LevelDebug, msg, args) }
func (l *Logger) Info(msg string, args ...any)  { l.emit(slog.LevelInfo, msg, args) }
func (l *Logger) Warn(msg string, args ...any)  { l.emit(slog.LevelWarn, msg, args) }

// Error also echoes the record to the default slog logger so that errors
// show up on the console.
func (l *Logger) Error(msg string, args ...any) {
	if l != nil {
		slog.Error(msg, args...)
	}
	l.emit(slog.LevelError, msg, args)
}

func (l *Logger) Debugf(format string, args ...any) {
	l.emit(slog.LevelDebug, fmt.Sprintf(format, args...), nil)
}

func (l *Logger) Infof(format string, args ...any) {
	l.emit(slog.LevelInfo, fmt.Sprintf(format, args...), nil)
}

func (l *Logger) Warnf(format string, args ...any) {
	l.emit(slog.LevelWarn, fmt.Sprintf(format, args...), nil)
}

func (l *Logger) Errorf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if l != nil {
		slog.Error(msg)
	}
	l.emit(slog.LevelError, msg, nil)
}

// With returns a logger that adds the given attributes to every record.
// A nil logger stays nil.
func (l *Logger) With(args ...any) *Logger {
	if l == nil {
		return nil
	}
	return &Logger{Logger: l.Logger.With(args...), Dir: l.Dir, Start: l.Start}
}

// CatchAndReportCrash is meant to be deferred at the top of main. It logs
// a recovered panic with its stack, writes a crash report next to the
// log file, and returns the recovered value.
func (l *Logger) CatchAndReportCrash() any {
	r := recover()
	if r == nil {
		return nil
	}
	l.Errorf("crashed: %v", r)

	var sb strings.Builder
	fmt.Fprintf(&sb, "crashed: %v\n", r)
	fmt.Fprintf(&sb, "platform: %s/%s, uptime %s\n", runtime.GOOS, runtime.GOARCH, time.Since(l.start()).Round(time.Second))
	sb.Write(debug.Stack())
	report := sb.String()

	fmt.Fprintln(os.Stderr, report)
	if l != nil && l.Dir != "" {
		fn := filepath.Join(l.Dir, "crash-"+time.Now().Format("20060102-150405")+".txt")
		if err := os.WriteFile(fn, []byte(report), 0o600); err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", fn, err)
		}
	}
	return r
}

func (l *Logger) start() time.Time {
	if l == nil {
		return time.Now()
	}
	return l.Start
}
