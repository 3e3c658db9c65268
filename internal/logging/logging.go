// Package logging builds the zap logger used by the CLI.
package logging

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"
)

// ANSI colors applied to a whole log line
const (
	grey          = "\033[38;5;240m"
	boldLightGrey = "\033[1;38;5;240m"
	red           = "\033[38;5;9m"
	yellow        = "\033[38;5;11m"
	reset         = "\033[0m"
)

// Config controls the logger built by New.
type Config struct {
	// Level is a zap level name ("debug", "info", "warn", "error"). Empty means warn.
	Level   string
	Verbose bool
	Debug   bool
	// Color forces colored output; by default it is enabled on terminals.
	Color *bool
}

// fullLineColorLevelEncoder colors the entire output line based on log level
func fullLineColorLevelEncoder(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	var color string
	switch l {
	case zapcore.DebugLevel:
		color = grey
	case zapcore.InfoLevel:
		color = boldLightGrey
	case zapcore.WarnLevel:
		color = yellow
	case zapcore.ErrorLevel, zapcore.DPanicLevel, zapcore.PanicLevel, zapcore.FatalLevel:
		color = red
	default:
		color = reset
	}
	enc.AppendString(color + l.CapitalString())
}

// ResolveLevel picks the effective level. --debug beats --verbose, which
// beats the configured level.
func ResolveLevel(cfg Config) (zapcore.Level, error) {
	switch {
	case cfg.Debug:
		return zapcore.DebugLevel, nil
	case cfg.Verbose:
		return zapcore.InfoLevel, nil
	case cfg.Level == "":
		return zapcore.WarnLevel, nil
	}
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return zapcore.WarnLevel, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	return level, nil
}

// New creates a console logger writing to w (stderr when nil).
func New(w io.Writer, cfg Config) (*zap.Logger, error) {
	if w == nil {
		w = os.Stderr
	}

	level, err := ResolveLevel(cfg)
	if err != nil {
		return nil, err
	}

	color := isTerminal(w)
	if cfg.Color != nil {
		color = *cfg.Color
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = ""
	encCfg.LevelKey = "L"
	encCfg.NameKey = "N"
	encCfg.FunctionKey = ""
	encCfg.MessageKey = "M"
	encCfg.StacktraceKey = ""
	encCfg.EncodeDuration = zapcore.StringDurationEncoder
	encCfg.EncodeCaller = zapcore.ShortCallerEncoder
	encCfg.ConsoleSeparator = " "
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	if color {
		encCfg.EncodeLevel = fullLineColorLevelEncoder
		encCfg.LineEnding = reset + zapcore.DefaultLineEnding
	}

	var opts []zap.Option
	if level == zapcore.DebugLevel {
		encCfg.CallerKey = "C"
		encCfg.StacktraceKey = "S"
		opts = append(opts, zap.AddCaller())
	} else {
		encCfg.CallerKey = ""
	}

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(w), zap.NewAtomicLevelAt(level))
	return zap.New(core, opts...), nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
