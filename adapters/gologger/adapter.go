package gologger

import (
	"context"
	"strings"

	glog "github.com/goliatone/go-logger/glog"
	"go.uber.org/zap"
)

const (
	EnvDevelopment = "dev"
	EnvProduction  = "prod"
)

// Resolve uses deterministic precedence provider > logger > nop.
func Resolve(name string, provider glog.LoggerProvider, logger glog.Logger) (glog.LoggerProvider, glog.Logger) {
	return glog.Resolve(name, provider, logger)
}

// Logger adapts a zap sugared logger to the glog contracts. Arguments are
// key/value pairs, as with zap's *w methods.
type Logger struct {
	sugar *zap.SugaredLogger
}

// New builds a production logger (JSON, info level) when env is "prod" or
// "production" and a development logger otherwise.
func New(env string) (*Logger, error) {
	var (
		base *zap.Logger
		err  error
	)
	switch strings.ToLower(strings.TrimSpace(env)) {
	case EnvProduction, "production":
		base, err = zap.NewProduction()
	default:
		base, err = zap.NewDevelopment()
	}
	if err != nil {
		return nil, err
	}
	return FromZap(base), nil
}

func FromZap(base *zap.Logger) *Logger {
	if base == nil {
		base = zap.NewNop()
	}
	return &Logger{sugar: base.Sugar()}
}

func (l *Logger) Trace(msg string, args ...any) { l.sugar.Debugw(msg, args...) }
func (l *Logger) Debug(msg string, args ...any) { l.sugar.Debugw(msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.sugar.Infow(msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.sugar.Warnw(msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.sugar.Errorw(msg, args...) }
func (l *Logger) Fatal(msg string, args ...any) { l.sugar.Fatalw(msg, args...) }

func (l *Logger) WithContext(context.Context) glog.Logger {
	return l
}

func (l *Logger) WithFields(fields map[string]any) glog.Logger {
	if len(fields) == 0 {
		return l
	}
	args := make([]any, 0, len(fields)*2)
	for key, value := range fields {
		args = append(args, key, value)
	}
	return &Logger{sugar: l.sugar.With(args...)}
}

// Named returns a child logger, as zap does for subsystem names.
func (l *Logger) Named(name string) *Logger {
	name = strings.TrimSpace(name)
	if name == "" {
		return l
	}
	return &Logger{sugar: l.sugar.Named(name)}
}

func (l *Logger) Sync() error {
	return l.sugar.Sync()
}

// Provider hands out named children of one root logger.
type Provider struct {
	root *Logger
}

func NewProvider(root *Logger) *Provider {
	if root == nil {
		root = FromZap(nil)
	}
	return &Provider{root: root}
}

func (p *Provider) GetLogger(name string) glog.Logger {
	return p.root.Named(name)
}

var (
	_ glog.Logger         = (*Logger)(nil)
	_ glog.FieldsLogger   = (*Logger)(nil)
	_ glog.LoggerProvider = (*Provider)(nil)
)
