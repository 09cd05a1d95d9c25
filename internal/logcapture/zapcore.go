package logcapture

import (
	"github.com/HerbHall/tracelens/pkg/models"
	"go.uber.org/zap/zapcore"
)

// Core wraps next so that entries written through it are also captured while
// the service is started. Use it with zap.WrapCore on loggers handed to
// third-party code; the console facade's own logger must not be wrapped, or
// its output would be captured twice.
func (s *Service) Core(next zapcore.Core) zapcore.Core {
	return &captureCore{Core: next, svc: s}
}

type captureCore struct {
	zapcore.Core
	svc    *Service
	fields []zapcore.Field
}

func (c *captureCore) With(fields []zapcore.Field) zapcore.Core {
	merged := make([]zapcore.Field, 0, len(c.fields)+len(fields))
	merged = append(merged, c.fields...)
	merged = append(merged, fields...)
	return &captureCore{Core: c.Core.With(fields), svc: c.svc, fields: merged}
}

// Check lets the wrapped core run its own level and sampling decisions,
// then adds a capture sink for any level the wrapped core is enabled for.
func (c *captureCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	ce = c.Core.Check(ent, ce)
	if c.Core.Enabled(ent.Level) {
		ce = ce.AddCore(ent, captureSink{c})
	}
	return ce
}

func (c *captureCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	err := c.Core.Write(ent, fields)
	c.capture(ent, fields)
	return err
}

func (c *captureCore) capture(ent zapcore.Entry, fields []zapcore.Field) {
	if !c.svc.Started() {
		return
	}
	all := make([]zapcore.Field, 0, len(c.fields)+len(fields))
	all = append(all, c.fields...)
	all = append(all, fields...)
	c.svc.captureZap(ent, all)
}

// captureSink is the Write target registered by Check; it only captures.
type captureSink struct {
	*captureCore
}

func (s captureSink) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	s.capture(ent, fields)
	return nil
}

func (s *Service) captureZap(ent zapcore.Entry, fields []zapcore.Field) {
	msg := ent.Message
	if ent.LoggerName != "" {
		msg = "[" + ent.LoggerName + "] " + msg
	}

	var args []any
	if len(fields) > 0 {
		enc := zapcore.NewMapObjectEncoder()
		for _, f := range fields {
			f.AddTo(enc)
		}
		args = []any{enc.Fields}
	}

	s.addEntry(zapLevel(ent.Level), formatMessage(msg, args), args, ent.Stack)
}

func zapLevel(l zapcore.Level) models.LogLevel {
	switch {
	case l <= zapcore.DebugLevel:
		return models.LogLevelDebug
	case l == zapcore.InfoLevel:
		return models.LogLevelInfo
	case l == zapcore.WarnLevel:
		return models.LogLevelWarn
	default:
		return models.LogLevelError
	}
}
