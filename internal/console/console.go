// Package console is the application-facing logging facade. Application code
// calls Log/Info/Warn/Error/Debug on a Console; by default each entry point
// forwards to a zap logger. The function set can be swapped at runtime, which is
// how the log capture service observes output without redefining globals.
package console

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Func is a single logging entry point.
type Func func(msg string, args ...any)

// Funcs is the complete set of entry points behind a Console.
type Funcs struct {
	Log   Func
	Info  Func
	Warn  Func
	Error Func
	Debug Func
}

// Console dispatches log calls to a swappable Funcs set.
type Console struct {
	mu  sync.RWMutex
	fns Funcs
}

// New returns a Console whose entry points forward to logger.
func New(logger *zap.Logger) *Console {
	return &Console{fns: ZapFuncs(logger)}
}

// ZapFuncs adapts a zap logger to the five console entry points. The "log"
// entry point maps to Info. Extra args are rendered into the message.
func ZapFuncs(logger *zap.Logger) Funcs {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := logger.WithOptions(zap.AddCallerSkip(2))
	return Funcs{
		Log:   func(msg string, args ...any) { l.Info(render(msg, args)) },
		Info:  func(msg string, args ...any) { l.Info(render(msg, args)) },
		Warn:  func(msg string, args ...any) { l.Warn(render(msg, args)) },
		Error: func(msg string, args ...any) { l.Error(render(msg, args)) },
		Debug: func(msg string, args ...any) { l.Debug(render(msg, args)) },
	}
}

func render(msg string, args []any) string {
	if len(args) == 0 {
		return msg
	}
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, msg)
	for _, a := range args {
		parts = append(parts, fmt.Sprint(a))
	}
	return strings.Join(parts, " ")
}

// Funcs returns the currently installed entry points.
func (c *Console) Funcs() Funcs {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fns
}

// Swap installs fns and returns the previous set. Nil members of fns are
// filled from the previous set so the Console never holds a nil entry point.
func (c *Console) Swap(fns Funcs) Funcs {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.fns
	if fns.Log == nil {
		fns.Log = prev.Log
	}
	if fns.Info == nil {
		fns.Info = prev.Info
	}
	if fns.Warn == nil {
		fns.Warn = prev.Warn
	}
	if fns.Error == nil {
		fns.Error = prev.Error
	}
	if fns.Debug == nil {
		fns.Debug = prev.Debug
	}
	c.fns = fns
	return prev
}

func (c *Console) Log(msg string, args ...any)   { c.Funcs().Log(msg, args...) }
func (c *Console) Info(msg string, args ...any)  { c.Funcs().Info(msg, args...) }
func (c *Console) Warn(msg string, args ...any)  { c.Funcs().Warn(msg, args...) }
func (c *Console) Error(msg string, args ...any) { c.Funcs().Error(msg, args...) }
func (c *Console) Debug(msg string, args ...any) { c.Funcs().Debug(msg, args...) }
