package logcapture

import (
	"encoding/json"
	"fmt"
	"runtime/debug"
	"strings"
)

// formatMessage joins msg with the readable form of each arg.
func formatMessage(msg string, args []any) string {
	if len(args) == 0 {
		return msg
	}
	parts := make([]string, 0, len(args)+1)
	if msg != "" {
		parts = append(parts, msg)
	}
	for _, a := range args {
		parts = append(parts, formatArg(a))
	}
	return strings.Join(parts, " ")
}

// formatArg renders primitives verbatim and everything else as indented JSON.
// Values JSON cannot encode (cycles, channels, funcs, panicking marshalers)
// fall back to their type name.
func formatArg(a any) (s string) {
	defer func() {
		if r := recover(); r != nil {
			s = fmt.Sprintf("[%T]", a)
		}
	}()

	switch v := a.(type) {
	case nil:
		return "null"
	case string:
		return v
	case error:
		return v.Error()
	case fmt.Stringer:
		return v.String()
	case bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64,
		float32, float64, complex64, complex128:
		return fmt.Sprint(v)
	}

	b, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return fmt.Sprintf("[%T]", a)
	}
	return string(b)
}

// formatArgs renders every arg; used for wire encodings where raw values may
// not be serializable.
func formatArgs(args []any) []string {
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = formatArg(a)
	}
	return out
}

func captureStack() string {
	return string(debug.Stack())
}
