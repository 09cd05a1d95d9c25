package logcapture

import (
	"strings"

	"github.com/HerbHall/tracelens/pkg/models"
)

// Filter decides whether a non-error, non-warning entry is kept. Registering
// any Filter replaces the default keyword policy; an entry is kept when at
// least one registered Filter accepts it.
type Filter func(models.LogEntry) bool

// FilterID identifies a registered Filter.
type FilterID uint64

// DropReason explains why an entry was not stored.
type DropReason string

const (
	DropDebug     DropReason = "debug"
	DropDenied    DropReason = "denied"
	DropUnmatched DropReason = "unmatched"
	DropFiltered  DropReason = "filtered"
)

// DefaultAllowPatterns are message prefixes and keywords that mark
// log/info output as diagnostic.
var DefaultAllowPatterns = []string{
	"[performance]",
	"[perf]",
	"[monitor]",
	"[logcapture]",
	"[api]",
	"[network]",
	"[storage]",
	"[upload]",
	"[config]",
	"[auth]",
	"[diagnostics]",
}

// DefaultDenyPatterns match known noisy sources.
var DefaultDenyPatterns = []string{
	"[hmr]",
	"[vite]",
	"[webpack]",
	"[fast refresh]",
	"devtools",
	"http: tls handshake error",
}

// keywordPolicy is the default retention policy used when no custom filters
// are registered. Matching is case-insensitive substring.
type keywordPolicy struct {
	allow []string
	deny  []string
}

func newKeywordPolicy(allow, deny []string) keywordPolicy {
	return keywordPolicy{allow: lowerAll(allow), deny: lowerAll(deny)}
}

func (p keywordPolicy) evaluate(e models.LogEntry) (bool, DropReason) {
	if e.Level == models.LogLevelDebug {
		return false, DropDebug
	}
	msg := strings.ToLower(e.Message)
	if e.Level == models.LogLevelInfo || e.Level == models.LogLevelLog {
		if containsAny(msg, p.allow) {
			return true, ""
		}
	}
	if containsAny(msg, p.deny) {
		return false, DropDenied
	}
	return false, DropUnmatched
}

func containsAny(s string, patterns []string) bool {
	for _, p := range patterns {
		if p != "" && strings.Contains(s, p) {
			return true
		}
	}
	return false
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, strings.ToLower(s))
	}
	return out
}
