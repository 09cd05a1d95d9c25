package logcapture

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/HerbHall/tracelens/internal/plugin"
	"github.com/HerbHall/tracelens/internal/server"
	"github.com/HerbHall/tracelens/pkg/models"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"
)

const streamWriteTimeout = 5 * time.Second

// wireEntry is the JSON form of a LogEntry. Args are pre-rendered because raw
// values are not guaranteed to be JSON-encodable.
type wireEntry struct {
	ID        string          `json:"id"`
	Level     models.LogLevel `json:"level"`
	Message   string          `json:"message"`
	Args      []string        `json:"args"`
	Timestamp time.Time       `json:"timestamp"`
	Stack     string          `json:"stack,omitempty"`
}

func toWire(e models.LogEntry) wireEntry {
	return wireEntry{
		ID:        e.ID,
		Level:     e.Level,
		Message:   e.Message,
		Args:      formatArgs(e.Args),
		Timestamp: e.Timestamp,
		Stack:     e.Stack,
	}
}

// manualLogRequest is the JSON body for POST /entries.
type manualLogRequest struct {
	Level   string `json:"level"`
	Message string `json:"message"`
	Args    []any  `json:"args,omitempty"`
}

// Routes implements plugin.Plugin.
func (m *Module) Routes() []plugin.Route {
	return []plugin.Route{
		{Method: "GET", Path: "/entries", Handler: m.handleListEntries},
		{Method: "POST", Path: "/entries", Handler: m.handleAddEntry},
		{Method: "DELETE", Path: "/entries", Handler: m.handleClearEntries},
		{Method: "GET", Path: "/stats", Handler: m.handleStats},
		{Method: "GET", Path: "/stream", Handler: m.handleStream},
	}
}

// handleListEntries returns buffered entries, optionally filtered by ?level=.
func (m *Module) handleListEntries(w http.ResponseWriter, r *http.Request) {
	var entries []models.LogEntry
	if lv := r.URL.Query().Get("level"); lv != "" {
		level, err := models.ParseLogLevel(lv)
		if err != nil {
			server.BadRequest(w, err.Error(), r.URL.Path)
			return
		}
		entries = m.svc.GetLogsByLevel(level)
	} else {
		entries = m.svc.GetLogs()
	}

	out := make([]wireEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, toWire(e))
	}
	server.WriteJSON(w, http.StatusOK, out)
}

// handleAddEntry ingests a log entry from a source outside this process.
func (m *Module) handleAddEntry(w http.ResponseWriter, r *http.Request) {
	var req manualLogRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		server.BadRequest(w, "invalid JSON body", r.URL.Path)
		return
	}
	level, err := models.ParseLogLevel(req.Level)
	if err != nil {
		server.BadRequest(w, err.Error(), r.URL.Path)
		return
	}
	m.svc.AddManualLog(level, req.Message, req.Args...)
	w.WriteHeader(http.StatusAccepted)
}

func (m *Module) handleClearEntries(w http.ResponseWriter, _ *http.Request) {
	m.svc.ClearLogs()
	w.WriteHeader(http.StatusNoContent)
}

func (m *Module) handleStats(w http.ResponseWriter, _ *http.Request) {
	server.WriteJSON(w, http.StatusOK, m.svc.Stats())
}

// handleStream upgrades to a WebSocket and pushes every retained entry and
// clear notification. A client that cannot keep up loses entries rather than
// stalling the capture pipeline.
func (m *Module) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		m.logger.Debug("websocket accept failed", zap.Error(err))
		return
	}
	defer conn.CloseNow()

	ctx := conn.CloseRead(r.Context())
	ch := make(chan models.LogEntry, m.streamBuffer)
	id := m.svc.AddListener(func(e models.LogEntry) {
		select {
		case ch <- e:
		default:
		}
	})
	defer m.svc.RemoveListener(id)

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case e := <-ch:
			if err := m.writeEntry(ctx, conn, e); err != nil {
				m.logger.Debug("log stream write failed", zap.Error(err))
				return
			}
		}
	}
}

func (m *Module) writeEntry(ctx context.Context, conn *websocket.Conn, e models.LogEntry) error {
	ctx, cancel := context.WithTimeout(ctx, streamWriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, toWire(e))
}
