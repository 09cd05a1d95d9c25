package reporter

import (
	"encoding/json"
	"time"

	"github.com/HerbHall/tracelens/pkg/models"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var _ Reporter = (*Console)(nil)

// Console writes each event as one grouped structured log record with the
// metrics rendered as YAML.
type Console struct {
	logger *zap.Logger
}

// NewConsole creates a Console reporter.
func NewConsole(logger *zap.Logger) *Console {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Console{logger: logger}
}

func (c *Console) Name() string { return NameConsole }

func (c *Console) Report(e models.PerformanceEvent) {
	payload, err := renderYAML(e.Data)
	if err != nil {
		c.logger.Debug("render performance payload", zap.Error(err))
		return
	}
	c.logger.Info("[performance] "+string(e.Type),
		zap.Dict("event",
			zap.String("type", string(e.Type)),
			zap.String("timestamp", e.Timestamp.Format(time.RFC3339Nano)),
			zap.String("url", e.URL),
			zap.String("payload", payload),
		),
	)
}

// renderYAML goes through JSON so keys match the wire names.
func renderYAML(m models.PerformanceMetrics) (string, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	var tree map[string]any
	if err := json.Unmarshal(b, &tree); err != nil {
		return "", err
	}
	out, err := yaml.Marshal(tree)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
