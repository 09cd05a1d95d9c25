package reporter

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/HerbHall/tracelens/pkg/models"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

var _ Reporter = (*MQTT)(nil)

// DefaultMQTTTopic is the topic prefix used when none is configured.
const DefaultMQTTTopic = "tracelens/perf"

// MQTTConfig configures an MQTT reporter.
type MQTTConfig struct {
	Broker   string `mapstructure:"broker"`
	ClientID string `mapstructure:"client_id"`
	Topic    string `mapstructure:"topic"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// publisher is the subset of mqtt.Client the reporter needs.
type publisher interface {
	IsConnectionOpen() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTT publishes each event at QoS 0 to <topic>/<event type>. Events are
// dropped while the broker connection is down.
type MQTT struct {
	client publisher
	topic  string
	logger *zap.Logger
}

// NewMQTT creates an MQTT reporter and starts connecting in the background.
func NewMQTT(cfg MQTTConfig, logger *zap.Logger) (*MQTT, error) {
	if cfg.Broker == "" {
		return nil, fmt.Errorf("mqtt reporter: broker is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectTimeout(5 * time.Second).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			logger.Warn("mqtt connection lost", zap.Error(err))
		}).
		SetOnConnectHandler(func(mqtt.Client) {
			logger.Info("mqtt connected", zap.String("broker", cfg.Broker))
		})

	client := mqtt.NewClient(opts)
	client.Connect()
	return newMQTT(client, cfg.Topic, logger), nil
}

func newMQTT(client publisher, topic string, logger *zap.Logger) *MQTT {
	if topic == "" {
		topic = DefaultMQTTTopic
	}
	return &MQTT{client: client, topic: topic, logger: logger}
}

func (m *MQTT) Name() string { return NameMQTT }

func (m *MQTT) Report(e models.PerformanceEvent) {
	if !m.client.IsConnectionOpen() {
		m.logger.Debug("mqtt not connected, event dropped", zap.String("type", string(e.Type)))
		return
	}
	body, err := json.Marshal(e)
	if err != nil {
		m.logger.Debug("encode performance event", zap.Error(err))
		return
	}
	token := m.client.Publish(m.topic+"/"+string(e.Type), 0, false, body)
	go func() {
		<-token.Done()
		if err := token.Error(); err != nil {
			m.logger.Debug("mqtt publish failed", zap.Error(err))
		}
	}()
}

// Close disconnects from the broker.
func (m *MQTT) Close() error {
	m.client.Disconnect(250)
	return nil
}
