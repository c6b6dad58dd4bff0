package mqtt

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/Welkro/Tides-and-Currents-Predictions/internal/chart"
)

// Config for the broker connection.
type Config struct {
	Broker      string
	ClientID    string
	TopicPrefix string
	Station     string
	ConnectWait time.Duration
}

// PointMessage is the JSON payload of every published point.
type PointMessage struct {
	Parameter string  `json:"parameter"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Timestamp string  `json:"timestamp"`
}

type publishClient interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

// Publisher mirrors chart points to an MQTT broker.
type Publisher struct {
	client publishClient
	conn   paho.Client
	cfg    Config
	logger *slog.Logger
}

// Connect dials the broker and returns a ready publisher.
func Connect(cfg Config, logger *slog.Logger) (*Publisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ConnectWait <= 0 {
		cfg.ConnectWait = 10 * time.Second
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(false)
	opts.SetMaxReconnectInterval(60 * time.Second)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		logger.Warn("mqtt connection lost", "error", err)
	})
	opts.SetOnConnectHandler(func(_ paho.Client) {
		logger.Info("mqtt connected", "broker", cfg.Broker)
	})

	c := paho.NewClient(opts)
	tok := c.Connect()
	if !tok.WaitTimeout(cfg.ConnectWait) {
		return nil, fmt.Errorf("mqtt connect to %s: timed out after %s", cfg.Broker, cfg.ConnectWait)
	}
	if err := tok.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect to %s: %w", cfg.Broker, err)
	}

	return &Publisher{client: c, conn: c, cfg: cfg, logger: logger}, nil
}

// Topic returns the topic a parameter's points go to.
func (p *Publisher) Topic(parameter string) string {
	return fmt.Sprintf("%s/%s/%s", p.cfg.TopicPrefix, p.cfg.Station, parameter)
}

// OnPoint implements chart.Listener. Publishing is QoS 0 and never blocks playback.
func (p *Publisher) OnPoint(series string, pt chart.Point) {
	msg := PointMessage{
		Parameter: series,
		X:         pt.X,
		Y:         pt.Y,
		Timestamp: time.UnixMilli(int64(pt.X)).UTC().Format(time.RFC3339),
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		p.logger.Error("mqtt marshal point", "parameter", series, "error", err)
		return
	}

	tok := p.client.Publish(p.Topic(series), 0, false, payload)
	select {
	case <-tok.Done():
		if err := tok.Error(); err != nil {
			p.logger.Warn("mqtt publish failed", "topic", p.Topic(series), "error", err)
		}
	default:
	}
}

// Close disconnects from the broker.
func (p *Publisher) Close() {
	if p.conn != nil {
		p.conn.Disconnect(250)
	}
}
