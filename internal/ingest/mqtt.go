package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTSource subscribes to a TTN-style uplink topic and buffers decoded
// readings between fetches. A fetch drains the buffer into one batch.
type MQTTSource struct {
	client mqtt.Client
	topic  string
	log    *slog.Logger

	mu   sync.Mutex
	rows [][]string
}

// MQTTOptions carries the broker connection settings.
type MQTTOptions struct {
	Broker   string
	Topic    string
	ClientID string
	Username string
	Password string
}

func NewMQTTSource(opts MQTTOptions, log *slog.Logger) (*MQTTSource, error) {
	s := &MQTTSource{
		topic: opts.Topic,
		log:   log.With(slog.String("component", "mqtt-source")),
	}
	co := mqtt.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(10 * time.Second)
	if opts.Username != "" {
		co.SetUsername(opts.Username)
		co.SetPassword(opts.Password)
	}
	co.SetOnConnectHandler(func(c mqtt.Client) {
		if token := c.Subscribe(s.topic, 0, s.onMessage); token.Wait() && token.Error() != nil {
			s.log.Error("subscribe failed", "topic", s.topic, "error", token.Error())
		}
	})

	s.client = mqtt.NewClient(co)
	if token := s.client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", opts.Broker, token.Error())
	}
	return s, nil
}

func (s *MQTTSource) onMessage(_ mqtt.Client, msg mqtt.Message) {
	var up uplinkMessage
	if err := json.Unmarshal(msg.Payload(), &up); err != nil {
		s.log.Warn("skipping undecodable uplink", "topic", msg.Topic(), "error", err)
		return
	}
	if up.ReceivedAt.IsZero() {
		s.log.Warn("uplink without received_at; dropping", "topic", msg.Topic())
		return
	}
	s.mu.Lock()
	s.rows = append(s.rows, up.row())
	s.mu.Unlock()
}

func (s *MQTTSource) Fetch(ctx context.Context) (RawBatch, error) {
	if err := ctx.Err(); err != nil {
		return RawBatch{}, err
	}
	if !s.client.IsConnectionOpen() {
		return RawBatch{}, fmt.Errorf("mqtt connection down")
	}
	s.mu.Lock()
	rows := s.rows
	s.rows = nil
	s.mu.Unlock()
	return RawBatch{Columns: batchColumns, Rows: rows}, nil
}

func (s *MQTTSource) Close() error {
	s.client.Disconnect(250)
	return nil
}
