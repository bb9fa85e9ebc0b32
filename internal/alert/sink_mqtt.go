package alert

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tphakala/eas-monitor/internal/mqtt"
)

// MQTTSink publishes the JSON payload of each alert. Activations go to
// topic and end of message markers to topic/eom.
type MQTTSink struct {
	client mqtt.Client
	topic  string
}

// NewMQTTSink publishes through client under topic.
func NewMQTTSink(client mqtt.Client, topic string) *MQTTSink {
	return &MQTTSink{client: client, topic: topic}
}

func (s *MQTTSink) Name() string { return "mqtt" }

func (s *MQTTSink) Deliver(ctx context.Context, a Alert) error {
	if !s.client.IsConnected() {
		if err := s.client.Connect(ctx); err != nil {
			return err
		}
	}

	payload, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}
	return s.client.Publish(ctx, s.Topic(a.Kind), payload)
}

// Topic returns the topic alerts of kind are published to.
func (s *MQTTSink) Topic(kind Kind) string {
	if kind == KindEOM {
		return s.topic + "/eom"
	}
	return s.topic
}

func (s *MQTTSink) Close() error {
	s.client.Disconnect()
	return nil
}
