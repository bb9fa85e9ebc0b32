package alert

import (
	"context"
	"time"

	"github.com/tphakala/eas-monitor/internal/conf"
	"github.com/tphakala/eas-monitor/internal/mqtt"
	"github.com/tphakala/eas-monitor/internal/observability/metrics"
)

// BuildSinks creates every sink enabled in settings. On error the sinks
// created so far are closed.
func BuildSinks(ctx context.Context, settings *conf.Settings, mqttMetrics *metrics.MQTTMetrics) (sinks []Sink, err error) {
	defer func() {
		if err != nil {
			for _, s := range sinks {
				_ = s.Close()
			}
			sinks = nil
		}
	}()

	if settings.Alert.Log.Enabled {
		rotation := settings.Main.Log
		rotation.Enabled = true
		s, err := NewLogSink(settings.Alert.Log.Path, rotation)
		if err != nil {
			return sinks, err
		}
		sinks = append(sinks, s)
	}

	if settings.MQTT.Enabled {
		cfg := mqtt.DefaultConfig()
		cfg.Broker = settings.MQTT.Broker
		cfg.ClientID = settings.MQTT.ClientID
		cfg.Username = settings.MQTT.Username
		cfg.Password = settings.MQTT.Password
		cfg.Retain = settings.MQTT.Retain

		client, err := mqtt.NewClient(cfg, mqttMetrics)
		if err != nil {
			return sinks, err
		}
		// An unreachable broker at startup is retried on the first alert.
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		if err := client.Connect(connectCtx); err != nil {
			serviceLogger().Warn("MQTT broker not reachable, will retry on delivery",
				"broker", cfg.Broker,
				"error", err)
		}
		cancel()
		sinks = append(sinks, NewMQTTSink(client, settings.MQTT.Topic))
	}

	if settings.Kafka.Enabled {
		s, err := NewKafkaSink(settings.Kafka.Brokers, settings.Kafka.Topic, settings.Kafka.WriteTimeout)
		if err != nil {
			return sinks, err
		}
		sinks = append(sinks, s)
	}

	if settings.Notify.Enabled {
		s, err := NewNotifySink(settings.Notify.URLs, settings.Notify.Timeout)
		if err != nil {
			return sinks, err
		}
		sinks = append(sinks, s)
	}

	return sinks, nil
}
