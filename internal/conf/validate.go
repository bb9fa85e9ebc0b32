// conf/validate.go

package conf

import (
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	collect := func(err error) {
		if err == nil {
			return
		}
		if nested, ok := err.(ValidationError); ok {
			ve.Errors = append(ve.Errors, nested.Errors...)
			return
		}
		ve.Errors = append(ve.Errors, err.Error())
	}

	collect(validateMonitorSettings(&settings.Monitor))
	collect(validatePrecheckSettings(&settings.Precheck))
	collect(validateDecoderSettings(&settings.Decoder))
	collect(validateBackoffSettings(&settings.Backoff))
	collect(validateSources(settings.Sources))
	collect(validateAlertSettings(settings))
	collect(validateWebServerSettings(&settings.WebServer))

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

// validateMonitorSettings validates the scanner tunables
func validateMonitorSettings(m *MonitorSettings) error {
	var errs []string

	if m.ScanInterval < 100*time.Millisecond {
		errs = append(errs, "monitor.scaninterval must be at least 100ms")
	}
	if m.BufferDuration < 2*time.Second {
		errs = append(errs, "monitor.bufferduration must be at least 2s")
	}
	if m.ScanInterval >= m.BufferDuration {
		errs = append(errs, "monitor.scaninterval must be shorter than monitor.bufferduration")
	}
	if m.MaxConcurrentScans < 1 || m.MaxConcurrentScans > 64 {
		errs = append(errs, "monitor.maxconcurrentscans must be between 1 and 64")
	}
	// Mark tone is 2083.3 Hz; below 8 kHz the correlator has no headroom.
	if m.SampleRate < 8000 || m.SampleRate > 48000 {
		errs = append(errs, "monitor.samplerate must be between 8000 and 48000")
	}
	if m.SilenceThreshold <= 0 {
		errs = append(errs, "monitor.silencethreshold must be positive")
	}
	if m.HealthCheckInterval <= 0 {
		errs = append(errs, "monitor.healthcheckinterval must be positive")
	}

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validatePrecheckSettings(p *PrecheckSettings) error {
	if !p.Enabled {
		return nil
	}
	var errs []string
	if p.RatioDB <= 0 {
		errs = append(errs, "precheck.ratiodb must be positive")
	}
	if p.MinLevelDBFS >= 0 {
		errs = append(errs, "precheck.minleveldbfs must be below 0 dBFS")
	}
	if p.MinTonalBlocks < 1 {
		errs = append(errs, "precheck.mintonalblocks must be at least 1")
	}
	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateDecoderSettings(d *DecoderSettings) error {
	if d.VoteThreshold < 1 || d.VoteThreshold > 3 {
		return fmt.Errorf("decoder.votethreshold must be between 1 and 3")
	}
	return nil
}

func validateBackoffSettings(b *BackoffSettings) error {
	var errs []string
	if b.InitialDelay <= 0 {
		errs = append(errs, "backoff.initialdelay must be positive")
	}
	if b.MaxDelay < b.InitialDelay {
		errs = append(errs, "backoff.maxdelay must not be shorter than backoff.initialdelay")
	}
	if b.Multiplier < 1 {
		errs = append(errs, "backoff.multiplier must be at least 1")
	}
	if b.MaxRetries < 0 {
		errs = append(errs, "backoff.maxretries must not be negative")
	}
	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

// validateSources validates every configured source and checks id uniqueness
func validateSources(sources []SourceConfig) error {
	var errs []string
	seen := make(map[string]bool)

	for i := range sources {
		s := &sources[i]
		label := s.ID
		if label == "" {
			label = fmt.Sprintf("#%d", i)
		}
		if err := ValidateSource(s); err != nil {
			if ve, ok := err.(ValidationError); ok {
				for _, e := range ve.Errors {
					errs = append(errs, fmt.Sprintf("sources[%s]: %s", label, e))
				}
			}
		}
		if s.ID != "" {
			if seen[s.ID] {
				errs = append(errs, fmt.Sprintf("sources[%s]: duplicate id", label))
			}
			seen[s.ID] = true
		}
	}

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateAlertSettings(settings *Settings) error {
	var errs []string

	if settings.Alert.QueueSize < 1 {
		errs = append(errs, "alert.queuesize must be at least 1")
	}
	if settings.Alert.DedupWindow < settings.Monitor.BufferDuration {
		errs = append(errs, "alert.dedupwindow must be at least monitor.bufferduration")
	}

	if settings.MQTT.Enabled {
		u, err := url.Parse(settings.MQTT.Broker)
		switch {
		case err != nil || u.Host == "":
			errs = append(errs, fmt.Sprintf("mqtt.broker %q is not a valid broker url", settings.MQTT.Broker))
		case u.Scheme != "tcp" && u.Scheme != "ssl" && u.Scheme != "ws" && u.Scheme != "wss" && u.Scheme != "mqtt":
			errs = append(errs, fmt.Sprintf("mqtt.broker scheme %q not supported", u.Scheme))
		}
		if strings.TrimSpace(settings.MQTT.Topic) == "" {
			errs = append(errs, "mqtt.topic is required when mqtt is enabled")
		}
	}

	if settings.Kafka.Enabled {
		if len(settings.Kafka.Brokers) == 0 {
			errs = append(errs, "kafka.brokers is required when kafka is enabled")
		}
		if settings.Kafka.Topic == "" {
			errs = append(errs, "kafka.topic is required when kafka is enabled")
		}
	}

	if settings.Notify.Enabled && len(settings.Notify.URLs) == 0 {
		errs = append(errs, "notify.urls is required when notify is enabled")
	}

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateWebServerSettings(w *WebServerSettings) error {
	if !w.Enabled {
		return nil
	}
	if _, _, err := net.SplitHostPort(w.Listen); err != nil {
		return fmt.Errorf("webserver.listen %q is not host:port: %w", w.Listen, err)
	}
	return nil
}
