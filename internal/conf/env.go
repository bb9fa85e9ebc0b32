// env.go - Environment variable configuration
package conf

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every automatically bound environment variable,
// monitor.scaninterval becomes EAS_MONITOR_SCANINTERVAL.
const EnvPrefix = "EAS"

// envBinding holds metadata for explicit environment variable bindings
type envBinding struct {
	ConfigKey string             // Viper config key
	EnvVar    string             // Environment variable name
	Validate  func(string) error // Optional validation function
}

// getEnvBindings returns bindings whose names do not follow the prefix scheme
func getEnvBindings() []envBinding {
	return []envBinding{
		{"mqtt.password", "MQTT_PASSWORD", nil},
		{"mqtt.username", "MQTT_USERNAME", nil},
		{"mqtt.broker", "MQTT_BROKER", validateEnvURL},
		{"kafka.brokers", "KAFKA_BROKERS", nil},
		{"telemetry.dsn", "SENTRY_DSN", validateEnvURL},
	}
}

// bindEnvVars sets up automatic and explicit environment variable bindings
func bindEnvVars() error {
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	var warnings []string
	for _, binding := range getEnvBindings() {
		if err := viper.BindEnv(binding.ConfigKey, EnvPrefix+"_"+strings.ToUpper(strings.ReplaceAll(binding.ConfigKey, ".", "_")), binding.EnvVar); err != nil {
			warnings = append(warnings, fmt.Sprintf("Failed to bind %s: %v", binding.EnvVar, err))
			continue
		}

		if binding.Validate != nil {
			if envValue := os.Getenv(binding.EnvVar); envValue != "" {
				if err := binding.Validate(envValue); err != nil {
					warnings = append(warnings, fmt.Sprintf("Invalid %s value: %v", binding.EnvVar, err))
				}
			}
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(warnings, "\n  - "))
	}
	return nil
}

func validateEnvURL(value string) error {
	u, err := url.Parse(value)
	if err != nil {
		return err
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("expected scheme://host")
	}
	return nil
}
