// conf/utils.go various util functions for configuration package
package conf

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/tphakala/eas-monitor/internal/errors"
	"gopkg.in/yaml.v3"
)

const osWindows = "windows"

// GetDefaultConfigPaths returns the configuration search paths for the
// current operating system. If a config.yaml exists in one of them, only
// that path is returned.
func GetDefaultConfigPaths() ([]string, error) {
	exePath, err := os.Executable()
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategorySystem).
			Context("operation", "get-executable-path").
			Build()
	}
	exeDir := filepath.Dir(exePath)

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategorySystem).
			Context("operation", "get-home-directory").
			Build()
	}

	var configPaths []string
	switch runtime.GOOS {
	case osWindows:
		configPaths = []string{
			exeDir,
			filepath.Join(homeDir, "AppData", "Roaming", "eas-monitor"),
		}
	default:
		configPaths = []string{
			filepath.Join(homeDir, ".config", "eas-monitor"),
			"/etc/eas-monitor",
		}
	}

	for _, path := range configPaths {
		if _, err := os.Stat(filepath.Join(path, "config.yaml")); err == nil {
			return []string{path}, nil
		}
	}
	return configPaths, nil
}

const redacted = "[redacted]"

// DumpYAML renders the effective settings as YAML with secrets masked.
func DumpYAML(settings *Settings) ([]byte, error) {
	masked := *settings
	if masked.MQTT.Password != "" {
		masked.MQTT.Password = redacted
	}
	if masked.Telemetry.DSN != "" {
		masked.Telemetry.DSN = redacted
	}
	masked.Notify.URLs = make([]string, len(settings.Notify.URLs))
	for i, u := range settings.Notify.URLs {
		// shoutrrr urls carry tokens in the userinfo/path, keep only the service
		service, _, _ := strings.Cut(u, "://")
		masked.Notify.URLs[i] = service + "://" + redacted
	}

	data, err := yaml.Marshal(&masked)
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryConfiguration).
			Context("operation", "marshal_settings").
			Build()
	}
	return data, nil
}
