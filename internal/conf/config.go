// conf/config.go
package conf

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/tphakala/eas-monitor/internal/errors"
)

//go:embed config.yaml
var configFiles embed.FS

// MonitorSettings holds the scanner and buffering tunables.
type MonitorSettings struct {
	ScanInterval        time.Duration // time between scanner ticks
	BufferDuration      time.Duration // length of each per-source ring buffer
	MaxConcurrentScans  int           // ceiling on concurrent decodes across all sources, 0 = derive from CPU
	SampleRate          int           // canonical decode rate
	SilenceThreshold    time.Duration // no samples for longer than this raises the silence flag
	HealthCheckInterval time.Duration // how often silence is evaluated and logged
}

// PrecheckSettings configures the tone pre-filter run before each decode.
type PrecheckSettings struct {
	Enabled        bool    // false sends every snapshot to the decoder
	RatioDB        float64 // tone power over guard floor required per block
	MinLevelDBFS   float64 // blocks quieter than this are ignored
	MinTonalBlocks int     // number of qualifying blocks for a positive result
}

// DecoderSettings configures SAME burst validation.
type DecoderSettings struct {
	VoteThreshold    int  // identical bursts needed for a high confidence result
	RequireAgreement bool // true drops low confidence (uncorroborated) results
}

// BackoffSettings configures reconnect behaviour for transient source loss.
type BackoffSettings struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	MaxRetries   int // consecutive failed reconnects before the source enters error, 0 = unlimited
}

// AlertSettings configures the alert emitter.
type AlertSettings struct {
	QueueSize   int           // pending alerts before new ones are dropped
	DedupWindow time.Duration // identical headers inside this window are emitted once
	Log         struct {
		Enabled bool   // true to journal alerts to a rotating JSON file
		Path    string // alert journal path
	}
}

// MQTTSettings contains settings for MQTT integration.
type MQTTSettings struct {
	Enabled  bool   // true to publish alerts to MQTT
	Broker   string // MQTT broker URL, tcp://host:1883
	Topic    string // topic alerts are published under
	Username string
	Password string
	ClientID string
	Retain   bool
}

// KafkaSettings contains settings for the Kafka alert sink.
type KafkaSettings struct {
	Enabled      bool
	Brokers      []string
	Topic        string
	WriteTimeout time.Duration
}

// NotifySettings holds shoutrrr service URLs alerts are pushed to.
type NotifySettings struct {
	Enabled bool
	URLs    []string
	Timeout time.Duration
}

// WebServerSettings configures the health, admin and metrics HTTP endpoint.
type WebServerSettings struct {
	Enabled bool
	Listen  string // host:port
}

// TelemetrySettings configures error reporting.
type TelemetrySettings struct {
	Enabled     bool
	DSN         string
	Environment string
}

// Settings is the root configuration.
type Settings struct {
	Debug bool // true to enable debug logging

	Version string `yaml:"-" mapstructure:"-"` // set from build info

	Main struct {
		Name string    // station name, included in alert payloads
		Log  LogConfig // log file configuration
	}

	Monitor   MonitorSettings
	Precheck  PrecheckSettings
	Decoder   DecoderSettings
	Backoff   BackoffSettings
	Sources   []SourceConfig
	Alert     AlertSettings
	MQTT      MQTTSettings
	Kafka     KafkaSettings
	Notify    NotifySettings
	WebServer WebServerSettings
	Telemetry TelemetrySettings
}

// LogConfig defines the configuration for a log file
type LogConfig struct {
	Enabled    bool         // true to enable this log
	Path       string       // Path to the log file
	Rotation   RotationType // Type of log rotation
	MaxSize    int64        // Max size in bytes for RotationSize
	MaxBackups int          // rotated files kept, 0 = rotation default
}

// RotationType defines different types of log rotations.
type RotationType string

const (
	RotationDaily  RotationType = "daily"
	RotationWeekly RotationType = "weekly"
	RotationSize   RotationType = "size"
)

var (
	settingsInstance *Settings
	once             sync.Once
	settingsMutex    sync.RWMutex
	configFile       string
)

// SetConfigFile overrides the config search paths with an explicit file.
func SetConfigFile(path string) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()
	configFile = path
}

// Load reads the configuration file and environment variables into Settings.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	settings, err := unmarshalSettings(viper.GetViper())
	if err != nil {
		return nil, err
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// unmarshalSettings decodes, derives defaults and validates.
func unmarshalSettings(v *viper.Viper) (*Settings, error) {
	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if settings.Monitor.MaxConcurrentScans == 0 {
		settings.Monitor.MaxConcurrentScans = DefaultMaxConcurrentScans()
	}
	for i := range settings.Sources {
		settings.Sources[i].normalize()
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}
	return settings, nil
}

// initViper initializes viper with default values and reads the configuration file.
func initViper() error {
	// A missing .env is the normal case.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return errors.New(err).
			Category(errors.CategoryConfiguration).
			Context("operation", "load_dotenv").
			Build()
	}

	viper.SetConfigType("yaml")
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName("config")
		configPaths, err := GetDefaultConfigPaths()
		if err != nil {
			return fmt.Errorf("error getting default config paths: %w", err)
		}
		for _, path := range configPaths {
			viper.AddConfigPath(path)
		}
	}

	setDefaultConfig()

	if err := bindEnvVars(); err != nil {
		return err
	}

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) && configFile == "" {
			return createDefaultConfig()
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// createDefaultConfig creates a default config file and writes it to the default config path
func createDefaultConfig() error {
	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	configPath := filepath.Join(configPaths[0], "config.yaml")

	defaultConfig, err := getDefaultConfig()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}
	if err := os.WriteFile(configPath, defaultConfig, 0o644); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}

	fmt.Fprintln(os.Stderr, "Created default config file at:", configPath)
	return viper.ReadInConfig()
}

// getDefaultConfig reads the default configuration from the embedded config.yaml file.
func getDefaultConfig() ([]byte, error) {
	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryConfiguration).
			Context("operation", "read_embedded_config").
			Build()
	}
	return data, nil
}

// GetSettings returns the current settings instance
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// Setting returns the current settings instance, loading it on first use.
func Setting() *Settings {
	once.Do(func() {
		if GetSettings() == nil {
			if _, err := Load(); err != nil {
				fmt.Fprintf(os.Stderr, "Error loading settings: %v\n", err)
				os.Exit(1)
			}
		}
	})
	return GetSettings()
}
