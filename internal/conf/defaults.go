// conf/defaults.go default values for settings
package conf

import (
	"runtime"

	"github.com/klauspost/cpuid/v2"
	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	setDefaults(viper.GetViper())
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("debug", false)

	v.SetDefault("main.name", "EAS-Monitor")
	v.SetDefault("main.log.enabled", false)
	v.SetDefault("main.log.path", "logs/eas-monitor.log")
	v.SetDefault("main.log.rotation", RotationDaily)
	v.SetDefault("main.log.maxsize", 10485760)

	v.SetDefault("monitor.scaninterval", "2s")
	v.SetDefault("monitor.bufferduration", "12s")
	v.SetDefault("monitor.maxconcurrentscans", 0)
	v.SetDefault("monitor.samplerate", 16000)
	v.SetDefault("monitor.silencethreshold", "30s")
	v.SetDefault("monitor.healthcheckinterval", "5s")

	v.SetDefault("precheck.enabled", true)
	v.SetDefault("precheck.ratiodb", 6.0)
	v.SetDefault("precheck.minleveldbfs", -55.0)
	v.SetDefault("precheck.mintonalblocks", 24)

	v.SetDefault("decoder.votethreshold", 2)
	v.SetDefault("decoder.requireagreement", false)

	v.SetDefault("backoff.initialdelay", "1s")
	v.SetDefault("backoff.maxdelay", "60s")
	v.SetDefault("backoff.multiplier", 2.0)
	v.SetDefault("backoff.maxretries", 0)

	v.SetDefault("sources", []map[string]any{})

	v.SetDefault("alert.queuesize", 64)
	v.SetDefault("alert.dedupwindow", "5m")
	v.SetDefault("alert.log.enabled", false)
	v.SetDefault("alert.log.path", "logs/alerts.log")

	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.topic", "eas-monitor/alerts")
	v.SetDefault("mqtt.clientid", "eas-monitor")
	v.SetDefault("mqtt.retain", false)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "eas-alerts")
	v.SetDefault("kafka.writetimeout", "10s")

	v.SetDefault("notify.enabled", false)
	v.SetDefault("notify.urls", []string{})
	v.SetDefault("notify.timeout", "10s")

	v.SetDefault("webserver.enabled", true)
	v.SetDefault("webserver.listen", "127.0.0.1:8080")

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.dsn", "")
	v.SetDefault("telemetry.environment", "production")
}

// DefaultMaxConcurrentScans sizes the decode ceiling from the physical core
// count: half the cores, at least 1 and at most 4.
func DefaultMaxConcurrentScans() int {
	cores := cpuid.CPU.PhysicalCores
	if cores <= 0 {
		cores = runtime.NumCPU()
	}
	return min(max(cores/2, 1), 4)
}
