package health

import (
	"os"
	"runtime"

	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/tphakala/eas-monitor/internal/errors"
)

// ProcessStats describes the resource usage of the monitor process.
type ProcessStats struct {
	PID              int32   `json:"pid"`
	CPUPercent       float64 `json:"cpu_percent"`
	ResidentMB       uint64  `json:"resident_mb"`
	NumThreads       int32   `json:"num_threads"`
	Goroutines       int     `json:"goroutines"`
	SystemMemoryUsed float64 `json:"system_memory_used_percent"`
}

// ReadProcessStats samples the current process through gopsutil.
func ReadProcessStats() (*ProcessStats, error) {
	pid := int32(os.Getpid())
	proc, err := process.NewProcess(pid)
	if err != nil {
		return nil, errors.New(err).
			Component("health").
			Category(errors.CategorySystem).
			Context("operation", "get_process").
			Build()
	}

	stats := &ProcessStats{PID: pid, Goroutines: runtime.NumGoroutine()}

	// CPU percent averaged over the process lifetime, no blocking sample
	if cpu, err := proc.CPUPercent(); err == nil {
		stats.CPUPercent = cpu
	}
	if memInfo, err := proc.MemoryInfo(); err == nil {
		stats.ResidentMB = memInfo.RSS / 1024 / 1024
	}
	if threads, err := proc.NumThreads(); err == nil {
		stats.NumThreads = threads
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		stats.SystemMemoryUsed = vm.UsedPercent
	}
	return stats, nil
}
