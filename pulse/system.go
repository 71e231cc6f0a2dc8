package pulse

import (
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// SystemMetrics is a point-in-time view of host health, exposed on the
// dashboard status endpoint.
type SystemMetrics struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	MemoryUsedMB  uint64  `json:"memory_used_mb"`
	UptimeSeconds uint64  `json:"uptime_seconds"`
	Goroutines    int     `json:"goroutines"`
}

// ReadSystemMetrics samples host CPU, memory and uptime. Individual
// probe failures leave the corresponding field zero rather than
// failing the whole read.
func ReadSystemMetrics() SystemMetrics {
	m := SystemMetrics{Goroutines: runtime.NumGoroutine()}

	if percents, err := cpu.Percent(100*time.Millisecond, false); err == nil && len(percents) > 0 {
		m.CPUPercent = percents[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		m.MemoryPercent = vm.UsedPercent
		m.MemoryUsedMB = vm.Used / 1024 / 1024
	}
	if up, err := host.Uptime(); err == nil {
		m.UptimeSeconds = up
	}
	return m
}
