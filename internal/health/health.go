package health

import (
	"context"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"otplink/internal/cache"
	"otplink/internal/sms"
)

// Pinger is satisfied by every record store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ListenerStatus is satisfied by the SMS poller.
type ListenerStatus interface {
	Status() sms.Status
}

type HealthChecker struct {
	store    Pinger
	storage  string
	listener ListenerStatus
	diskPath string
	started  time.Time
}

type HealthStatus struct {
	Status  string           `json:"status"`
	Storage ComponentHealth  `json:"storage"`
	Redis   *ComponentHealth `json:"redis,omitempty"`
}

type ComponentHealth struct {
	Status       string `json:"status"`
	Driver       string `json:"driver,omitempty"`
	ResponseTime int64  `json:"response_time_ms"`
}

type DetailedStatus struct {
	HealthStatus
	Listener sms.Status  `json:"listener"`
	System   SystemStats `json:"system"`
	Uptime   string      `json:"uptime"`
}

type SystemStats struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	MemoryUsed    string  `json:"memory_used"`
	MemoryTotal   string  `json:"memory_total"`
	DiskPercent   float64 `json:"disk_percent"`
	DiskUsed      string  `json:"disk_used"`
	DiskTotal     string  `json:"disk_total"`
}

// NewHealthChecker builds a checker. storage names the driver in reports and
// diskPath is the filesystem whose usage is reported.
func NewHealthChecker(store Pinger, storage string, listener ListenerStatus, diskPath string) *HealthChecker {
	if diskPath == "" {
		diskPath = "/"
	}
	return &HealthChecker{
		store:    store,
		storage:  storage,
		listener: listener,
		diskPath: diskPath,
		started:  time.Now(),
	}
}

// CheckBasic pings the store and, when configured, Redis. Redis being down
// degrades caching only, so it never marks the service unhealthy.
func (h *HealthChecker) CheckBasic(ctx context.Context) HealthStatus {
	storeHealth := h.checkStore(ctx)

	status := "healthy"
	if storeHealth.Status != "healthy" {
		status = "unhealthy"
	}

	out := HealthStatus{
		Status:  status,
		Storage: storeHealth,
	}
	if cache.Enabled() {
		out.Redis = checkRedis()
	}
	return out
}

func (h *HealthChecker) CheckDetailed(ctx context.Context) DetailedStatus {
	out := DetailedStatus{
		HealthStatus: h.CheckBasic(ctx),
		System:       h.systemStats(),
		Uptime:       time.Since(h.started).Round(time.Second).String(),
	}
	if h.listener != nil {
		out.Listener = h.listener.Status()
	}
	return out
}

func (h *HealthChecker) checkStore(ctx context.Context) ComponentHealth {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	start := time.Now()
	err := h.store.Ping(ctx)
	responseTime := time.Since(start).Milliseconds()

	if err != nil {
		return ComponentHealth{
			Status:       "unhealthy",
			Driver:       h.storage,
			ResponseTime: responseTime,
		}
	}

	return ComponentHealth{
		Status:       "healthy",
		Driver:       h.storage,
		ResponseTime: responseTime,
	}
}

func checkRedis() *ComponentHealth {
	start := time.Now()
	status := "healthy"
	if !cache.IsHealthy() {
		status = "degraded"
	}
	return &ComponentHealth{Status: status, ResponseTime: time.Since(start).Milliseconds()}
}

func (h *HealthChecker) systemStats() SystemStats {
	var stats SystemStats

	// interval 0 compares against the previous call, no blocking
	if cpuPercents, err := cpu.Percent(0, false); err == nil && len(cpuPercents) > 0 {
		stats.CPUPercent = cpuPercents[0]
	}
	if memStats, err := mem.VirtualMemory(); err == nil {
		stats.MemoryPercent = memStats.UsedPercent
		stats.MemoryUsed = formatBytes(memStats.Used)
		stats.MemoryTotal = formatBytes(memStats.Total)
	}
	if diskStats, err := disk.Usage(h.diskPath); err == nil {
		stats.DiskPercent = diskStats.UsedPercent
		stats.DiskUsed = formatBytes(diskStats.Used)
		stats.DiskTotal = formatBytes(diskStats.Total)
	}
	return stats
}

func formatBytes(bytes uint64) string {
	gb := float64(bytes) / (1024 * 1024 * 1024)
	if gb < 1 {
		mb := float64(bytes) / (1024 * 1024)
		return fmt.Sprintf("%.1f MB", mb)
	}
	return fmt.Sprintf("%.1f GB", gb)
}
