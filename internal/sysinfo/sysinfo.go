// Package sysinfo collects host metrics for heartbeat reporting.
// Readings come from /proc on Linux and degrade to zero values on
// platforms where a source is unavailable; a heartbeat with partial
// metrics is preferred over no heartbeat at all.
package sysinfo

import (
	"bufio"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"
)

// SystemInfo is a point-in-time snapshot of host health.
// It is recomputed fresh on every heartbeat tick, never cached.
type SystemInfo struct {
	Platform    string  `json:"platform"`
	Arch        string  `json:"arch"`
	CPUUsage    float64 `json:"cpu_usage"`    // percent, 0–100
	MemoryUsage float64 `json:"memory_usage"` // percent, 0–100
	Uptime      int64   `json:"uptime"`       // seconds
}

// cpuSample holds aggregate jiffies from /proc/stat for delta computation.
type cpuSample struct {
	total uint64
	idle  uint64
}

var (
	cpuMu   sync.Mutex
	lastCPU cpuSample
)

// Collect returns a fresh snapshot. CPU usage is computed as the busy share
// of jiffies since the previous Collect call; the first call reports 0.
func Collect() SystemInfo {
	return SystemInfo{
		Platform:    runtime.GOOS,
		Arch:        runtime.GOARCH,
		CPUUsage:    cpuUsage(),
		MemoryUsage: memoryUsage(),
		Uptime:      uptimeSeconds(),
	}
}

func cpuUsage() float64 {
	sample, ok := readCPUSample()
	if !ok {
		return 0
	}

	cpuMu.Lock()
	prev := lastCPU
	lastCPU = sample
	cpuMu.Unlock()

	if prev.total == 0 || sample.total <= prev.total {
		return 0
	}

	totalDelta := float64(sample.total - prev.total)
	idleDelta := float64(sample.idle - prev.idle)
	pct := (totalDelta - idleDelta) / totalDelta * 100
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

// readCPUSample parses the aggregate "cpu" line of /proc/stat.
func readCPUSample() (cpuSample, bool) {
	f, err := os.Open("/proc/stat")
	if err != nil {
		return cpuSample{}, false
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "cpu ") {
			continue
		}
		fields := strings.Fields(line)[1:]
		var sample cpuSample
		for i, field := range fields {
			v, err := strconv.ParseUint(field, 10, 64)
			if err != nil {
				return cpuSample{}, false
			}
			sample.total += v
			// Fields 3 (idle) and 4 (iowait) count as idle time.
			if i == 3 || i == 4 {
				sample.idle += v
			}
		}
		return sample, sample.total > 0
	}
	return cpuSample{}, false
}

func memoryUsage() float64 {
	f, err := os.Open("/proc/meminfo")
	if err != nil {
		return 0
	}
	defer f.Close()

	var total, available uint64
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		v, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			continue
		}
		switch fields[0] {
		case "MemTotal:":
			total = v
		case "MemAvailable:":
			available = v
		}
		if total > 0 && available > 0 {
			break
		}
	}
	if total == 0 {
		return 0
	}
	return float64(total-available) / float64(total) * 100
}

func uptimeSeconds() int64 {
	data, err := os.ReadFile("/proc/uptime")
	if err != nil {
		return 0
	}
	fields := strings.Fields(string(data))
	if len(fields) == 0 {
		return 0
	}
	secs, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0
	}
	return int64(secs)
}
