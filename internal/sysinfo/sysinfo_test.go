package sysinfo

import (
	"runtime"
	"testing"
)

func TestCollectBasics(t *testing.T) {
	info := Collect()

	if info.Platform != runtime.GOOS {
		t.Errorf("Platform = %q, want %q", info.Platform, runtime.GOOS)
	}
	if info.Arch != runtime.GOARCH {
		t.Errorf("Arch = %q, want %q", info.Arch, runtime.GOARCH)
	}
	if info.CPUUsage < 0 || info.CPUUsage > 100 {
		t.Errorf("CPUUsage = %f, want 0..100", info.CPUUsage)
	}
	if info.MemoryUsage < 0 || info.MemoryUsage > 100 {
		t.Errorf("MemoryUsage = %f, want 0..100", info.MemoryUsage)
	}
	if info.Uptime < 0 {
		t.Errorf("Uptime = %d, want >= 0", info.Uptime)
	}
}

func TestCollectLinuxReadsProc(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("/proc metrics are linux-only")
	}

	// First call seeds the CPU delta baseline.
	_ = Collect()
	info := Collect()

	if info.MemoryUsage <= 0 {
		t.Errorf("MemoryUsage = %f, want > 0 on linux", info.MemoryUsage)
	}
	if info.Uptime <= 0 {
		t.Errorf("Uptime = %d, want > 0 on linux", info.Uptime)
	}
}

func TestCollectIsFreshPerCall(t *testing.T) {
	a := Collect()
	b := Collect()

	// Same process, same host: identity fields stable, but the structs are
	// independent snapshots.
	if a.Platform != b.Platform || a.Arch != b.Arch {
		t.Errorf("identity fields changed between calls: %+v vs %+v", a, b)
	}
}
