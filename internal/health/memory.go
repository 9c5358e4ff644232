package health

import (
	"context"
	"os"
	"runtime"

	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"
)

// MemoryInfo is the process memory snapshot reported by the liveness probe.
// Fields the platform cannot provide are left zero.
type MemoryInfo struct {
	RSS        uint64 `json:"rss"`
	VMS        uint64 `json:"vms"`
	HeapAlloc  uint64 `json:"heapAlloc"`
	HeapSys    uint64 `json:"heapSys"`
	Goroutines int    `json:"goroutines"`

	SystemTotal     uint64  `json:"systemTotal,omitempty"`
	SystemAvailable uint64  `json:"systemAvailable,omitempty"`
	PercentOfSystem float64 `json:"percentOfSystem,omitempty"`
}

// ProcessMemory collects memory figures for the running process.
func ProcessMemory(ctx context.Context) *MemoryInfo {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	info := &MemoryInfo{
		HeapAlloc:  ms.HeapAlloc,
		HeapSys:    ms.HeapSys,
		Goroutines: runtime.NumGoroutine(),
	}

	if proc, err := process.NewProcessWithContext(ctx, int32(os.Getpid())); err == nil {
		if mi, err := proc.MemoryInfoWithContext(ctx); err == nil && mi != nil {
			info.RSS = mi.RSS
			info.VMS = mi.VMS
		}
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil && vm != nil {
		info.SystemTotal = vm.Total
		info.SystemAvailable = vm.Available
		if vm.Total > 0 {
			info.PercentOfSystem = float64(info.RSS) / float64(vm.Total) * 100
		}
	}
	return info
}
