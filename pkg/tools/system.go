package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
)

// cpuSampleInterval is how long CPU usage is measured.
const cpuSampleInterval = time.Second

// SystemSnapshot is what the system tool reports.
type SystemSnapshot struct {
	OS          string
	CPU         string
	CPUPercent  float64
	MemPercent  float64
	DiskPercent float64
}

type systemSampler interface {
	Snapshot(ctx context.Context) (SystemSnapshot, error)
}

type gopsutilSampler struct{}

func (gopsutilSampler) Snapshot(ctx context.Context) (SystemSnapshot, error) {
	var s SystemSnapshot

	hi, err := host.InfoWithContext(ctx)
	if err != nil {
		return s, fmt.Errorf("host info: %w", err)
	}
	s.OS = strings.TrimSpace(osName(hi.OS) + " " + hi.KernelVersion)

	if infos, err := cpu.InfoWithContext(ctx); err == nil && len(infos) > 0 {
		s.CPU = infos[0].ModelName
	}

	pct, err := cpu.PercentWithContext(ctx, cpuSampleInterval, false)
	if err != nil {
		return s, fmt.Errorf("cpu usage: %w", err)
	}
	if len(pct) > 0 {
		s.CPUPercent = pct[0]
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return s, fmt.Errorf("memory: %w", err)
	}
	s.MemPercent = vm.UsedPercent

	du, err := disk.UsageWithContext(ctx, "/")
	if err != nil {
		return s, fmt.Errorf("disk: %w", err)
	}
	s.DiskPercent = du.UsedPercent

	return s, nil
}

func osName(goos string) string {
	switch goos {
	case "linux":
		return "Linux"
	case "darwin":
		return "Darwin"
	case "windows":
		return "Windows"
	}
	return goos
}

type systemTool struct {
	sampler systemSampler
	now     func() time.Time
}

func (t *systemTool) handle(ctx context.Context, _ Args) (string, error) {
	s, err := t.sampler.Snapshot(ctx)
	if err != nil {
		return "System info error: " + err.Error(), nil
	}

	var b strings.Builder
	b.WriteString("💻 System Information:\n")
	fmt.Fprintf(&b, "   OS: %s\n", s.OS)
	fmt.Fprintf(&b, "   CPU: %s\n", s.CPU)
	fmt.Fprintf(&b, "   CPU Usage: %.1f%%\n", s.CPUPercent)
	fmt.Fprintf(&b, "   Memory: %.1f%% used\n", s.MemPercent)
	fmt.Fprintf(&b, "   Disk: %.1f%% used\n", s.DiskPercent)
	fmt.Fprintf(&b, "   Current Time: %s\n", t.now().Format(time.DateTime))
	return b.String(), nil
}

func clock(now func() time.Time) Handler {
	return func(context.Context, Args) (string, error) {
		return "🕐 Current time: " + now().Format("Monday, January 02, 2006 at 03:04:05 PM"), nil
	}
}
