package render

import (
	"fmt"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

const (
	// Rough ceiling for crf-23 H.264 output, used to size the disk
	// check. Stop-motion footage compresses far below this.
	exportBytesPerSecond = 3 << 20
	diskHeadroomBytes    = 256 << 20
	minAvailableMemBytes = 256 << 20
)

// Diagnostics is a point-in-time view of the host resources exports
// depend on. Zero values mean the probe failed.
type Diagnostics struct {
	FreeDiskMB     uint64 `json:"free_disk_mb"`
	AvailableMemMB uint64 `json:"available_mem_mb"`
}

// ReadDiagnostics samples free disk under dir and available memory.
func ReadDiagnostics(dir string) Diagnostics {
	var d Diagnostics
	if usage, err := disk.Usage(dir); err == nil {
		d.FreeDiskMB = usage.Free >> 20
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		d.AvailableMemMB = vm.Available >> 20
	}
	return d
}

// Preflight checks that the scratch volume and system memory can take
// an export of the given length. Probe failures are logged and waved
// through; only confirmed shortages block the export.
func (p *Pipeline) Preflight(scratchDir string, estimatedSeconds float64) error {
	required := uint64(estimatedSeconds*exportBytesPerSecond) + diskHeadroomBytes

	usage, err := disk.Usage(scratchDir)
	if err != nil {
		p.logger.Warn("disk preflight probe failed", "dir", scratchDir, "error", err)
	} else if usage.Free < required {
		return fmt.Errorf("%w: %d MB free, need %d MB",
			ErrLowDiskSpace, usage.Free>>20, required>>20)
	}

	vm, err := mem.VirtualMemory()
	if err != nil {
		p.logger.Warn("memory preflight probe failed", "error", err)
	} else if vm.Available < minAvailableMemBytes {
		return fmt.Errorf("%w: %d MB available", ErrLowMemory, vm.Available>>20)
	}

	return nil
}
