// Package sysmem exposes coarse memory readings used by the mesh loader's
// resource guard and by pipeline metrics.
package sysmem

import (
	"bufio"
	"os"
	"runtime"
	"strconv"
	"strings"
)

// AvailableMB reports the system's available memory in megabytes. On Linux it
// reads MemAvailable from /proc/meminfo. On other platforms, or when the file
// cannot be read, it returns ok=false and callers should skip the check.
func AvailableMB() (mb float64, ok bool) {
	f, err := os.Open("/proc/meminfo")
	if err != nil {
		return 0, false
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "MemAvailable:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return 0, false
		}
		kb, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return 0, false
		}
		return kb / 1024.0, true
	}
	return 0, false
}

// ProcessMB reports the current heap allocation of this process in megabytes.
// It is a snapshot for metrics, not an accounting tool.
func ProcessMB() float64 {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return float64(ms.HeapAlloc) / (1024.0 * 1024.0)
}
