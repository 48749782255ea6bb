package engine

import "golang.org/x/sys/unix"

// TotalRAM returns the host's total physical memory in bytes, used to
// bound chunksize at 0.8 * total_ram (spec.md §4.1/§8). It returns 0 (no
// bound enforced) if the syscall fails, e.g. on an unsupported platform.
func TotalRAM() uint64 {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return 0
	}
	return uint64(info.Totalram) * uint64(info.Unit)
}
