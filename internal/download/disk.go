//go:build unix

package download

import "golang.org/x/sys/unix"

// AvailableDiskKB returns the free space at path in KBytes, or a large
// value when the probe fails (the estimate then degrades to permissive).
func AvailableDiskKB(path string) int64 {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 1 << 40
	}
	return int64(st.Bavail) * int64(st.Bsize) / 1024
}
