//go:build windows

package ops

import "os"

// openFileNoFollow opens a file for writing. O_NOFOLLOW is not available on
// Windows; writeCalendarFile still rejects symlinks before we get here.
func openFileNoFollow(path string, flag int, perm os.FileMode) (*os.File, error) {
	return os.OpenFile(path, flag, perm)
}
