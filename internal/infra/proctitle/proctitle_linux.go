//go:build linux

package proctitle

import (
	"os"
	"strconv"
	"unsafe"

	"golang.org/x/sys/unix"
)

// maxCommLen is the kernel's limit for a task name, without the NUL.
const maxCommLen = 15

// set renames the main thread, which is what ps and top show. prctl only
// affects the calling thread, so other threads write the leader's comm file.
func set(title string) error {
	if len(title) > maxCommLen {
		title = title[:maxCommLen]
	}
	pid := unix.Getpid()
	if unix.Gettid() == pid {
		name, err := unix.BytePtrFromString(title)
		if err != nil {
			return err
		}
		return unix.Prctl(unix.PR_SET_NAME, uintptr(unsafe.Pointer(name)), 0, 0, 0)
	}
	return os.WriteFile("/proc/"+strconv.Itoa(pid)+"/comm", []byte(title), 0)
}

func get() (string, error) {
	var buf [maxCommLen + 1]byte
	if err := unix.Prctl(unix.PR_GET_NAME, uintptr(unsafe.Pointer(&buf[0])), 0, 0, 0); err != nil {
		return "", err
	}
	return unix.ByteSliceToString(buf[:]), nil
}
