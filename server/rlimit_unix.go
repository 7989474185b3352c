//go:build unix

package server

import (
	"golang.org/x/sys/unix"

	"dirauth/pkg/logger"
)

// fdHeadroom covers the listener, the audit database, and incidental
// file descriptors beyond the pool's directory sessions.
const fdHeadroom = 64

// checkFileDescriptorLimit warns when the process file-descriptor limit
// is too low for the configured pool capacity.
func checkFileDescriptorLimit(poolCapacity int) {
	var lim unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &lim); err != nil {
		logger.Get().DebugWith("rlimit check skipped", "error", err)
		return
	}

	needed := uint64(poolCapacity + fdHeadroom)
	if lim.Cur < needed {
		logger.Get().WarnWith("file descriptor limit may be too low for the pool",
			"limit", lim.Cur,
			"pool_capacity", poolCapacity,
			"recommended", needed)
	}
}
