//go:build !unix

package server

// checkFileDescriptorLimit is a no-op on platforms without RLIMIT_NOFILE.
func checkFileDescriptorLimit(poolCapacity int) {}
