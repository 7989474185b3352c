package errors

import "errors"

// Pool errors
var (
	// ErrPoolExhausted is returned when no free slot exists in the pool
	ErrPoolExhausted = errors.New("no available connections in the pool")

	// ErrPoolClosed is returned when the pool has been torn down
	ErrPoolClosed = errors.New("connection pool is closed")

	// ErrConnectFailed is returned when establishing a directory session fails
	ErrConnectFailed = errors.New("connection to directory backend failed")
)

// Authentication errors
var (
	// ErrAuthFailed is returned when user credential verification fails
	ErrAuthFailed = errors.New("authentication failed")

	// ErrUserNotFound is returned when a user entry cannot be resolved
	ErrUserNotFound = errors.New("user not found in directory")
)

// Directory errors
var (
	// ErrNotInitialized is returned when the directory library was not initialized
	ErrNotInitialized = errors.New("directory library not initialized")

	// ErrNotConnected is returned when an operation requires a live session
	ErrNotConnected = errors.New("not connected to directory")
)

// Storage errors
var (
	// ErrStoreNotInitialized is returned when the audit store is not initialized
	ErrStoreNotInitialized = errors.New("audit store not initialized")
)

// Configuration errors
var (
	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("invalid configuration")
)
