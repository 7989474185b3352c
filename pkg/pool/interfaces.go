package pool

import (
	"dirauth/pkg/directory"
)

// Conn is the connection contract the pool manages. *directory.Conn is
// the production implementation; tests substitute fakes.
type Conn interface {
	// Connect establishes or re-establishes the backend session and binds
	// with the given identity; the string carries the server diagnostic
	Connect(bindDN, password string) (string, error)
	// Configure retargets the connection for the next Connect
	Configure(s directory.Settings)
	// MarkBusy flags the connection as on loan
	MarkBusy()
	// MarkFree flags the connection as returned
	MarkFree()
	// IsZombie reports whether the backend session died without a return
	IsZombie() bool
	// MarkSnipped removes the connection from the pool's addressable range
	MarkSnipped()
	// IsSnipped reports whether the connection was snipped by a shrink
	IsSnipped() bool
	// Index returns the connection's slot index
	Index() int
	// Close tears down the backend session
	Close() error
}

// Factory creates the connection for a slot. The pool calls it at
// construction time and again for every slot a grow adds.
type Factory func(idx int, s directory.Settings) Conn

// DirectoryFactory builds production connections.
func DirectoryFactory(idx int, s directory.Settings) Conn {
	return directory.NewConn(idx, s)
}

var _ Conn = (*directory.Conn)(nil)
