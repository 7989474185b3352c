// Package pool provides a bounded, resizable pool of directory connections
// shared by concurrent callers that each need exclusive, temporary use of
// one connection.
//
// The pool is an index-addressed slot arena with a same-length occupancy
// mask, both guarded by a single mutex. Callers borrow a connection, use
// it, and return it:
//
//	conn, err := p.Borrow(true)
//	if err != nil {
//		// pool exhausted or backend connect failed; never blocks
//	}
//	defer p.Return(conn)
//
// The pool can be reconfigured online: capacity grows and shrinks without
// invalidating in-flight borrows (slots removed by a shrink are "snipped"
// and handed fully to their current holder), and connections whose
// borrower disappeared without returning them are reclaimed by
// opportunistic zombie sweeps.
package pool
