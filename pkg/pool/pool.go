package pool

import (
	"math"
	"sync"

	"dirauth/pkg/directory"
	"dirauth/pkg/errors"
	"dirauth/pkg/logger"
)

// Config holds the pool's construction parameters.
type Config struct {
	// WarmStart is the number of slots eagerly connected up front
	WarmStart int
	// MaxSize is the number of slots in the pool
	MaxSize int
	// Settings are the backend parameters shared by all slots
	Settings directory.Settings
	// RoleMapping is the delimited group-to-role mapping string
	RoleMapping string
}

// Stats is a point-in-time snapshot of pool occupancy.
type Stats struct {
	Capacity  int `json:"capacity"`
	WarmStart int `json:"warm_start"`
	InUse     int `json:"in_use"`
	Free      int `json:"free"`
}

// Pool owns a fixed-capacity, resizable arena of connections plus a
// parallel occupancy mask. A single mutex guards every read and write of
// conns, busy, and capacity so they are never observed inconsistently.
type Pool struct {
	mu        sync.Mutex
	conns     []Conn
	busy      []bool
	busyCount int
	capacity  int
	warmStart int
	settings  directory.Settings
	factory   Factory
	closed    bool

	roleMu sync.RWMutex
	roles  RoleMapping
}

// New constructs a pool of cfg.MaxSize slots and eagerly connects the
// first cfg.WarmStart of them. Eager connects are best-effort: a failure
// leaves the slot unconnected, to be retried on its next eager borrow.
func New(cfg Config, factory Factory) *Pool {
	p := &Pool{
		conns:     make([]Conn, cfg.MaxSize),
		busy:      make([]bool, cfg.MaxSize),
		capacity:  cfg.MaxSize,
		warmStart: cfg.WarmStart,
		settings:  cfg.Settings,
		factory:   factory,
		roles:     ParseRoleMapping(cfg.RoleMapping),
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	for i := 0; i < p.capacity; i++ {
		p.conns[i] = factory(i, p.settings)
		if i < p.warmStart {
			if _, err := p.conns[i].Connect(p.settings.BindDN, p.settings.BindPassword); err != nil {
				logger.Get().WarnWith("warm-start connect failed", "slot", i, "error", err)
			}
		}
	}

	return p
}

// Borrow hands out a free connection, or reports exhaustion immediately.
// It never blocks waiting for a slot. When eagerConnect is set the
// backend session is (re)established before the handle is handed out; a
// connect failure reverts the slot to free and the caller gets no handle.
//
// The lock is held for the whole call, including the eager connect:
// a resize racing with a borrow could otherwise index past the arena or
// hand out a slot mid-resize. A hanging backend connect therefore
// serializes the pool; that risk belongs to the connection's own dial
// contract.
func (p *Pool) Borrow(eagerConnect bool) (Conn, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, errors.ErrPoolClosed
	}

	idx := p.findFirstFree()
	if idx == -1 {
		logger.Get().WarnWith("no available connections in the pool", "capacity", p.capacity)
		go p.zombieControl()
		return nil, errors.ErrPoolExhausted
	}

	// Claim the slot before the slow connect so no concurrent borrower
	// can be handed the same index.
	p.markBusy(idx)

	conn := p.conns[idx]
	if eagerConnect {
		if _, err := conn.Connect(p.settings.BindDN, p.settings.BindPassword); err != nil {
			logger.Get().ErrorWithErr("connection to directory backend failed", err, "slot", idx)
			p.markFree(idx)
			return nil, err
		}
	}

	conn.MarkBusy()
	return conn, nil
}

// Return gives a borrowed connection back. A snipped connection no longer
// has a slot; it is closed and discarded with no pool bookkeeping. A high
// occupancy after the return triggers a detached zombie sweep so dead
// connections are reclaimed before the pool looks falsely saturated.
func (p *Pool) Return(conn Conn) {
	if conn == nil {
		return
	}

	conn.MarkFree()

	if conn.IsSnipped() {
		conn.Close()
		return
	}

	p.mu.Lock()
	// The pool may have shrunk between borrow and return; markFree
	// re-validates the index.
	p.markFree(conn.Index())
	highOccupancy := p.busyCount >= p.highWater()
	p.mu.Unlock()

	if highOccupancy {
		go p.zombieControl()
	}
}

// Reconfigure resizes the pool and replaces the backend parameters
// wholesale. In-flight borrows stay valid: slots shrunk away are snipped
// and transferred to their holders, new slots are created with the new
// parameters, and surviving slots are retargeted in place. Reconnects are
// best-effort; a failure never aborts the reconfigure.
func (p *Pool) Reconfigure(warmStart, maxSize int, s directory.Settings) {
	logger.Get().DebugWith("pool reconfigure", "warm_start", warmStart, "max_size", maxSize)

	// Force a sweep so slots held only by dead borrowers are not snipped
	// or reconnected for nothing. Takes its own lock.
	p.zombieControl()

	p.mu.Lock()
	defer p.mu.Unlock()

	if maxSize != p.capacity {
		if maxSize < p.capacity {
			logger.Get().DebugWith("reducing max pool size", "from", p.capacity, "to", maxSize)
			for i := maxSize; i < p.capacity; i++ {
				p.conns[i].MarkSnipped()
				if p.busy[i] {
					p.busyCount--
				}
			}
			p.conns = p.conns[:maxSize]
			p.busy = p.busy[:maxSize]
		} else {
			logger.Get().DebugWith("extending max pool size", "from", p.capacity, "to", maxSize)
			for i := p.capacity; i < maxSize; i++ {
				p.conns = append(p.conns, p.factory(i, s))
				p.busy = append(p.busy, false)
			}
		}
		p.capacity = maxSize
	}

	p.settings = s
	if warmStart > p.capacity {
		warmStart = p.capacity
	}
	p.warmStart = warmStart

	for i := 0; i < p.capacity; i++ {
		p.conns[i].Configure(s)
		if i < p.warmStart {
			if _, err := p.conns[i].Connect(s.BindDN, s.BindPassword); err != nil {
				logger.Get().WarnWith("reconfigure reconnect failed", "slot", i, "error", err)
			}
		}
	}

	// Warm-start pass over the final layout. Slots that survived the
	// resize were already connected above; reconnecting them again is
	// idempotent (Connect tears down and redials).
	for i := 0; i < p.warmStart; i++ {
		if _, err := p.conns[i].Connect(s.BindDN, s.BindPassword); err != nil {
			logger.Get().WarnWith("warm-start connect failed", "slot", i, "error", err)
		}
	}
}

// zombieControl frees every busy slot whose connection reports a dead
// backend session. This is the only recovery path for slots whose
// borrower never called Return. Invoked on exhaustion, on high occupancy,
// and at the start of every reconfigure; never on a timer.
func (p *Pool) zombieControl() {
	p.mu.Lock()
	defer p.mu.Unlock()

	reclaimed := 0
	for i := 0; i < p.capacity; i++ {
		if p.busy[i] && p.conns[i].IsZombie() {
			p.conns[i].MarkFree()
			p.markFree(i)
			reclaimed++
		}
	}

	if reclaimed > 0 {
		logger.Get().DebugWith("zombie sweep reclaimed slots", "count", reclaimed)
	}
}

// Close tears down the pool and every connection it still owns. Snipped
// connections on loan are not affected; their holders dispose of them on
// return.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	for _, c := range p.conns {
		c.Close()
	}
	p.conns = nil
	p.busy = nil
	p.busyCount = 0
	p.capacity = 0

	return nil
}

// Stats returns a snapshot of pool occupancy.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	return Stats{
		Capacity:  p.capacity,
		WarmStart: p.warmStart,
		InUse:     p.busyCount,
		Free:      p.capacity - p.busyCount,
	}
}

// DebugInfo logs the pool occupancy at debug level.
func (p *Pool) DebugInfo() {
	s := p.Stats()
	logger.Get().DebugWith("pool state",
		"conn_init", s.WarmStart,
		"conn_max", s.Capacity,
		"conn_in_use", s.InUse)
}

// findFirstFree returns the lowest free slot index, or -1 when the pool
// is full. Caller holds p.mu.
func (p *Pool) findFirstFree() int {
	// Everything in use: skip the scan
	if p.busyCount >= p.capacity {
		return -1
	}

	for i := 0; i < p.capacity; i++ {
		if !p.busy[i] {
			return i
		}
	}

	return -1
}

// markBusy sets the occupancy bit. Caller holds p.mu.
func (p *Pool) markBusy(idx int) {
	if !p.busy[idx] {
		p.busy[idx] = true
		p.busyCount++
	}
}

// markFree clears the occupancy bit. The index may point past the current
// capacity when the pool shrank between borrow and return; those are
// ignored. Caller holds p.mu.
func (p *Pool) markFree(idx int) {
	if idx >= 0 && idx < len(p.busy) && p.busy[idx] {
		p.busy[idx] = false
		p.busyCount--
	}
}

// highWater is the occupancy at which a return triggers a zombie sweep.
// Caller holds p.mu.
func (p *Pool) highWater() int {
	return int(math.Ceil(float64(p.capacity) * 0.9))
}

// SetRoleMapping replaces the group-to-role mapping from its delimited
// string form. Independent of connection lifecycle.
func (p *Pool) SetRoleMapping(mapping string) {
	parsed := ParseRoleMapping(mapping)

	p.roleMu.Lock()
	defer p.roleMu.Unlock()
	p.roles = parsed
}

// Role resolves a directory group to its mapped role.
func (p *Pool) Role(group string) (string, bool) {
	p.roleMu.RLock()
	defer p.roleMu.RUnlock()

	role, ok := p.roles[group]
	return role, ok
}
