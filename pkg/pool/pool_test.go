package pool

import (
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"dirauth/pkg/directory"
	"dirauth/pkg/errors"
)

// fakeConn implements Conn without a directory backend.
type fakeConn struct {
	idx int

	mu         sync.Mutex
	settings   directory.Settings
	connects   int
	configures int
	connectErr error
	zombie     bool
	closed     bool

	busy    bool
	snipped bool
}

func (f *fakeConn) Connect(bindDN, password string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	if f.connectErr != nil {
		return f.connectErr.Error(), f.connectErr
	}
	return "", nil
}

func (f *fakeConn) Configure(s directory.Settings) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.settings = s
	f.configures++
}

func (f *fakeConn) MarkBusy() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.busy = true
}

func (f *fakeConn) MarkFree() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.busy = false
}

func (f *fakeConn) IsZombie() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.zombie
}

func (f *fakeConn) MarkSnipped() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snipped = true
}

func (f *fakeConn) IsSnipped() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snipped
}

func (f *fakeConn) Index() int { return f.idx }

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeConn) connectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects
}

func (f *fakeConn) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeConn) setZombie(z bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.zombie = z
}

// fakeFactory records every conn it creates, keyed by slot index.
type fakeFactory struct {
	mu    sync.Mutex
	conns map[int]*fakeConn
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{conns: make(map[int]*fakeConn)}
}

func (ff *fakeFactory) factory(idx int, s directory.Settings) Conn {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	c := &fakeConn{idx: idx, settings: s}
	ff.conns[idx] = c
	return c
}

func (ff *fakeFactory) conn(idx int) *fakeConn {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	return ff.conns[idx]
}

func testConfig(warmStart, maxSize int) Config {
	return Config{
		WarmStart: warmStart,
		MaxSize:   maxSize,
		Settings: directory.Settings{
			Host:         "primary.example.com",
			Port:         389,
			BindDN:       "cn=svc,dc=example,dc=com",
			BindPassword: "secret",
		},
	}
}

// waitFor polls until cond holds or the deadline expires.
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestWarmStartScenario(t *testing.T) {
	ff := newFakeFactory()
	p := New(testConfig(1, 3), ff.factory)

	// Construction connects only slot 0
	if got := ff.conn(0).connectCount(); got != 1 {
		t.Errorf("Slot 0: expected 1 connect at construction, got %d", got)
	}
	for i := 1; i < 3; i++ {
		if got := ff.conn(i).connectCount(); got != 0 {
			t.Errorf("Slot %d: expected no connect at construction, got %d", i, got)
		}
	}

	// Borrows hand out slots in index order
	for want := 0; want < 3; want++ {
		conn, err := p.Borrow(true)
		if err != nil {
			t.Fatalf("Borrow %d failed: %v", want, err)
		}
		if conn.Index() != want {
			t.Errorf("Expected slot %d, got %d", want, conn.Index())
		}
	}

	// Slots 1 and 2 were lazy-connected by the eager borrow
	for i := 1; i < 3; i++ {
		if got := ff.conn(i).connectCount(); got != 1 {
			t.Errorf("Slot %d: expected 1 connect after eager borrow, got %d", i, got)
		}
	}

	// All busy: exhausted, immediately
	if _, err := p.Borrow(true); !stderrors.Is(err, errors.ErrPoolExhausted) {
		t.Errorf("Expected ErrPoolExhausted, got %v", err)
	}
}

func TestConcurrentBorrowExclusive(t *testing.T) {
	const capacity = 8
	const workers = 32
	const iterations = 200

	ff := newFakeFactory()
	p := New(testConfig(0, capacity), ff.factory)

	holders := make([]sync.Mutex, capacity)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				conn, err := p.Borrow(false)
				if err != nil {
					if !stderrors.Is(err, errors.ErrPoolExhausted) {
						t.Errorf("Unexpected borrow error: %v", err)
						return
					}
					continue
				}

				idx := conn.Index()
				if idx < 0 || idx >= capacity {
					t.Errorf("Slot index out of range: %d", idx)
				}
				// A second concurrent holder of the same slot would
				// deadlock here; TryLock exposes it instead.
				if !holders[idx].TryLock() {
					t.Errorf("Slot %d handed to two concurrent borrowers", idx)
					p.Return(conn)
					return
				}
				holders[idx].Unlock()
				p.Return(conn)
			}
		}()
	}
	wg.Wait()

	s := p.Stats()
	if s.InUse != 0 {
		t.Errorf("Expected 0 in use after all returns, got %d", s.InUse)
	}
}

func TestStatsNeverExceedCapacity(t *testing.T) {
	const capacity = 4
	ff := newFakeFactory()
	p := New(testConfig(0, capacity), ff.factory)

	var conns []Conn
	for {
		conn, err := p.Borrow(false)
		if err != nil {
			break
		}
		conns = append(conns, conn)
	}

	if len(conns) != capacity {
		t.Errorf("Expected %d successful borrows, got %d", capacity, len(conns))
	}
	if s := p.Stats(); s.InUse != capacity || s.Free != 0 {
		t.Errorf("Unexpected stats at saturation: %+v", s)
	}

	for _, c := range conns {
		p.Return(c)
	}
	if s := p.Stats(); s.InUse != 0 || s.Free != capacity {
		t.Errorf("Unexpected stats after drain: %+v", s)
	}
}

func TestEagerConnectFailureRevertsSlot(t *testing.T) {
	ff := newFakeFactory()
	p := New(testConfig(0, 2), ff.factory)

	ff.conn(0).connectErr = stderrors.New("backend down")
	if _, err := p.Borrow(true); err == nil {
		t.Fatal("Expected borrow to fail when eager connect fails")
	}

	// Slot reverted to free: occupancy unchanged, slot 0 claimable again
	if s := p.Stats(); s.InUse != 0 {
		t.Errorf("Expected slot reverted to free, in_use=%d", s.InUse)
	}
	conn, err := p.Borrow(false)
	if err != nil {
		t.Fatalf("Borrow without eager connect failed: %v", err)
	}
	if conn.Index() != 0 {
		t.Errorf("Expected slot 0 to be reusable, got %d", conn.Index())
	}
}

func TestZombieSweepRespectsLiveness(t *testing.T) {
	ff := newFakeFactory()
	p := New(testConfig(0, 5), ff.factory)

	var conns []Conn
	for i := 0; i < 3; i++ {
		conn, err := p.Borrow(false)
		if err != nil {
			t.Fatalf("Borrow failed: %v", err)
		}
		conns = append(conns, conn)
	}

	// Alive busy connection: sweep must leave it busy
	p.zombieControl()
	if s := p.Stats(); s.InUse != 3 {
		t.Errorf("Sweep freed live connections: in_use=%d", s.InUse)
	}

	// Dead busy connection: sweep frees exactly it
	ff.conn(2).setZombie(true)
	p.zombieControl()
	if s := p.Stats(); s.InUse != 2 {
		t.Errorf("Expected zombie slot 2 reclaimed, in_use=%d", s.InUse)
	}
	conn, err := p.Borrow(false)
	if err != nil {
		t.Fatalf("Borrow after sweep failed: %v", err)
	}
	if conn.Index() != 2 {
		t.Errorf("Expected reclaimed slot 2, got %d", conn.Index())
	}
}

func TestExhaustionTriggersSweep(t *testing.T) {
	ff := newFakeFactory()
	p := New(testConfig(0, 2), ff.factory)

	for i := 0; i < 2; i++ {
		if _, err := p.Borrow(false); err != nil {
			t.Fatalf("Borrow failed: %v", err)
		}
	}

	ff.conn(1).setZombie(true)
	if _, err := p.Borrow(false); !stderrors.Is(err, errors.ErrPoolExhausted) {
		t.Fatalf("Expected ErrPoolExhausted, got %v", err)
	}

	// The detached sweep reclaims the zombie slot
	waitFor(t, func() bool { return p.Stats().InUse == 1 },
		"zombie slot was not reclaimed after exhaustion")

	conn, err := p.Borrow(false)
	if err != nil {
		t.Fatalf("Borrow after reclamation failed: %v", err)
	}
	if conn.Index() != 1 {
		t.Errorf("Expected slot 1, got %d", conn.Index())
	}
}

func TestHighOccupancyReturnTriggersSweep(t *testing.T) {
	const capacity = 10
	ff := newFakeFactory()
	p := New(testConfig(0, capacity), ff.factory)

	var conns []Conn
	for i := 0; i < capacity; i++ {
		conn, err := p.Borrow(false)
		if err != nil {
			t.Fatalf("Borrow failed: %v", err)
		}
		conns = append(conns, conn)
	}

	ff.conn(5).setZombie(true)

	// Returning one leaves 9 of 10 busy, at the 90% trigger
	p.Return(conns[0])
	waitFor(t, func() bool { return p.Stats().InUse == 8 },
		"high-occupancy return did not trigger a sweep")
}

func TestShrinkSnipsHeldSlots(t *testing.T) {
	ff := newFakeFactory()
	p := New(testConfig(0, 5), ff.factory)

	var conns []Conn
	for i := 0; i < 5; i++ {
		conn, err := p.Borrow(false)
		if err != nil {
			t.Fatalf("Borrow failed: %v", err)
		}
		conns = append(conns, conn)
	}

	p.Reconfigure(0, 3, testConfig(0, 3).Settings)

	if s := p.Stats(); s.Capacity != 3 {
		t.Errorf("Expected capacity 3 after shrink, got %d", s.Capacity)
	}
	// Every surviving borrow is still accounted for
	if s := p.Stats(); s.InUse != 3 {
		t.Errorf("Expected 3 surviving busy slots, got %d", s.InUse)
	}

	// Holders of shrunk slots keep valid, snipped handles
	for i := 3; i < 5; i++ {
		if !conns[i].IsSnipped() {
			t.Errorf("Slot %d should be snipped after shrink", i)
		}
	}
	// Surviving slots are untouched
	for i := 0; i < 3; i++ {
		if conns[i].IsSnipped() {
			t.Errorf("Slot %d should not be snipped", i)
		}
	}

	// Returning a snipped handle discards it and frees no live slot
	p.Return(conns[4])
	if !ff.conn(4).isClosed() {
		t.Error("Snipped connection should be closed on return")
	}
	if s := p.Stats(); s.InUse != 3 {
		t.Errorf("Returning a snipped handle changed occupancy: %d", s.InUse)
	}
	if _, err := p.Borrow(false); !stderrors.Is(err, errors.ErrPoolExhausted) {
		t.Errorf("Expected exhausted pool after snipped return, got %v", err)
	}

	// A freed surviving slot becomes borrowable again; never a snipped index
	p.Return(conns[1])
	conn, err := p.Borrow(false)
	if err != nil {
		t.Fatalf("Borrow after return failed: %v", err)
	}
	if conn.Index() != 1 {
		t.Errorf("Expected slot 1, got %d", conn.Index())
	}
}

func TestGrowMakesNewSlotsBorrowable(t *testing.T) {
	ff := newFakeFactory()
	p := New(testConfig(0, 2), ff.factory)

	for i := 0; i < 2; i++ {
		if _, err := p.Borrow(false); err != nil {
			t.Fatalf("Borrow failed: %v", err)
		}
	}

	newSettings := testConfig(0, 4).Settings
	newSettings.Host = "replacement.example.com"
	p.Reconfigure(0, 4, newSettings)

	if s := p.Stats(); s.Capacity != 4 || s.Free != 2 {
		t.Errorf("Unexpected stats after grow: %+v", s)
	}

	conn, err := p.Borrow(false)
	if err != nil {
		t.Fatalf("Borrow after grow failed: %v", err)
	}
	if conn.Index() != 2 {
		t.Errorf("Expected first grown slot 2, got %d", conn.Index())
	}

	// Grown slots were created with the new backend parameters
	if got := ff.conn(3).settings.Host; got != "replacement.example.com" {
		t.Errorf("Grown slot has stale settings host: %s", got)
	}
}

func TestReconfigureRetargetsSurvivors(t *testing.T) {
	ff := newFakeFactory()
	p := New(testConfig(2, 3), ff.factory)

	before0 := ff.conn(0).connectCount()

	newSettings := testConfig(2, 3).Settings
	newSettings.Host = "replacement.example.com"
	p.Reconfigure(2, 3, newSettings)

	// Every surviving slot is reconfigured in place
	for i := 0; i < 3; i++ {
		c := ff.conn(i)
		c.mu.Lock()
		host := c.settings.Host
		configures := c.configures
		c.mu.Unlock()
		if host != "replacement.example.com" {
			t.Errorf("Slot %d not retargeted: %s", i, host)
		}
		if configures != 1 {
			t.Errorf("Slot %d: expected 1 configure, got %d", i, configures)
		}
	}

	// Warm-start slots are connected by both the survivor pass and the
	// final warm-start pass
	if got := ff.conn(0).connectCount() - before0; got != 2 {
		t.Errorf("Slot 0: expected idempotent double connect, got %d", got)
	}
	if got := ff.conn(2).connectCount(); got != 0 {
		t.Errorf("Slot 2 is past warm start, expected no connect, got %d", got)
	}
}

func TestReconfigureRunsZombieSweepFirst(t *testing.T) {
	ff := newFakeFactory()
	p := New(testConfig(0, 3), ff.factory)

	if _, err := p.Borrow(false); err != nil {
		t.Fatalf("Borrow failed: %v", err)
	}
	ff.conn(0).setZombie(true)

	p.Reconfigure(0, 3, testConfig(0, 3).Settings)

	if s := p.Stats(); s.InUse != 0 {
		t.Errorf("Reconfigure should have reclaimed the zombie slot, in_use=%d", s.InUse)
	}
}

func TestCloseReleasesConnections(t *testing.T) {
	ff := newFakeFactory()
	p := New(testConfig(0, 3), ff.factory)

	if err := p.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	for i := 0; i < 3; i++ {
		if !ff.conn(i).isClosed() {
			t.Errorf("Slot %d not closed on pool teardown", i)
		}
	}

	if _, err := p.Borrow(false); !stderrors.Is(err, errors.ErrPoolClosed) {
		t.Errorf("Expected ErrPoolClosed, got %v", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("Second close should be nil, got %v", err)
	}
}

func TestWarmStartConnectFailureIsNotFatal(t *testing.T) {
	ff := newFakeFactory()
	failing := func(idx int, s directory.Settings) Conn {
		c := ff.factory(idx, s).(*fakeConn)
		c.connectErr = stderrors.New("backend down")
		return c
	}

	p := New(testConfig(2, 3), failing)

	// Construction completed; slots are claimable despite the failures
	conn, err := p.Borrow(false)
	if err != nil {
		t.Fatalf("Borrow failed: %v", err)
	}
	if conn.Index() != 0 {
		t.Errorf("Expected slot 0, got %d", conn.Index())
	}
}
