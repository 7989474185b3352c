package directory

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/go-ldap/ldap/v3"

	"dirauth/pkg/errors"
	"dirauth/pkg/logger"
)

// dialURL is swappable so tests can run without a directory server.
var dialURL = ldap.DialURL

// Conn is one logical link to the directory backend. The pool owns it
// exclusively except while it is on loan to a borrower.
type Conn struct {
	idx int

	mu       sync.Mutex
	settings Settings
	conn     *ldap.Conn

	busy    atomic.Bool
	snipped atomic.Bool
}

// NewConn creates an unconnected Conn for the given pool slot.
func NewConn(idx int, s Settings) *Conn {
	return &Conn{
		idx:      idx,
		settings: s,
	}
}

// Index returns the slot index recorded at creation time.
func (c *Conn) Index() int {
	return c.idx
}

// Configure retargets the connection. The new parameters take effect on
// the next Connect; an established session is left alone until then.
func (c *Conn) Configure(s Settings) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.settings = s
}

// Connect establishes (or re-establishes) the backend session and binds
// with the given identity. An existing session is torn down first, so
// connecting an already-connected Conn is safe. The primary host is tried
// before the fallback. The returned string carries the server diagnostic
// for the bind, empty on success.
func (c *Conn) Connect(bindDN, password string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}

	urls := []string{c.settings.URL()}
	if fb := c.settings.FallbackURL(); fb != "" {
		urls = append(urls, fb)
	}

	var lastErr error
	for i, url := range urls {
		host := c.settings.Host
		if i > 0 {
			host = c.settings.FallbackHost
		}

		conn, err := c.dial(url, host)
		if err != nil {
			lastErr = err
			logger.Get().DebugWith("directory dial failed", "url", url, "error", err)
			continue
		}

		if err := conn.Bind(bindDN, password); err != nil {
			conn.Close()
			lastErr = err
			continue
		}

		c.conn = conn
		return "", nil
	}

	if lastErr == nil {
		lastErr = errors.ErrConnectFailed
	}
	return lastErr.Error(), fmt.Errorf("%w: %v", errors.ErrConnectFailed, lastErr)
}

// dial opens the transport for one candidate host, applying SSL or
// StartTLS per the current settings. Caller holds c.mu.
func (c *Conn) dial(url, host string) (*ldap.Conn, error) {
	if c.settings.UseSSL {
		cfg, err := tlsConfig(host)
		if err != nil {
			return nil, err
		}
		return dialURL(url, ldap.DialWithTLSConfig(cfg))
	}

	conn, err := dialURL(url)
	if err != nil {
		return nil, err
	}

	if c.settings.UseTLS {
		cfg, err := tlsConfig(host)
		if err != nil {
			conn.Close()
			return nil, err
		}
		if err := conn.StartTLS(cfg); err != nil {
			conn.Close()
			return nil, err
		}
	}

	return conn, nil
}

// MarkBusy flags the connection as on loan.
func (c *Conn) MarkBusy() {
	c.busy.Store(true)
}

// MarkFree flags the connection as returned.
func (c *Conn) MarkFree() {
	c.busy.Store(false)
}

// IsZombie reports whether the backend session is dead. The pool only
// asks this for slots it believes are busy; a true result means the
// borrower is gone without having returned the handle.
func (c *Conn) IsZombie() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn == nil || c.conn.IsClosing()
}

// MarkSnipped flags the connection as removed from the pool's addressable
// range by a shrink. The current holder keeps using it; on return it is
// discarded instead of recycled.
func (c *Conn) MarkSnipped() {
	c.snipped.Store(true)
}

// IsSnipped reports whether the connection was snipped by a shrink.
func (c *Conn) IsSnipped() bool {
	return c.snipped.Load()
}

// Close tears down the backend session.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// UserEntry is the slice of a directory entry the authenticator needs.
type UserEntry struct {
	DN     string
	Groups []string
}

// SearchUser resolves a user entry below baseDN with the given filter
// (already escaped) and collects the group attribute values.
func (c *Conn) SearchUser(baseDN, filter, groupAttr string) (*UserEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil, errors.ErrNotConnected
	}

	req := ldap.NewSearchRequest(
		baseDN,
		ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, 1, 0, false,
		filter,
		[]string{"dn", groupAttr},
		nil,
	)

	res, err := c.conn.Search(req)
	if err != nil {
		return nil, fmt.Errorf("directory search: %w", err)
	}

	if len(res.Entries) == 0 {
		return nil, errors.ErrUserNotFound
	}

	entry := res.Entries[0]
	return &UserEntry{
		DN:     entry.DN,
		Groups: entry.GetAttributeValues(groupAttr),
	}, nil
}

// VerifyCredentials binds as the user to check the password, then rebinds
// with the pool's service identity so the session is clean for the next
// borrower.
func (c *Conn) VerifyCredentials(userDN, password string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return errors.ErrNotConnected
	}

	if err := c.conn.Bind(userDN, password); err != nil {
		// Session is still usable; restore the service bind regardless.
		if rbErr := c.conn.Bind(c.settings.BindDN, c.settings.BindPassword); rbErr != nil {
			logger.Get().WarnWith("service rebind failed after credential check", "error", rbErr)
		}
		return fmt.Errorf("%w: %v", errors.ErrAuthFailed, err)
	}

	if err := c.conn.Bind(c.settings.BindDN, c.settings.BindPassword); err != nil {
		return fmt.Errorf("service rebind: %w", err)
	}

	return nil
}
