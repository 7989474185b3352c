package auth

import (
	"fmt"

	"github.com/go-ldap/ldap/v3"
	"golang.org/x/text/unicode/norm"

	"dirauth/pkg/config"
	"dirauth/pkg/directory"
	"dirauth/pkg/errors"
	"dirauth/pkg/logger"
	"dirauth/pkg/pool"
)

// Pool is the slice of the connection pool the authenticator uses.
type Pool interface {
	Borrow(eagerConnect bool) (pool.Conn, error)
	Return(conn pool.Conn)
	Role(group string) (string, bool)
}

// directoryConn is what a borrowed connection must additionally support
// for credential checks. *directory.Conn implements it.
type directoryConn interface {
	SearchUser(baseDN, filter, groupAttr string) (*directory.UserEntry, error)
	VerifyCredentials(userDN, password string) error
}

// Result is a successful authentication outcome.
type Result struct {
	DN    string   `json:"dn"`
	Roles []string `json:"roles"`
}

// Authenticator checks user credentials through the connection pool.
type Authenticator struct {
	pool       Pool
	baseDN     string
	userFilter string
	groupAttr  string
}

// NewAuthenticator creates an Authenticator over the given pool.
func NewAuthenticator(p Pool, cfg config.DirectoryConfig) *Authenticator {
	return &Authenticator{
		pool:       p,
		baseDN:     cfg.BaseDN,
		userFilter: cfg.UserFilter,
		groupAttr:  cfg.GroupAttribute,
	}
}

// Authenticate verifies the user's password and resolves their roles.
// The username is NFC-normalized before DN resolution so canonically
// equal spellings hit the same entry. An empty password is rejected up
// front; it would otherwise request an unauthenticated bind.
func (a *Authenticator) Authenticate(username, password string) (*Result, error) {
	if username == "" || password == "" {
		return nil, errors.ErrAuthFailed
	}
	username = norm.NFC.String(username)

	conn, err := a.pool.Borrow(true)
	if err != nil {
		return nil, err
	}
	defer a.pool.Return(conn)

	dc, ok := conn.(directoryConn)
	if !ok {
		return nil, fmt.Errorf("pooled connection does not support directory operations")
	}

	filter := fmt.Sprintf(a.userFilter, ldap.EscapeFilter(username))
	entry, err := dc.SearchUser(a.baseDN, filter, a.groupAttr)
	if err != nil {
		logger.Get().DebugWith("user resolution failed", "user", username, "error", err)
		return nil, err
	}

	if err := dc.VerifyCredentials(entry.DN, password); err != nil {
		logger.Get().DebugWith("credential check failed", "dn", entry.DN)
		return nil, errors.ErrAuthFailed
	}

	var roles []string
	for _, group := range entry.Groups {
		if role, ok := a.pool.Role(group); ok {
			roles = append(roles, role)
		}
	}

	return &Result{
		DN:    entry.DN,
		Roles: roles,
	}, nil
}
