// Package directory provides the connection object for the authentication
// directory backend. A Conn wraps one LDAP session (go-ldap/v3) together
// with the pool bookkeeping flags the connection pool relies on: busy,
// snipped, and zombie detection.
//
// Initialize must be called once, before any Conn dials, to load the
// process-wide trust anchors:
//
//	if err := directory.Initialize(cfg.CAPath); err != nil {
//		log.Fatal(err)
//	}
//	conn := directory.NewConn(0, settings)
//	resp, err := conn.Connect(settings.BindDN, settings.BindPassword)
//
// Conns are owned by the pool; callers only ever hold one between a
// successful borrow and the matching return.
package directory
