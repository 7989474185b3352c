// Package audit provides persistent storage for authentication attempts
// and pool lifecycle events.
//
// The Store interface has SQLite and MySQL implementations, selected by a
// factory from configuration:
//
//	store, err := audit.NewStore(cfg.Audit)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer store.Close()
//
// The Store interface allows for alternative backends while maintaining
// API compatibility.
package audit
