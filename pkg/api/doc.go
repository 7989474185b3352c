// Package api provides the HTTP surface of the dirauth daemon: the
// authentication endpoint, pool statistics and online reconfiguration,
// the websocket stats stream, health, and the audit queries.
package api
