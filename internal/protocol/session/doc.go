// Package session owns keywire client<->server session transport helpers.
//
// Ownership boundary:
// - hello/hello.ack handshake control messages
// - record stream readers and reply frame I/O
// - retry/backoff primitives
// - transport security modes and TLS config builders
package session
