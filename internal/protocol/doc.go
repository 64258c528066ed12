// Package protocol owns the keywire wire contract.
//
// Ownership boundary:
// - record layouts and validated request decoding (layout/)
// - reply framing primitives (frame/)
// - tlv payload primitives (tlv/)
// - required-field reply contract (schema/)
// - session handshake, transport config, and record streaming (session/)
//
// The package root defines the concrete record and reply types the service
// exchanges: fixed-width key lookup records in, framed TLV replies out.
package protocol
