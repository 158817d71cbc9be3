// Package protocol groups the TCPB wire contract.
//
// Ownership boundary:
// - frame: 8-byte big-endian header and payload framing
// - schema: closed message-type registry and message codecs
// - session: trace replay state machine for one client connection
package protocol
