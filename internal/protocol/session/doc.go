// Package session replays a recorded TCPB conversation to a single client.
//
// Ownership boundary:
// - the per-connection state machine (await, match, respond)
// - expected and response cursors
// - per-operation deadlines and orderly stream shutdown
// - client polling backoff
//
// A session ends in StateDone only when every expected client message has been
// received and matched in order. Any mismatch, timeout, decode failure or
// premature close ends it in StateFailed.
package session
