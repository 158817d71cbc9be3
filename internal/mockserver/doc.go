// Package mockserver binds a loopback port, accepts exactly one client and
// replays a recorded trace pair to it through a session.Engine.
//
// Start returns as soon as the port is bound so the caller can act as the
// client on the same port. Wait reports the terminal session outcome.
package mockserver
