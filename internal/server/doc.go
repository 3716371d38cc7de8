// Package server implements the real-time presence and fan-out server.
//
// The Hub accepts WebSocket connections and owns their read and write pumps.
// Inbound events are decoded by the Router, which consults the room registry
// to decide who receives the outbound event. The Presence tracker binds a
// connection to its user's personal room on setup and detaches it from every
// room when the transport closes.
package server
