// Package server implements the core HTTP and WebSocket functionality of the
// pushgate notification relay.
//
// Clients connect over WebSocket with a signed credential presented at
// handshake time; admitted connections are grouped into per-user rooms for
// multi-device fan-out. A trusted internal caller triggers delivery over the
// /emit-notification endpoint, and the relay pushes the payload to every
// channel the target user currently holds. Delivery is best effort: there is
// no queue, no retry, and a target with no open channels simply receives
// nothing.
//
// The implementation is organized into specialized files for configuration,
// hub management, clients, routing, and HTTP handlers to keep the codebase
// maintainable and testable as the project grows.
package server
