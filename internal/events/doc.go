// Package events relays account-change events to an external consumer.
//
// The [Sink] is the seam where a message-queue publisher plugs in; the
// package itself ships a channel sink, a newline-delimited JSON writer and a
// no-op sink. [Dispatcher] decouples the request path from sink latency.
//
// # What this package must NOT do
//
//   - Decide which mutations produce events.
//   - Import goIdentity or any sibling internal package.
package events
