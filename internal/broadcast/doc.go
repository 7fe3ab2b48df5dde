// Package broadcast implements the client registry that fans framed notifications out to sinks.
//
// Registry guards its sink set with a single mutex held only to copy or mutate membership.
// Broadcast delivers to a point-in-time snapshot outside the lock, so a stalled client never blocks
// registration or delivery to others. Sinks own their bounded queues; a failed Send removes the sink.
package broadcast
