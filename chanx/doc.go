// Package chanx provides the context-aware channel helpers tempo operators
// use to hand messages between their goroutines.
//
//   - [Send] and [Recv]: send and receive that unblock on cancellation
//     instead of leaking goroutines.
//   - [TrySend]: a send that gives up instead of blocking.
//   - [Slot]: a single-cell, latest-wins relay for producers that must
//     never be backpressured.
package chanx
