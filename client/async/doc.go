// Package async tracks requests that were fired without waiting for their
// result.
//
// A [Ledger] owns every [Handle] from the moment it is started until it is
// drained. [Ledger.Drain] blocks on each handle in registration order, so
// results come back in dispatch order regardless of which exchange
// finished first:
//
//	l := async.New[[]byte](0)
//	l.Start(ctx, fetchA)
//	l.Start(ctx, fetchB)
//	for _, e := range l.Drain() { // [A, B]
//		...
//	}
//
// A failing handle only affects its own entry.
package async
