// Package scope runs the goroutines behind an operator as one structured
// unit: every task is spawned into a scope, the first task error cancels
// its siblings, panics are captured, and [Scope.Wait] does not return until
// every task has exited.
//
//	sc, sp := scope.New(ctx, scope.WithPanicAsError())
//	sp.Go("producer", produce)
//	sp.Go("selector", selectLoop)
//	err := sc.Wait()
package scope
