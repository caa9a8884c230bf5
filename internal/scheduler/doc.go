// Package scheduler keeps the snapshot store fresh.
//
// Run is a cancellable loop: wait Interval, fetch, reconcile, publish. A
// failed fetch is recorded in the store stats, the previous snapshot stays
// live and the next attempt waits Cooldown instead. A panic in the fetch path
// is recovered and treated like a failure.
//
// RefreshNow serves user-triggered refreshes. Ticks and manual refreshes go
// through one singleflight key, so at most one fetch is ever in flight and
// concurrent callers share its result.
//
// All timers come from an injected clockwork.Clock; tests drive the loop with
// a fake clock instead of sleeping.
package scheduler
