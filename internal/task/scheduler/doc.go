// Package scheduler registers one cron timer per canonical schedule of every
// resolved task and invokes the task when a timer fires.
//
// Registration is synchronous and completes before the first firing. Firings
// run concurrently; a failing invocation is reported and never affects other
// timers or the future firings of its own timer.
package scheduler
