// Package integration records what each synchronization tick did.
//
// A SyncRun is opened when a product or order tick starts, accumulates
// per-item outcomes while the tick runs and is closed with an overall
// status. Runs are persisted so the status endpoint can report the last
// result of each kind across restarts.
package integration
