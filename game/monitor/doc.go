// Package monitor drives the periodic liveness and reconnect-window sweeps.
//
// Every tick first probes all sessions, expiring those that missed too many
// probes, then forfeits disconnected room slots whose grace period has
// elapsed. Expiry latency is therefore bounded by the tick interval rather
// than exact.
package monitor
