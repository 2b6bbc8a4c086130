// Package daemon wires the long-running process: single-instance lock,
// job queue, workflow manager, capability clients, notification hub,
// and the HTTP API.
package daemon
