// Package notifications delivers queue status updates to connected
// dashboard clients over WebSocket, with a bounded replay of recent
// notes for late joiners.
package notifications
