// Package queue persists transcription jobs in SQLite and tracks their
// lifecycle from enqueued through processing to completed or failed.
package queue
