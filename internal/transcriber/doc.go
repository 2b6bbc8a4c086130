// Package transcriber orchestrates one transcription job end to end:
// fetch audio, run speech-to-text, generate summary and title, persist
// artifacts and embedded chunks, and notify the owner.
package transcriber
