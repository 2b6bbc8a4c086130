// Package ids generates prefixed identifiers for transcriptions and
// their chunks.
package ids

import (
	"crypto/rand"
)

const (
	transcriptPrefix = "trs_"
	chunkPrefix      = "trnchk_"

	alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ_abcdefghijklmnopqrstuvwxyz-"
	idLength = 21
)

// NewTranscriptID returns a fresh transcription identifier.
func NewTranscriptID() string {
	return transcriptPrefix + randomID()
}

// NewChunkID returns a fresh chunk identifier.
func NewChunkID() string {
	return chunkPrefix + randomID()
}

func randomID() string {
	buf := make([]byte, idLength)
	if _, err := rand.Read(buf); err != nil {
		panic("ids: crypto/rand unavailable: " + err.Error())
	}
	out := make([]byte, idLength)
	for i, b := range buf {
		// 64-character alphabet, masking keeps the distribution uniform.
		out[i] = alphabet[b&63]
	}
	return string(out)
}
