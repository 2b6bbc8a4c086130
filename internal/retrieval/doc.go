// Package retrieval answers context queries over stored transcriptions:
// semantic search for the best-matching chunk and neighbor windows of
// surrounding chunks.
package retrieval
