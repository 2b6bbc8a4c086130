// Package transcriptstore persists finished transcriptions and their
// embedded chunks, and answers similarity and neighbor queries over them.
//
// Two implementations exist: a Postgres store using the pgvector
// extension for production, and an in-memory store backed by chromem-go
// for development and tests.
package transcriptstore
