// Package services holds the error taxonomy and context plumbing shared by the
// capability clients (speech, llm, embed) and the workflow layer.
package services
