// Package segment turns parsed subtitle cues into sentences and groups
// sentences into chunks sized for embedding and retrieval.
package segment
