// Package blobstore abstracts object storage for audio uploads and the
// transcript artifacts the pipeline writes back.
package blobstore
