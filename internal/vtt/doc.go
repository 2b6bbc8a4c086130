// Package vtt parses WebVTT subtitle documents into timed cues.
package vtt
