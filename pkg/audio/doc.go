// ABOUTME: Package documentation for audio types
// ABOUTME: Shared formats and sample conversions used across the player

// Package audio defines the stream metadata and PCM sample types shared by
// the decode, feed, and playback packages.
package audio
