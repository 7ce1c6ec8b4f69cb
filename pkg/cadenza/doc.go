// ABOUTME: High-level Cadenza library API
// ABOUTME: Provides the Player facade over the streaming and playback internals
// Package cadenza provides a high-level API for chunked audio streaming
// playback from a Cadenza server.
//
// This is the main entry point for most library users. A Player fetches
// per-track stream metadata, feeds fixed-interval chunks through a decoder
// into a sample buffer, and plays them gaplessly with seek, pause, and
// volume control.
//
// Example:
//
//	player, err := cadenza.NewPlayer(cadenza.Config{
//	    ServerURL:  "http://localhost:8930",
//	    PlayerName: "Living Room",
//	})
//	err = player.Load(ctx, "track-42")
//	err = player.Play(ctx)
//	err = player.Seek(ctx, 95.0)
//
// For lower-level control, see the audio and audio/decode packages.
package cadenza
