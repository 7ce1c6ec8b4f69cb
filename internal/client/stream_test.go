// ABOUTME: Tests for the REST stream client
// ABOUTME: Verifies metadata parsing and chunk fetching against a test server
package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func testServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/tracks/track-1/stream-info", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"trackId": "track-1",
			"codec": "pcm",
			"sampleRate": 44100,
			"channels": 2,
			"bitDepth": 16,
			"duration": 148.57,
			"chunkDuration": 15,
			"chunkInterval": 10,
			"chunkPlayableDuration": 10,
			"overlapDuration": 5,
			"totalChunks": 15
		}`))
	})
	mux.HandleFunc("/api/tracks/track-1/chunks/3", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte{0x01, 0x02, 0x03})
	})

	return httptest.NewServer(mux)
}

func TestStreamInfo(t *testing.T) {
	srv := testServer(t)
	defer srv.Close()

	c := NewStreamClient(srv.URL)
	info, err := c.StreamInfo(context.Background(), "track-1")
	if err != nil {
		t.Fatalf("StreamInfo: %v", err)
	}

	if info.TrackID != "track-1" {
		t.Errorf("TrackID = %q, want track-1", info.TrackID)
	}
	if info.Duration != 148.57 {
		t.Errorf("Duration = %v, want 148.57", info.Duration)
	}
	if info.ChunkInterval != 10 || info.ChunkDuration != 15 {
		t.Errorf("chunk layout = %v/%v, want 10/15", info.ChunkInterval, info.ChunkDuration)
	}
	if info.TotalChunks != 15 {
		t.Errorf("TotalChunks = %d, want 15", info.TotalChunks)
	}
	if info.OverlapDuration != 5 {
		t.Errorf("OverlapDuration = %v, want 5", info.OverlapDuration)
	}
}

func TestChunk(t *testing.T) {
	srv := testServer(t)
	defer srv.Close()

	c := NewStreamClient(srv.URL)
	data, err := c.Chunk(context.Background(), "track-1", 3)
	if err != nil {
		t.Fatalf("Chunk: %v", err)
	}

	if len(data) != 3 || data[0] != 0x01 {
		t.Errorf("unexpected payload: %v", data)
	}
}

func TestChunkNotFound(t *testing.T) {
	srv := testServer(t)
	defer srv.Close()

	c := NewStreamClient(srv.URL)
	if _, err := c.Chunk(context.Background(), "track-1", 99); err == nil {
		t.Error("expected error for missing chunk")
	}
}
