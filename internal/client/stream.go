// ABOUTME: REST client for the chunk-serving backend
// ABOUTME: Fetches track stream metadata and chunk payloads by index
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Cadenza-Audio/cadenza-go/pkg/audio"
)

// StreamClient fetches stream metadata and chunk payloads over REST. The
// backend is assumed correct: it delivers encoded segments of chunkDuration
// seconds (shorter for the final chunk) addressed by (trackId, chunkIndex).
type StreamClient struct {
	baseURL string
	client  *http.Client
}

// NewStreamClient creates a client for the backend at baseURL.
func NewStreamClient(baseURL string) *StreamClient {
	return &StreamClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// StreamInfo fetches the per-track streaming metadata.
func (c *StreamClient) StreamInfo(ctx context.Context, trackID string) (audio.StreamInfo, error) {
	u := fmt.Sprintf("%s/api/tracks/%s/stream-info", c.baseURL, url.PathEscape(trackID))

	body, err := c.get(ctx, u)
	if err != nil {
		return audio.StreamInfo{}, fmt.Errorf("fetch stream info: %w", err)
	}

	var info audio.StreamInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return audio.StreamInfo{}, fmt.Errorf("parse stream info: %w", err)
	}
	if info.TrackID == "" {
		info.TrackID = trackID
	}

	return info, nil
}

// Chunk fetches the encoded payload for one chunk index.
func (c *StreamClient) Chunk(ctx context.Context, trackID string, index int) ([]byte, error) {
	u := fmt.Sprintf("%s/api/tracks/%s/chunks/%d", c.baseURL, url.PathEscape(trackID), index)

	body, err := c.get(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("fetch chunk %d: %w", index, err)
	}
	return body, nil
}

// get performs a GET request and returns the response body.
func (c *StreamClient) get(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}
