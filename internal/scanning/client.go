package scanning

import (
	"context"
	"log/slog"
	"time"
)

// Client is the extraction service client. It owns the full path from a
// captured data URI to validated Fields and encodes every failure in the
// returned Outcome: network errors, empty responses, malformed JSON, and
// schema violations all collapse to Failed. No retries happen here; the
// caller decides what an empty review form looks like.
type Client struct {
	backend Backend
	now     func() time.Time
}

// NewClient wraps a model backend in the never-fails extraction contract.
func NewClient(backend Backend) *Client {
	return &Client{backend: backend, now: time.Now}
}

// NewClientWithClock is NewClient with an injected clock for testing the
// date fallback.
func NewClientWithClock(backend Backend, now func() time.Time) *Client {
	return &Client{backend: backend, now: now}
}

// Extract sends one captured image to the model. The image arrives as a
// base64 data URI; the scheme prefix is stripped before transmission.
func (c *Client) Extract(ctx context.Context, imageURI string) Outcome {
	data, contentType, err := DecodeDataURI(imageURI)
	if err != nil {
		slog.Warn("Extraction failed", "stage", "decode", "error", err)
		return Failed("decoding captured image: " + err.Error())
	}

	normalized, err := normalizeImage(data, contentType)
	if err != nil {
		slog.Warn("Extraction failed", "stage", "normalize", "content_type", contentType, "error", err)
		return Failed("normalizing captured image: " + err.Error())
	}

	text, err := c.backend.Complete(ctx, normalized)
	if err != nil {
		slog.Warn("Extraction failed", "stage", "model", "error", err)
		return Failed("calling extraction model: " + err.Error())
	}
	if text == "" {
		slog.Warn("Extraction failed", "stage", "model", "error", "empty response")
		return Failed("empty model response")
	}

	fields, err := parseFields(text, c.now())
	if err != nil {
		slog.Warn("Extraction failed", "stage", "parse", "error", err)
		return Failed("parsing model response: " + err.Error())
	}

	return Ok(fields)
}

// Close releases the underlying backend.
func (c *Client) Close() error {
	return c.backend.Close()
}
