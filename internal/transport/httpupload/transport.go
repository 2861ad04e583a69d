package httpupload

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
)

// ChunkField is the multipart field the append endpoint reads.
const ChunkField = "chunk"

// Config controls the HTTP append transport.
type Config struct {
	EndpointBase string
	Client       *http.Client
}

// Transport posts each chunk as multipart/form-data to
// {EndpointBase}/{destinationName}.
type Transport struct {
	base   string
	client *http.Client
}

func New(cfg Config) *Transport {
	client := cfg.Client
	if client == nil {
		client = http.DefaultClient
	}
	return &Transport{
		base:   strings.TrimRight(strings.TrimSpace(cfg.EndpointBase), "/"),
		client: client,
	}
}

// Deliver sends one chunk and succeeds only on a 2xx response.
func (t *Transport) Deliver(ctx context.Context, destinationName string, data []byte) error {
	if t.base == "" {
		return fmt.Errorf("upload endpoint is not configured")
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile(ChunkField, destinationName)
	if err != nil {
		return fmt.Errorf("build chunk form: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return fmt.Errorf("build chunk form: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("build chunk form: %w", err)
	}

	endpoint := t.base + "/" + url.PathEscape(destinationName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("upload chunk to %s: %w", endpoint, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("upload chunk to %s: unexpected status %d", endpoint, resp.StatusCode)
	}
	return nil
}
