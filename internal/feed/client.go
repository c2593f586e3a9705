package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// ErrFetchFailed is the single failure kind for a poll. Network, status and
// decode errors all wrap it.
var ErrFetchFailed = errors.New("feed: fetch failed")

// maxBodyBytes bounds how much of an /events response is read.
const maxBodyBytes = 4 << 20

// Fetcher retrieves the current event list.
type Fetcher interface {
	FetchEvents(ctx context.Context) ([]string, error)
}

// Client fetches the event list from the webhook server's /events endpoint.
type Client struct {
	url  string
	http *http.Client
}

// NewClient creates a client for url. Each request is bounded by timeout.
func NewClient(url string, timeout time.Duration) *Client {
	tr := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 60 * time.Second}).DialContext,
		MaxIdleConns:        4,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}
	return &Client{
		url:  url,
		http: &http.Client{Timeout: timeout, Transport: tr},
	}
}

// URL returns the endpoint this client polls.
func (c *Client) URL() string {
	return c.url
}

// FetchEvents issues GET url and decodes a JSON array of strings.
// Any non-2xx status or other body shape is reported as ErrFetchFailed.
func (c *Client) FetchEvents(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrFetchFailed, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, fmt.Errorf("%w: unexpected status %s", ErrFetchFailed, resp.Status)
	}

	events, err := decodeEvents(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	return events, nil
}

// decodeEvents accepts only a JSON array whose elements are all strings.
// A null body is rejected so a misbehaving server cannot silently clear the list.
func decodeEvents(r io.Reader) ([]string, error) {
	dec := json.NewDecoder(r)

	var raw []json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode body: %w", err)
	}
	if raw == nil {
		return nil, errors.New("decode body: expected array, got null")
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("decode body: trailing data after array")
	}

	events := make([]string, 0, len(raw))
	for i, item := range raw {
		var s string
		if bytes.Equal(bytes.TrimSpace(item), []byte("null")) {
			return nil, fmt.Errorf("decode body: element %d is null", i)
		}
		if err := json.Unmarshal(item, &s); err != nil {
			return nil, fmt.Errorf("decode body: element %d is not a string", i)
		}
		events = append(events, s)
	}
	return events, nil
}
