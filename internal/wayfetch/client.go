// Package wayfetch is the Download Worker (C7): one kept-alive HTTPS
// connection per worker, the two-level retry structure of §4.5, redirect
// following capped at 5 hops, and collision-safe writes delegated to
// internal/waylayout.
package wayfetch

import (
	"context"
	"fmt"
	"io"

	"github.com/go-resty/resty/v2"
)

const userAgent = "bitdruid-python-wayback-downloader/1.0"

// Client is the per-worker HTTP connection. Each worker owns exactly one;
// Reopen discards it and builds a fresh one after a protocol fault.
type Client struct {
	http *resty.Client
}

// NewClient builds a Client with auto-redirect disabled: the worker walks
// the redirect chain itself per §4.5 step 4.
func NewClient() *Client {
	return &Client{http: newRestyClient()}
}

func newRestyClient() *resty.Client {
	return resty.New().
		SetRedirectPolicy(resty.NoRedirectPolicy()).
		SetHeader("User-Agent", userAgent).
		SetDoNotParseResponse(true)
}

// Reopen closes the underlying connection and opens a fresh one, per the
// protocol-fault recovery rule in §4.5/§7.
func (c *Client) Reopen() {
	c.http.GetClient().CloseIdleConnections()
	c.http = newRestyClient()
}

// Close releases the underlying transport's idle connections.
func (c *Client) Close() error {
	c.http.GetClient().CloseIdleConnections()
	return nil
}

// Get performs a single GET, returning the status, the Location header (if
// any), the Content-Encoding header, and the raw response body.
func (c *Client) Get(ctx context.Context, url string) (status int, location string, contentEncoding string, body io.ReadCloser, err error) {
	resp, err := c.http.R().SetContext(ctx).SetDoNotParseResponse(true).Get(url)
	if err != nil {
		return 0, "", "", nil, fmt.Errorf("wayfetch: GET %s: %w", url, err)
	}
	return resp.StatusCode(), resp.Header().Get("Location"), resp.Header().Get("Content-Encoding"), resp.RawBody(), nil
}
