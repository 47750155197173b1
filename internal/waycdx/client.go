package waycdx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-resty/resty/v2"
)

// ErrFatalQuery is returned when the initial CDX streaming GET fails; the
// caller must remove the partial Index File and abort startup (§4.2, §7).
var ErrFatalQuery = errors.New("waycdx: fatal CDX query failure")

// ProgressFunc reports bytes streamed so far to the Index File.
type ProgressFunc func(bytesWritten int64)

// Client issues the single streaming GET that fills the Index File.
type Client struct {
	http *resty.Client
}

// NewClient builds a Client with a generous read timeout; the CDX query is
// not retried on failure (the fatal-abort rule in §4.2 would make retrying
// here pointless) so no backoff wrapper is attached.
func NewClient(timeout time.Duration) *Client {
	c := resty.New().
		SetTimeout(timeout).
		SetDoNotParseResponse(true)
	return &Client{http: c}
}

// FetchIndex streams the CDX query response to indexPath, calling progress
// with the running byte count. On any failure it removes the partial file
// and returns an error wrapping ErrFatalQuery.
func (c *Client) FetchIndex(ctx context.Context, queryURL, indexPath string, progress ProgressFunc) error {
	out, err := os.Create(indexPath)
	if err != nil {
		return fmt.Errorf("%w: create index file: %v", ErrFatalQuery, err)
	}
	defer out.Close()

	resp, err := c.http.R().SetContext(ctx).SetDoNotParseResponse(true).Get(queryURL)
	if err != nil {
		os.Remove(indexPath)
		return fmt.Errorf("%w: %v", ErrFatalQuery, err)
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.StatusCode() >= 400 {
		os.Remove(indexPath)
		return fmt.Errorf("%w: status %d", ErrFatalQuery, resp.StatusCode())
	}

	var written int64
	buf := make([]byte, 64*1024)
	for {
		n, rerr := body.Read(buf)
		if n > 0 {
			if _, werr := out.Write(buf[:n]); werr != nil {
				os.Remove(indexPath)
				return fmt.Errorf("%w: write index file: %v", ErrFatalQuery, werr)
			}
			written += int64(n)
			if progress != nil {
				progress(written)
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			os.Remove(indexPath)
			return fmt.Errorf("%w: read response body: %v", ErrFatalQuery, rerr)
		}
	}
	return nil
}

// IndexExists reports whether an Index File already exists on disk for the
// derived job, in which case it is reused as-is (§4.2).
func IndexExists(indexPath string) bool {
	info, err := os.Stat(indexPath)
	return err == nil && !info.IsDir() && info.Size() > 0
}
