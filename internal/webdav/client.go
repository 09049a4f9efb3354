// Package webdav implements the thin WebDAV capability surface used by the
// sync engine: put, exists, mkcol, delete and get. It is not a general
// purpose WebDAV client.
package webdav

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/imroc/req/v3"

	"github.com/davsync/davsync/internal/utils"
	"github.com/davsync/davsync/internal/version"
)

// Options configure the client connection.
type Options struct {
	// BaseURL is the WebDAV endpoint root, e.g.
	// https://dav.example.com/remote.php/dav/files/me
	BaseURL string

	// Username and Password enable HTTP basic auth when both are set.
	Username string
	Password string

	// Timeout applies per request. Zero means no timeout.
	Timeout time.Duration

	// RetryCount is the number of transport-level retries per request.
	RetryCount int

	// Debug enables request dumps.
	Debug bool
}

// Client talks to one WebDAV endpoint.
type Client struct {
	http    *req.Client
	baseURL string
}

// New creates a WebDAV client for the given endpoint.
func New(opts *Options) *Client {
	client := req.C().
		SetUserAgent(version.ShortWithApp()).
		SetTimeout(opts.Timeout).
		SetCommonRetryCount(opts.RetryCount).
		SetCommonRetryBackoffInterval(1*time.Second, 5*time.Second)

	if opts.Username != "" && opts.Password != "" {
		client.SetCommonBasicAuth(opts.Username, opts.Password)
	}
	if opts.Debug {
		client.DevMode()
	}

	return &Client{
		http:    client,
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
	}
}

// urlFor builds the full URL for a remote path, escaping each path segment.
func (c *Client) urlFor(remotePath string) string {
	segments := strings.Split(utils.NormPath(remotePath), "/")
	escaped := make([]string, 0, len(segments))
	for _, s := range segments {
		if s == "" {
			continue
		}
		escaped = append(escaped, url.PathEscape(s))
	}
	return c.baseURL + "/" + strings.Join(escaped, "/")
}

// Put uploads the contents of localPath to remotePath, replacing any existing
// resource. The parent collection must already exist.
func (c *Client) Put(ctx context.Context, remotePath string, localPath string) error {
	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("webdav put %s: %w", remotePath, err)
	}
	defer file.Close()

	// the streamed body cannot be replayed, so the client-level retry
	// policy must not apply here; a failed upload is retried on the next
	// run instead
	resp, err := c.http.R().
		SetContext(ctx).
		SetRetryCount(0).
		SetContentType("application/octet-stream").
		SetBody(file).
		Put(c.urlFor(remotePath))

	return c.checkResponse(resp, err, "put", remotePath)
}

// Exists reports whether a resource exists at remotePath.
func (c *Client) Exists(ctx context.Context, remotePath string) (bool, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		Head(c.urlFor(remotePath))
	if err != nil {
		return false, fmt.Errorf("webdav head %s: %w", remotePath, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	case resp.IsErrorState():
		return false, c.statusError("head", remotePath, resp.StatusCode)
	default:
		return true, nil
	}
}

// Get downloads a resource. Returns found=false without error when the
// resource does not exist.
func (c *Client) Get(ctx context.Context, remotePath string) (data []byte, found bool, err error) {
	resp, err := c.http.R().
		SetContext(ctx).
		Get(c.urlFor(remotePath))
	if err != nil {
		return nil, false, fmt.Errorf("webdav get %s: %w", remotePath, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, false, nil
	case resp.IsErrorState():
		return nil, false, c.statusError("get", remotePath, resp.StatusCode)
	}

	body, err := resp.ToBytes()
	if err != nil {
		return nil, false, fmt.Errorf("webdav get %s: %w", remotePath, err)
	}
	return body, true, nil
}

// MkColAll creates the collection at remoteDir and all missing parents,
// like `mkdir -p`. A collection that already exists is not an error.
func (c *Client) MkColAll(ctx context.Context, remoteDir string) error {
	dir := utils.NormPath(remoteDir)
	if dir == "" {
		return nil
	}

	segments := strings.Split(dir, "/")
	for i := range segments {
		prefix := strings.Join(segments[:i+1], "/")
		if err := c.mkCol(ctx, prefix); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) mkCol(ctx context.Context, remoteDir string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		Send("MKCOL", c.urlFor(remoteDir)+"/")
	if err != nil {
		return fmt.Errorf("webdav mkcol %s: %w", remoteDir, err)
	}

	switch resp.StatusCode {
	case http.StatusCreated, http.StatusOK, http.StatusNoContent:
		return nil
	case http.StatusMethodNotAllowed:
		// collection already exists
		return nil
	default:
		return c.statusError("mkcol", remoteDir, resp.StatusCode)
	}
}

// Delete removes a resource. A missing resource is not an error.
func (c *Client) Delete(ctx context.Context, remotePath string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		Delete(c.urlFor(remotePath))
	if err != nil {
		return fmt.Errorf("webdav delete %s: %w", remotePath, err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.IsErrorState() {
		return c.statusError("delete", remotePath, resp.StatusCode)
	}
	return nil
}

func (c *Client) checkResponse(resp *req.Response, requestErr error, op, remotePath string) error {
	if requestErr != nil {
		return fmt.Errorf("webdav %s %s: %w", op, remotePath, requestErr)
	}
	if resp.IsErrorState() {
		return c.statusError(op, remotePath, resp.StatusCode)
	}
	return nil
}

func (c *Client) statusError(op, remotePath string, status int) error {
	return fmt.Errorf("webdav %s %s: %w: %d %s",
		op, remotePath, ErrRemoteRejected, status, http.StatusText(status))
}
