// Package hostapi is the outbound client for a session host's HTTP API.
// Every call may fail; callers treat failures as non-fatal.
package hostapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/hatcher/sessionhub/pkg/httpx"
	"github.com/hatcher/sessionhub/wire"
)

// MessageWithParts is a message record as returned by the host's message
// listing, parts included.
type MessageWithParts struct {
	Info  wire.MessageInfo `json:"info"`
	Parts []wire.Part      `json:"parts"`
}

type Client struct {
	http *httpx.Client
}

func NewClient(baseURL string) *Client {
	return &Client{http: httpx.NewDefaultClient(baseURL)}
}

func NewClientWithTimeout(baseURL string, timeout time.Duration) *Client {
	return &Client{http: httpx.NewClient(baseURL, timeout)}
}

func (c *Client) ListSessions(ctx context.Context) ([]wire.SessionInfo, error) {
	var out []wire.SessionInfo
	err := c.http.DoJSON(ctx, &httpx.RequestOption{
		Method: http.MethodGet,
		Path:   "/session",
	}, &out)
	return out, err
}

func (c *Client) ListMessages(ctx context.Context, sessionID string) ([]MessageWithParts, error) {
	var out []MessageWithParts
	err := c.http.DoJSON(ctx, &httpx.RequestOption{
		Method: http.MethodGet,
		Path:   fmt.Sprintf("/session/%s/message", url.PathEscape(sessionID)),
	}, &out)
	return out, err
}

func (c *Client) CreateSession(ctx context.Context, title string) (wire.SessionInfo, error) {
	var out wire.SessionInfo
	err := c.http.DoJSON(ctx, &httpx.RequestOption{
		Method: http.MethodPost,
		Path:   "/session",
		Body:   map[string]string{"title": title},
	}, &out)
	return out, err
}

func (c *Client) DeleteSession(ctx context.Context, sessionID string) error {
	return c.http.DoJSON(ctx, &httpx.RequestOption{
		Method: http.MethodDelete,
		Path:   fmt.Sprintf("/session/%s", url.PathEscape(sessionID)),
	}, nil)
}

// CompactSession asks the host to summarize the session's history into a
// smaller context. Completion arrives later as a session.compacted event.
func (c *Client) CompactSession(ctx context.Context, sessionID string) error {
	return c.http.DoJSON(ctx, &httpx.RequestOption{
		Method: http.MethodPost,
		Path:   fmt.Sprintf("/session/%s/summarize", url.PathEscape(sessionID)),
	}, nil)
}

// RespondPermission answers a pending permission request.
func (c *Client) RespondPermission(ctx context.Context, sessionID, permissionID, response string) error {
	return c.http.DoJSON(ctx, &httpx.RequestOption{
		Method: http.MethodPost,
		Path: fmt.Sprintf("/session/%s/permissions/%s",
			url.PathEscape(sessionID), url.PathEscape(permissionID)),
		Body: map[string]string{"response": response},
	}, nil)
}

// ToolInstructions fetches display instructions for a running tool.
// Best-effort; callers swallow failures.
func (c *Client) ToolInstructions(ctx context.Context, tool string) (string, error) {
	var out struct {
		Instructions string `json:"instructions"`
	}
	err := c.http.DoJSON(ctx, &httpx.RequestOption{
		Method: http.MethodGet,
		Path:   fmt.Sprintf("/instructions/%s", url.PathEscape(tool)),
	}, &out)
	return out.Instructions, err
}

// HydrateSessions fetches message history for several sessions in
// parallel. Results are keyed by session id; one failing session fails
// the batch.
func (c *Client) HydrateSessions(ctx context.Context, sessionIDs []string) (map[string][]MessageWithParts, error) {
	results := make([]([]MessageWithParts), len(sessionIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, id := range sessionIDs {
		g.Go(func() error {
			msgs, err := c.ListMessages(gctx, id)
			if err != nil {
				return errors.Wrapf(err, "hydrate session %s", id)
			}
			results[i] = msgs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	out := make(map[string][]MessageWithParts, len(sessionIDs))
	for i, id := range sessionIDs {
		out[id] = results[i]
	}
	return out, nil
}

// OpenEventStream opens the host's server-push event stream. The caller
// owns the returned body and must close it; there is no read timeout so
// the stream can stay open indefinitely.
func (c *Client) OpenEventStream(ctx context.Context) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.http.BaseURL+"/event", nil)
	if err != nil {
		return nil, errors.Wrap(err, "build event stream request")
	}
	req.Header.Set("Accept", "text/event-stream")

	// a fresh client without the JSON call timeout
	streamClient := &http.Client{Transport: c.http.Client.Transport}
	resp, err := streamClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "open event stream")
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, errors.Errorf("open event stream: unexpected status %d", resp.StatusCode)
	}
	return resp.Body, nil
}
