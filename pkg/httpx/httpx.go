// Package httpx is a thin JSON HTTP client used for all outbound host calls.
package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
)

type Client struct {
	Client  *http.Client
	BaseURL string
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		Client:  &http.Client{Timeout: timeout},
		BaseURL: baseURL,
	}
}

// NewDefaultClient returns a client with a 10 second timeout.
func NewDefaultClient(baseURL string) *Client {
	return NewClient(baseURL, 10*time.Second)
}

type RequestOption struct {
	Method  string
	Path    string
	Query   map[string]string
	Headers map[string]string
	Body    any
}

func (c *Client) buildRequest(ctx context.Context, opt *RequestOption) (*http.Request, error) {
	var body io.Reader
	if opt.Body != nil {
		if raw, ok := opt.Body.([]byte); ok {
			body = bytes.NewReader(raw)
		} else {
			data, err := json.Marshal(opt.Body)
			if err != nil {
				return nil, errors.Wrap(err, "marshal request body")
			}
			body = bytes.NewReader(data)
		}
	}

	reqURL := c.BaseURL + opt.Path
	if len(opt.Query) > 0 {
		params := url.Values{}
		for k, v := range opt.Query {
			params.Add(k, v)
		}
		reqURL = fmt.Sprintf("%s?%s", reqURL, params.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, opt.Method, reqURL, body)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	if opt.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range opt.Headers {
		req.Header.Set(k, v)
	}
	return req, nil
}

// Do executes the request and returns the raw response body. Non-2xx
// statuses are returned as errors.
func (c *Client) Do(ctx context.Context, opt *RequestOption) ([]byte, error) {
	req, err := c.buildRequest(ctx, opt)
	if err != nil {
		return nil, err
	}
	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s", opt.Method, opt.Path)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read response body")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.Errorf("%s %s: unexpected status %d: %s", opt.Method, opt.Path, resp.StatusCode, truncate(data, 256))
	}
	return data, nil
}

// DoJSON executes the request and unmarshals the response body into out.
// A nil out discards the body.
func (c *Client) DoJSON(ctx context.Context, opt *RequestOption, out any) error {
	data, err := c.Do(ctx, opt)
	if err != nil {
		return err
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errors.Wrapf(err, "decode %s response", opt.Path)
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
