// Package upstream is a client for the search service that stores the
// answer documents and produces the base feature vectors and training rows.
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultTimeout bounds every upstream call.
	DefaultTimeout = 10 * time.Second

	// ServiceName identifies the search service in errors and metrics.
	ServiceName = "retrieve_and_rank"

	maxErrorBody = 4096
)

// UpstreamError reports a non-2xx answer from an upstream HTTP service.
type UpstreamError struct {
	Service    string
	Operation  string
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s %s error (status %d): %s", e.Service, e.Operation, e.StatusCode, e.Body)
}

// NewUpstreamError reads up to a few KB of resp's body into an UpstreamError.
func NewUpstreamError(service, operation string, resp *http.Response) *UpstreamError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &UpstreamError{
		Service:    service,
		Operation:  operation,
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(body)),
	}
}

// Client talks to one collection of the search service.
type Client struct {
	baseURL    string
	clusterID  string
	collection string
	username   string
	password   string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL sets the service base URL.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(u, "/")
	}
}

// WithCredentials sets the basic auth credentials.
func WithCredentials(username, password string) Option {
	return func(c *Client) {
		c.username = username
		c.password = password
	}
}

// WithCollection selects the cluster and collection requests go to.
func WithCollection(clusterID, collection string) Option {
	return func(c *Client) {
		c.clusterID = clusterID
		c.collection = collection
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// NewClient creates a search service client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Select runs a plain search.
func (c *Client) Select(ctx context.Context, params url.Values) (*Response, error) {
	params = withJSON(params)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("select")+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("building select request: %w", err)
	}
	return c.do(req, "select")
}

// FCSelect runs a search that also returns feature vectors and, when
// requested, the training blob.
func (c *Client) FCSelect(ctx context.Context, params url.Values) (*Response, error) {
	params = withJSON(params)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("fcselect"), strings.NewReader(params.Encode()))
	if err != nil {
		return nil, fmt.Errorf("building fcselect request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req, "fcselect")
}

func (c *Client) endpoint(op string) string {
	return fmt.Sprintf("%s/v1/solr_clusters/%s/solr/%s/%s",
		c.baseURL, url.PathEscape(c.clusterID), url.PathEscape(c.collection), op)
}

func (c *Client) do(req *http.Request, op string) (*Response, error) {
	req.Header.Set("Accept", "application/json")
	if c.username != "" || c.password != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, NewUpstreamError(ServiceName, op, resp)
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding %s response: %w", op, err)
	}
	return &out, nil
}

func withJSON(params url.Values) url.Values {
	out := make(url.Values, len(params)+1)
	for k, v := range params {
		out[k] = append([]string(nil), v...)
	}
	out.Set("wt", "json")
	return out
}
