package connection

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/yndnr/gridmesh/internal/server/httpserver/handler"
)

// AdminClient queries the admin HTTP endpoints of a node.
type AdminClient struct {
	baseURL string
	client  *http.Client
}

// NewAdminClient creates a client for the admin server at addr
// ("host:port" or a URL).
func NewAdminClient(addr string, timeout time.Duration) *AdminClient {
	base := addr
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return &AdminClient{
		baseURL: strings.TrimRight(base, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// BaseURL returns the admin server URL.
func (c *AdminClient) BaseURL() string {
	return c.baseURL
}

// Health returns the liveness report of the node.
func (c *AdminClient) Health(ctx context.Context) (*handler.HealthStatus, error) {
	var out handler.HealthStatus
	if err := c.get(ctx, "/health", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Ready returns the readiness report. A node that is not ready yields an
// *APIError with status 503.
func (c *AdminClient) Ready(ctx context.Context) (*handler.HealthStatus, error) {
	var out handler.HealthStatus
	if err := c.get(ctx, "/ready", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Members returns the node's member list.
func (c *AdminClient) Members(ctx context.Context) (*handler.MembersResponse, error) {
	var out handler.MembersResponse
	if err := c.get(ctx, "/members", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// APIError is a failed admin request.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("admin request failed with status %d", e.Status)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (c *AdminClient) get(ctx context.Context, path string, data any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "gridmesh-cli")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var envelope struct {
		handler.Response
		Data json.RawMessage `json:"data"`
	}
	decodeErr := json.NewDecoder(resp.Body).Decode(&envelope)

	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode}
		if decodeErr == nil {
			apiErr.Code = envelope.Code
			apiErr.Message = envelope.Message
		}
		return apiErr
	}
	if decodeErr != nil {
		return fmt.Errorf("parse response: %w", decodeErr)
	}
	if len(envelope.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(envelope.Data, data); err != nil {
		return fmt.Errorf("parse response data: %w", err)
	}
	return nil
}
