// Package remote is the HTTP client for the lift-sync server. The server
// treats entity payloads as opaque bytes, which lets the client transparently
// encrypt them end to end when a Cipher is configured.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/marcus/lift/internal/models"
)

// Sentinel errors for common HTTP error classes.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
)

// Cipher seals payloads before upload and opens them after download.
type Cipher interface {
	Seal(plaintext []byte) ([]byte, error)
	Open(ciphertext []byte) ([]byte, error)
}

// Client is an HTTP client for the lift-sync server.
type Client struct {
	BaseURL  string
	APIKey   string
	DeviceID string
	Cipher   Cipher
	HTTP     *http.Client
}

// New creates a new sync client.
func New(baseURL, apiKey, deviceID string) *Client {
	return &Client{
		BaseURL:  baseURL,
		APIKey:   apiKey,
		DeviceID: deviceID,
		HTTP:     &http.Client{Timeout: 30 * time.Second},
	}
}

// HealthResponse is the response from GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
}

// listResponse is the response from GET /v1/entities/{type}.
type listResponse struct {
	IDs []string `json:"ids"`
}

// Health checks server reachability.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	body, err := c.do(ctx, "GET", "/healthz", nil)
	if err != nil {
		return nil, err
	}
	var resp HealthResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal health response: %w", err)
	}
	return &resp, nil
}

// Get fetches one entity payload. Returns ErrNotFound if the entity does
// not exist remotely.
func (c *Client) Get(ctx context.Context, entityType models.EntityType, id string) ([]byte, error) {
	body, err := c.do(ctx, "GET", fmt.Sprintf("/v1/entities/%s/%s", entityType, id), nil)
	if err != nil {
		return nil, err
	}
	if c.Cipher != nil {
		opened, err := c.Cipher.Open(body)
		if err != nil {
			return nil, fmt.Errorf("decrypt %s %s: %w", entityType, id, err)
		}
		return opened, nil
	}
	return body, nil
}

// Put uploads one entity payload, creating or replacing it.
func (c *Client) Put(ctx context.Context, entityType models.EntityType, id string, payload []byte) error {
	if c.Cipher != nil {
		sealed, err := c.Cipher.Seal(payload)
		if err != nil {
			return fmt.Errorf("encrypt %s %s: %w", entityType, id, err)
		}
		payload = sealed
	}
	_, err := c.do(ctx, "PUT", fmt.Sprintf("/v1/entities/%s/%s", entityType, id), payload)
	return err
}

// Delete removes one entity remotely. Deleting an entity that is already
// gone succeeds, so retried deletes stay idempotent.
func (c *Client) Delete(ctx context.Context, entityType models.EntityType, id string) error {
	_, err := c.do(ctx, "DELETE", fmt.Sprintf("/v1/entities/%s/%s", entityType, id), nil)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

// List returns the ids of all remote entities of one type.
func (c *Client) List(ctx context.Context, entityType models.EntityType) ([]string, error) {
	body, err := c.do(ctx, "GET", fmt.Sprintf("/v1/entities/%s", entityType), nil)
	if err != nil {
		return nil, err
	}
	var resp listResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal list response: %w", err)
	}
	return resp.IDs, nil
}

// apiError is the standard error body from the server.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *apiError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Code
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/octet-stream")
	}
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}
	if c.DeviceID != "" {
		req.Header.Set("X-Device-ID", c.DeviceID)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr apiError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Code != "" {
			switch resp.StatusCode {
			case http.StatusUnauthorized:
				return nil, fmt.Errorf("%w: %s", ErrUnauthorized, apiErr.Message)
			case http.StatusForbidden:
				return nil, fmt.Errorf("%w: %s", ErrForbidden, apiErr.Message)
			case http.StatusNotFound:
				return nil, fmt.Errorf("%w: %s", ErrNotFound, apiErr.Message)
			default:
				return nil, &apiErr
			}
		}
		if resp.StatusCode == http.StatusNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}
