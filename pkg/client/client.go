package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tendant/scene-validator/pkg/validation"
)

// Client is an HTTP client for the scene validation service
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a new validation client
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
	}
}

// NewWithHTTPClient creates a new validation client with a custom HTTP client
func NewWithHTTPClient(baseURL string, httpClient *http.Client) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
	}
}

// Validate runs a single scene validation and waits for the report
func (c *Client) Validate(ctx context.Context, req validation.ValidateRequest) (*validation.ValidationReport, error) {
	var rep validation.ValidationReport
	if err := c.post(ctx, "/v1/validate", req, http.StatusOK, &rep); err != nil {
		return nil, err
	}
	return &rep, nil
}

// ValidateAsync enqueues a durable validation and returns its run id
func (c *Client) ValidateAsync(ctx context.Context, req validation.ValidateRequest) (*validation.AsyncResponse, error) {
	var resp validation.AsyncResponse
	if err := c.post(ctx, "/v1/validate/async", req, http.StatusAccepted, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RunBatch validates a batch of scenes and waits for all entries
func (c *Client) RunBatch(ctx context.Context, req validation.BatchRequest) (*validation.BatchResult, error) {
	var result validation.BatchResult
	if err := c.post(ctx, "/v1/batch", req, http.StatusOK, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetValidation fetches a persisted report by validation id
func (c *Client) GetValidation(ctx context.Context, validationID string) (*validation.ValidationReport, error) {
	url := fmt.Sprintf("%s/v1/validations/%s", c.baseURL, validationID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var rep validation.ValidationReport
	if err := json.NewDecoder(resp.Body).Decode(&rep); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &rep, nil
}

func (c *Client) post(ctx context.Context, path string, req any, wantStatus int, out any) error {
	// Marshal request
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	// Create HTTP request
	url := fmt.Sprintf("%s%s", c.baseURL, path)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	// Execute request
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	// Check status code
	if resp.StatusCode != wantStatus {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	// Parse response
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
