// Package grist implements the Ledger store on top of the Grist records API.
package grist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/plansync/plansync/internal/debug"
)

const (
	// DefaultBaseURL is the hosted Grist endpoint.
	DefaultBaseURL = "https://docs.getgrist.com"

	// DefaultTimeout for HTTP requests.
	DefaultTimeout = 30 * time.Second

	maxResponseSize = 20 * 1024 * 1024
)

// Client is a minimal Grist API client scoped to one document.
type Client struct {
	APIKey     string
	DocID      string
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a client for the given document.
func NewClient(apiKey, docID string) *Client {
	return &Client{
		APIKey:  apiKey,
		DocID:   docID,
		BaseURL: DefaultBaseURL,
		HTTPClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
}

// WithBaseURL returns a client pointed at a custom endpoint (self-hosted
// Grist, or a test server).
func (c *Client) WithBaseURL(baseURL string) *Client {
	return &Client{
		APIKey:     c.APIKey,
		DocID:      c.DocID,
		BaseURL:    baseURL,
		HTTPClient: c.HTTPClient,
	}
}

// WithHTTPClient returns a client using a custom HTTP client.
func (c *Client) WithHTTPClient(httpClient *http.Client) *Client {
	return &Client{
		APIKey:     c.APIKey,
		DocID:      c.DocID,
		BaseURL:    c.BaseURL,
		HTTPClient: httpClient,
	}
}

// record is one row of a Grist table. Fields hold the column values keyed
// by column id.
type record struct {
	ID     int                    `json:"id"`
	Fields map[string]interface{} `json:"fields"`
}

type recordsEnvelope struct {
	Records []record `json:"records"`
}

func (c *Client) tableURL(table string, params url.Values) string {
	u := fmt.Sprintf("%s/api/docs/%s/tables/%s/records",
		c.BaseURL, url.PathEscape(c.DocID), url.PathEscape(table))
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return u
}

// doRequest performs one authenticated request with bounded retry on
// transient failures (429 and 5xx).
func (c *Client) doRequest(ctx context.Context, method, urlStr string, body interface{}) ([]byte, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	var respBody []byte
	operation := func() error {
		var reqBody io.Reader
		if payload != nil {
			reqBody = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, urlStr, reqBody)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")

		resp, err := c.HTTPClient.Do(req)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()

		respBody, err = io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
		if err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return nil
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			debug.Logf("grist: retryable status %d from %s", resp.StatusCode, urlStr)
			return fmt.Errorf("grist API returned %d: %s", resp.StatusCode, truncate(respBody))
		default:
			return backoff.Permanent(fmt.Errorf("grist API returned %d: %s", resp.StatusCode, truncate(respBody)))
		}
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}
	return respBody, nil
}

func truncate(b []byte) string {
	const max = 200
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}

// ListRecords fetches all rows of a table.
func (c *Client) ListRecords(ctx context.Context, table string) ([]record, error) {
	body, err := c.doRequest(ctx, http.MethodGet, c.tableURL(table, nil), nil)
	if err != nil {
		return nil, err
	}
	var env recordsEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("failed to parse records from %s: %w", table, err)
	}
	return env.Records, nil
}

// AddRecord inserts one row and returns its row id.
func (c *Client) AddRecord(ctx context.Context, table string, fields map[string]interface{}) (int, error) {
	payload := recordsEnvelope{Records: []record{{Fields: fields}}}
	body, err := c.doRequest(ctx, http.MethodPost, c.tableURL(table, nil), payload)
	if err != nil {
		return 0, err
	}
	var env recordsEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return 0, fmt.Errorf("failed to parse create response: %w", err)
	}
	if len(env.Records) == 0 {
		return 0, fmt.Errorf("grist returned no record for insert into %s", table)
	}
	return env.Records[0].ID, nil
}

// UpdateRecord patches columns of an existing row.
func (c *Client) UpdateRecord(ctx context.Context, table string, id int, fields map[string]interface{}) error {
	payload := recordsEnvelope{Records: []record{{ID: id, Fields: fields}}}
	_, err := c.doRequest(ctx, http.MethodPatch, c.tableURL(table, nil), payload)
	return err
}
