// Package iobeya implements the Board store against the iObeya REST API.
// Planning items appear as cards on a visual board; the card title carries
// the bracketed tag.
package iobeya

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/plansync/plansync/internal/debug"
)

const (
	// DefaultTimeout for HTTP requests.
	DefaultTimeout = 30 * time.Second

	// cardClass is the DTO discriminator for board cards. Board details
	// responses mix cards with zones, backgrounds, and freeform drawings;
	// only cards are planning items.
	cardClass = "com.iobeya.dto.BoardCardDTO"

	checklistItemClass = "com.iobeya.dto.ChecklistItemDTO"
	entityRefClass     = "com.iobeya.dto.EntityReferenceDTO"
	containerType      = "BlankBoardElementContainer"

	maxResponseSize = 20 * 1024 * 1024
)

// Client is a minimal iObeya API client.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

// NewClient creates a client for the given platform URL.
func NewClient(baseURL, token string) *Client {
	return &Client{
		BaseURL: baseURL,
		Token:   token,
		HTTPClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
}

// WithHTTPClient returns a client using a custom HTTP client.
func (c *Client) WithHTTPClient(httpClient *http.Client) *Client {
	return &Client{
		BaseURL:    c.BaseURL,
		Token:      c.Token,
		HTTPClient: httpClient,
	}
}

// CardDTO is the wire shape of a board card. Board details responses carry
// every element class in the same array; non-card classes decode into the
// same struct and are filtered by Class.
type CardDTO struct {
	Class      string              `json:"@class"`
	ID         string              `json:"id,omitempty"`
	BoardID    string              `json:"boardId,omitempty"`
	RoomID     string              `json:"roomId,omitempty"`
	Name       string              `json:"name,omitempty"`
	SetName    string              `json:"setName,omitempty"`
	EntityType string              `json:"entityType,omitempty"`
	X          float64             `json:"x"`
	Y          float64             `json:"y"`
	Width      float64             `json:"width,omitempty"`
	Height     float64             `json:"height,omitempty"`
	ZOrder     int                 `json:"zOrder,omitempty"`
	IsAnchored bool                `json:"isAnchored"`
	IsLocked   bool                `json:"isLocked"`
	Color      int                 `json:"color,omitempty"`
	FontFamily string              `json:"fontFamily,omitempty"`
	Container  *EntityReferenceDTO `json:"container,omitempty"`
	Props      CardProps           `json:"props"`
	Checklist  []ChecklistItemDTO  `json:"checklist,omitempty"`
	Modified   string              `json:"modificationDate,omitempty"`
}

// CardProps holds the card's editable content. The title shown on the card
// lives here, not on the element itself.
type CardProps struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	WSJF        *WSJFProps `json:"wsjfProps,omitempty"`
}

// WSJFProps is the scoring block FeatureCard templates require even when
// unscored.
type WSJFProps struct {
	BusinessValue   int `json:"businessValue"`
	TimeCriticality int `json:"timeCriticality"`
	RROE            int `json:"rROE"`
	JobSize         int `json:"jobSize"`
	WSJF            int `json:"wsjf"`
}

// EntityReferenceDTO points a card at its board container.
type EntityReferenceDTO struct {
	Class      string `json:"@class"`
	IsReadOnly bool   `json:"isReadOnly"`
	ID         string `json:"id"`
	Type       string `json:"type"`
}

// ChecklistItemDTO is one checklist line on a card. Kind distinguishes
// hypothesis lines from acceptance criteria.
type ChecklistItemDTO struct {
	Class   string `json:"@class"`
	Kind    string `json:"kind"`
	Label   string `json:"label"`
	Checked bool   `json:"checked"`
}

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
		req.Header.Set("Authorization", "Bearer "+c.Token)
		req.Header.Set("Content-Type", "application/json")

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
			debug.Logf("iobeya: retryable status %d from %s", resp.StatusCode, urlStr)
			return fmt.Errorf("iObeya API returned %d", resp.StatusCode)
		default:
			return backoff.Permanent(fmt.Errorf("iObeya API returned %d: %s", resp.StatusCode, firstBytes(respBody)))
		}
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}
	return respBody, nil
}

func firstBytes(b []byte) string {
	const max = 200
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}

// BoardCards fetches the board's elements and returns only its cards.
// The details endpoint answers with a bare JSON array of elements.
func (c *Client) BoardCards(ctx context.Context, boardID string) ([]CardDTO, error) {
	url := fmt.Sprintf("%s/s/j/boards/%s/details", c.BaseURL, boardID)
	body, err := c.doRequest(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	var elements []CardDTO
	if err := json.Unmarshal(body, &elements); err != nil {
		return nil, fmt.Errorf("failed to parse board details: %w", err)
	}
	cards := make([]CardDTO, 0, len(elements))
	for _, el := range elements {
		if el.Class == cardClass {
			cards = append(cards, el)
		}
	}
	return cards, nil
}

// CreateCard posts a new card to the board and returns its element id.
// The API takes a batch of elements; we send one. Depending on server
// version the response echoes either the batch or the single element.
func (c *Client) CreateCard(ctx context.Context, card CardDTO) (string, error) {
	url := fmt.Sprintf("%s/s/j/elements", c.BaseURL)
	body, err := c.doRequest(ctx, http.MethodPost, url, []CardDTO{card})
	if err != nil {
		return "", err
	}
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var created []CardDTO
		if err := json.Unmarshal(trimmed, &created); err != nil {
			return "", fmt.Errorf("failed to parse create response: %w", err)
		}
		if len(created) == 0 {
			return "", fmt.Errorf("iObeya returned no element for created card")
		}
		return created[0].ID, nil
	}
	var created CardDTO
	if err := json.Unmarshal(trimmed, &created); err != nil {
		return "", fmt.Errorf("failed to parse create response: %w", err)
	}
	return created.ID, nil
}

// UpdateCard replaces card fields by id. Only the fields set on the DTO
// are meaningful; the server merges by element id.
func (c *Client) UpdateCard(ctx context.Context, card CardDTO) error {
	url := fmt.Sprintf("%s/s/j/elements", c.BaseURL)
	_, err := c.doRequest(ctx, http.MethodPut, url, []CardDTO{card})
	return err
}
