// Package github implements the Tracker store against the GitHub API.
// Items live in a ProjectV2 board; fetch goes through GraphQL, issue
// creation and title updates through REST.
package github

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
	// DefaultAPIEndpoint is the public GitHub REST endpoint.
	DefaultAPIEndpoint = "https://api.github.com"

	// DefaultTimeout for HTTP requests.
	DefaultTimeout = 30 * time.Second

	// pageSize is the GraphQL pagination window for project items.
	pageSize = 100

	maxResponseSize = 50 * 1024 * 1024
)

// Client talks to one repository and one ProjectV2 board.
type Client struct {
	Token         string
	Owner         string
	Repo          string
	ProjectNumber int
	BaseURL       string
	HTTPClient    *http.Client
}

// NewClient creates a client for the given repository and project.
func NewClient(token, owner, repo string, projectNumber int) *Client {
	return &Client{
		Token:         token,
		Owner:         owner,
		Repo:          repo,
		ProjectNumber: projectNumber,
		BaseURL:       DefaultAPIEndpoint,
		HTTPClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
}

// WithBaseURL returns a client pointed at a custom endpoint (GitHub
// Enterprise, or a test server).
func (c *Client) WithBaseURL(baseURL string) *Client {
	out := *c
	out.BaseURL = baseURL
	return &out
}

// WithHTTPClient returns a client using a custom HTTP client.
func (c *Client) WithHTTPClient(httpClient *http.Client) *Client {
	out := *c
	out.HTTPClient = httpClient
	return &out
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
		req.Header.Set("Accept", "application/vnd.github+json")
		req.Header.Set("X-GitHub-Api-Version", "2022-11-28")

		resp, err := c.HTTPClient.Do(req)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()

		respBody, err = io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
		if err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}

		retryable := resp.StatusCode == http.StatusTooManyRequests ||
			resp.StatusCode >= 500 ||
			(resp.StatusCode == http.StatusForbidden && resp.Header.Get("X-RateLimit-Remaining") == "0")
		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return nil
		case retryable:
			debug.Logf("github: retryable status %d from %s", resp.StatusCode, urlStr)
			return fmt.Errorf("GitHub API returned %d", resp.StatusCode)
		default:
			return backoff.Permanent(fmt.Errorf("GitHub API returned %d: %s", resp.StatusCode, clip(respBody)))
		}
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}
	return respBody, nil
}

func clip(b []byte) string {
	const max = 200
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}

// graphql posts a query to the GraphQL endpoint and decodes data into out.
// GraphQL-level errors come back with HTTP 200, so they are checked here.
func (c *Client) graphql(ctx context.Context, query string, variables map[string]interface{}, out interface{}) error {
	body, err := c.doRequest(ctx, http.MethodPost, c.BaseURL+"/graphql", map[string]interface{}{
		"query":     query,
		"variables": variables,
	})
	if err != nil {
		return err
	}
	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("failed to parse GraphQL response: %w", err)
	}
	if len(envelope.Errors) > 0 {
		return fmt.Errorf("GraphQL error: %s", envelope.Errors[0].Message)
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("failed to parse GraphQL data: %w", err)
		}
	}
	return nil
}

// ProjectItem is one ProjectV2 item with its underlying content. Draft
// issues live only on the board and are addressed by their content node id.
type ProjectItem struct {
	ItemID  string
	IsDraft bool
	Issue   Issue
}

// Issue holds the content fields the reconciler needs.
type Issue struct {
	NodeID    string `json:"node_id"`
	Number    int    `json:"number"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	UpdatedAt string `json:"updated_at"`
}

const projectItemsQuery = `
query($owner: String!, $repo: String!, $number: Int!, $first: Int!, $after: String) {
  repository(owner: $owner, name: $repo) {
    projectV2(number: $number) {
      id
      items(first: $first, after: $after) {
        nodes {
          id
          content {
            __typename
            ... on Issue { id number title body updatedAt }
            ... on DraftIssue { id title body updatedAt }
          }
        }
        pageInfo { hasNextPage endCursor }
      }
    }
  }
}`

type projectItemsPage struct {
	Repository struct {
		ProjectV2 struct {
			ID    string `json:"id"`
			Items struct {
				Nodes []struct {
					ID      string `json:"id"`
					Content struct {
						Typename  string `json:"__typename"`
						ID        string `json:"id"`
						Number    int    `json:"number"`
						Title     string `json:"title"`
						Body      string `json:"body"`
						UpdatedAt string `json:"updatedAt"`
					} `json:"content"`
				} `json:"nodes"`
				PageInfo struct {
					HasNextPage bool   `json:"hasNextPage"`
					EndCursor   string `json:"endCursor"`
				} `json:"pageInfo"`
			} `json:"items"`
		} `json:"projectV2"`
	} `json:"repository"`
}

// ListProjectItems walks the project's items through cursor pagination and
// also returns the project's node id for later mutations.
func (c *Client) ListProjectItems(ctx context.Context) (items []ProjectItem, projectID string, err error) {
	var cursor *string
	for {
		vars := map[string]interface{}{
			"owner":  c.Owner,
			"repo":   c.Repo,
			"number": c.ProjectNumber,
			"first":  pageSize,
		}
		if cursor != nil {
			vars["after"] = *cursor
		}
		var page projectItemsPage
		if err := c.graphql(ctx, projectItemsQuery, vars, &page); err != nil {
			return nil, "", err
		}
		project := page.Repository.ProjectV2
		projectID = project.ID
		for _, node := range project.Items.Nodes {
			if node.Content.Title == "" {
				continue // redacted or pull-request content
			}
			items = append(items, ProjectItem{
				ItemID:  node.ID,
				IsDraft: node.Content.Typename == "DraftIssue",
				Issue: Issue{
					NodeID:    node.Content.ID,
					Number:    node.Content.Number,
					Title:     node.Content.Title,
					Body:      node.Content.Body,
					UpdatedAt: node.Content.UpdatedAt,
				},
			})
		}
		if !project.Items.PageInfo.HasNextPage {
			return items, projectID, nil
		}
		end := project.Items.PageInfo.EndCursor
		cursor = &end
	}
}

// CreateIssue opens a repository issue via REST and returns it.
func (c *Client) CreateIssue(ctx context.Context, title, body string) (*Issue, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/issues", c.BaseURL, c.Owner, c.Repo)
	respBody, err := c.doRequest(ctx, http.MethodPost, url, map[string]string{
		"title": title,
		"body":  body,
	})
	if err != nil {
		return nil, err
	}
	var issue Issue
	if err := json.Unmarshal(respBody, &issue); err != nil {
		return nil, fmt.Errorf("failed to parse created issue: %w", err)
	}
	return &issue, nil
}

const addItemMutation = `
mutation($projectId: ID!, $contentId: ID!) {
  addProjectV2ItemById(input: {projectId: $projectId, contentId: $contentId}) {
    item { id }
  }
}`

// AddIssueToProject attaches an existing issue to the project board.
func (c *Client) AddIssueToProject(ctx context.Context, projectID, contentID string) error {
	return c.graphql(ctx, addItemMutation, map[string]interface{}{
		"projectId": projectID,
		"contentId": contentID,
	}, nil)
}

// UpdateIssueTitle retitles an issue via REST.
func (c *Client) UpdateIssueTitle(ctx context.Context, number int, title string) error {
	url := fmt.Sprintf("%s/repos/%s/%s/issues/%d", c.BaseURL, c.Owner, c.Repo, number)
	_, err := c.doRequest(ctx, http.MethodPatch, url, map[string]string{"title": title})
	return err
}

const updateDraftMutation = `
mutation($draftId: ID!, $title: String!) {
  updateProjectV2DraftIssue(input: {draftIssueId: $draftId, title: $title}) {
    draftIssue { id }
  }
}`

// UpdateDraftIssueTitle retitles a draft issue. Drafts have no repository
// issue behind them, so the update goes through the project mutation keyed
// on the draft's content node id.
func (c *Client) UpdateDraftIssueTitle(ctx context.Context, draftID, title string) error {
	return c.graphql(ctx, updateDraftMutation, map[string]interface{}{
		"draftId": draftID,
		"title":   title,
	}, nil)
}
