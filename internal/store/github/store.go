package github

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/plansync/plansync/internal/debug"
	"github.com/plansync/plansync/internal/store"
	"github.com/plansync/plansync/internal/tag"
	"github.com/plansync/plansync/internal/types"
)

// draftPrefix marks native ids that refer to draft issues rather than
// repository issue numbers.
const draftPrefix = "draft:"

// Store is the GitHub-backed Tracker. The kinds it carries are decided by
// the reconciler's allow-list; the store itself accepts whatever tagged
// issues the project holds.
type Store struct {
	client *Client

	// projectID is the ProjectV2 node id, learned on first fetch and
	// needed to attach newly created issues to the board.
	projectID string
}

var _ store.Store = (*Store)(nil)

func init() {
	store.Register("github", func() store.Store { return &Store{} })
}

func (s *Store) Name() string          { return "github" }
func (s *Store) DisplayName() string   { return "GitHub" }
func (s *Store) Role() types.StoreRole { return types.RoleTracker }
func (s *Store) Close() error          { return nil }

func (s *Store) Init(ctx context.Context, cfg *store.Config) error {
	token, err := cfg.GetRequired("token")
	if err != nil {
		return err
	}
	owner, err := cfg.GetRequired("owner")
	if err != nil {
		return err
	}
	repo, err := cfg.GetRequired("repo")
	if err != nil {
		return err
	}
	numberStr, err := cfg.GetRequired("project_number")
	if err != nil {
		return err
	}
	number, err := strconv.Atoi(numberStr)
	if err != nil {
		return err
	}
	s.client = NewClient(token, owner, repo, number)
	if base := cfg.Get("base_url"); base != "" {
		s.client = s.client.WithBaseURL(base)
	}
	return nil
}

func (s *Store) Validate() error {
	if s.client == nil {
		return &store.ErrNotInitialized{Store: s.Name()}
	}
	return nil
}

// SetClient injects a preconfigured client, bypassing Init. Used by tests.
func (s *Store) SetClient(c *Client) { s.client = c }

func (s *Store) FetchItems(ctx context.Context, scope types.Scope) ([]*types.SyncItem, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	projectItems, projectID, err := s.client.ListProjectItems(ctx)
	if err != nil {
		return nil, &store.TransportError{Store: s.Name(), Op: "list project items", Err: err}
	}
	s.projectID = projectID

	var items []*types.SyncItem
	for _, pi := range projectItems {
		parsed := tag.Parse(pi.Issue.Title)
		if parsed.Kind == "" {
			debug.Logf("github: skipping untagged issue #%d: %q", pi.Issue.Number, pi.Issue.Title)
			continue
		}
		// Bare-tagged issues carry no iteration yet; they stay visible to
		// scoped runs so the reconciler can adopt them into the scope.
		if scope.Iteration > 0 && parsed.Iteration > 0 && parsed.Iteration != scope.Iteration {
			continue
		}
		native := strconv.Itoa(pi.Issue.Number)
		if pi.IsDraft {
			native = draftPrefix + pi.Issue.NodeID
		}
		it := &types.SyncItem{
			Kind:           parsed.Kind,
			Iteration:      parsed.Iteration,
			Sequence:       parsed.Sequence,
			Label:          parsed.Label,
			Commitment:     parsed.Commitment,
			Description:    pi.Issue.Body,
			SourceStore:    types.RoleTracker,
			SourceNativeID: native,
		}
		if ts, err := time.Parse(time.RFC3339, pi.Issue.UpdatedAt); err == nil {
			it.LastModified = &ts
		}
		items = append(items, it)
	}
	return items, nil
}

func (s *Store) CreateItem(ctx context.Context, item *types.SyncItem) (string, error) {
	if err := s.Validate(); err != nil {
		return "", err
	}
	title := tag.Title(tag.ForItem(item), item.Label)
	issue, err := s.client.CreateIssue(ctx, title, item.Description)
	if err != nil {
		return "", &store.TransportError{Store: s.Name(), Op: "create issue", Err: err}
	}
	if s.projectID != "" {
		if err := s.client.AddIssueToProject(ctx, s.projectID, issue.NodeID); err != nil {
			return "", &store.TransportError{Store: s.Name(), Op: "add issue to project", Err: err}
		}
	}
	return strconv.Itoa(issue.Number), nil
}

func (s *Store) UpdateTitle(ctx context.Context, nativeID, newTitle string) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if draftID, ok := strings.CutPrefix(nativeID, draftPrefix); ok {
		if err := s.client.UpdateDraftIssueTitle(ctx, draftID, newTitle); err != nil {
			return &store.TransportError{Store: s.Name(), Op: "update draft title", Err: err}
		}
		return nil
	}
	number, err := strconv.Atoi(nativeID)
	if err != nil {
		return err
	}
	if err := s.client.UpdateIssueTitle(ctx, number, newTitle); err != nil {
		return &store.TransportError{Store: s.Name(), Op: "update issue title", Err: err}
	}
	return nil
}
