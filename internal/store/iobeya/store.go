package iobeya

import (
	"context"
	"strings"

	"github.com/plansync/plansync/internal/debug"
	"github.com/plansync/plansync/internal/store"
	"github.com/plansync/plansync/internal/tag"
	"github.com/plansync/plansync/internal/types"
)

// Card placement for newly created cards: a staggered walk across the
// board's intake band, wrapping to a new row at the workspace edge so new
// cards never stack on top of each other within a run.
const (
	placeStartX    = 20.0
	placeStartY    = 1656.0
	placeStepX     = 420.0
	placeStepY     = 402.0
	workspaceWidth = 6187.0

	cardWidth  = 380.0
	cardHeight = 300.0

	// cardColor is the template color iObeya assigns to planning cards.
	cardColor = 10141941

	hypothesisKind = "hypothesis"
	acceptanceKind = "acceptance"
)

// kindEntityTypes maps item kinds to the board's card templates. Entity
// types distinguish templates within the shared BoardCardDTO class.
var kindEntityTypes = map[types.ItemKind]string{
	types.KindFeature:    "FeatureCard",
	types.KindRisk:       "RiskCard",
	types.KindDependency: "DependencyCard",
	types.KindObjective:  "ObjectiveCard",
	types.KindIssue:      "IssueCard",
}

// Store is the iObeya-backed Board. Cards are matched to planning items
// by the bracketed tag in their title prop.
type Store struct {
	client      *Client
	boardID     string
	roomID      string
	containerID string

	// entityTypes are the card templates treated as planning items;
	// cards of other templates on the same board are ignored.
	entityTypes map[string]bool

	// nextX, nextY track grid placement for cards created this run.
	nextX, nextY float64
}

var _ store.Store = (*Store)(nil)

func init() {
	store.Register("iobeya", func() store.Store { return &Store{} })
}

func (s *Store) Name() string          { return "iobeya" }
func (s *Store) DisplayName() string   { return "iObeya" }
func (s *Store) Role() types.StoreRole { return types.RoleBoard }
func (s *Store) Close() error          { return nil }

func (s *Store) Init(ctx context.Context, cfg *store.Config) error {
	baseURL, err := cfg.GetRequired("url")
	if err != nil {
		return err
	}
	token, err := cfg.GetRequired("token")
	if err != nil {
		return err
	}
	s.boardID, err = cfg.GetRequired("board_id")
	if err != nil {
		return err
	}
	s.roomID = cfg.Get("room_id")
	s.containerID = cfg.GetDefault("container_id", s.boardID)
	s.entityTypes = parseEntityTypes(cfg.Get("entity_types"))
	s.client = NewClient(strings.TrimRight(baseURL, "/"), token)
	return nil
}

// parseEntityTypes splits a comma-separated template list; empty input
// admits every kind's template.
func parseEntityTypes(v string) map[string]bool {
	out := make(map[string]bool)
	if v == "" {
		for _, et := range kindEntityTypes {
			out[et] = true
		}
		return out
	}
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out[part] = true
		}
	}
	return out
}

func (s *Store) Validate() error {
	if s.client == nil || s.boardID == "" {
		return &store.ErrNotInitialized{Store: s.Name()}
	}
	return nil
}

// SetClient injects a preconfigured client and board, bypassing Init.
// Used by tests.
func (s *Store) SetClient(c *Client, boardID string) {
	s.client = c
	s.boardID = boardID
	s.containerID = boardID
	s.entityTypes = parseEntityTypes("")
}

func (s *Store) FetchItems(ctx context.Context, scope types.Scope) ([]*types.SyncItem, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	cards, err := s.client.BoardCards(ctx, s.boardID)
	if err != nil {
		return nil, &store.TransportError{Store: s.Name(), Op: "board details", Err: err}
	}

	var items []*types.SyncItem
	for _, card := range cards {
		if !s.entityTypes[card.EntityType] {
			continue
		}
		parsed := tag.Parse(card.Props.Title)
		if parsed.Kind == "" {
			debug.Logf("iobeya: skipping untagged card %s: %q", card.ID, card.Props.Title)
			continue
		}
		// Bare-tagged cards carry no iteration yet; they stay visible to
		// scoped runs so the reconciler can adopt them into the scope.
		if scope.Iteration > 0 && parsed.Iteration > 0 && parsed.Iteration != scope.Iteration {
			continue
		}
		it := &types.SyncItem{
			Kind:           parsed.Kind,
			Iteration:      parsed.Iteration,
			Sequence:       parsed.Sequence,
			Label:          parsed.Label,
			Commitment:     parsed.Commitment,
			Description:    card.Props.Description,
			SourceStore:    types.RoleBoard,
			SourceNativeID: card.ID,
		}
		var hypotheses, acceptance []string
		for _, cl := range card.Checklist {
			switch cl.Kind {
			case hypothesisKind:
				hypotheses = append(hypotheses, cl.Label)
			case acceptanceKind:
				acceptance = append(acceptance, cl.Label)
			}
		}
		it.Hypotheses = strings.Join(hypotheses, "\n")
		it.AcceptanceCriteria = strings.Join(acceptance, "\n")
		items = append(items, it)
	}
	return items, nil
}

func (s *Store) CreateItem(ctx context.Context, item *types.SyncItem) (string, error) {
	if err := s.Validate(); err != nil {
		return "", err
	}
	title := tag.Title(tag.ForItem(item), item.Label)
	x, y := s.nextPosition()

	card := CardDTO{
		Class:      cardClass,
		BoardID:    s.boardID,
		RoomID:     s.roomID,
		Name:       title,
		EntityType: kindEntityTypes[item.Kind],
		X:          x,
		Y:          y,
		Width:      cardWidth,
		Height:     cardHeight,
		ZOrder:     10,
		Color:      cardColor,
		FontFamily: "arial",
		Container: &EntityReferenceDTO{
			Class: entityRefClass,
			ID:    s.containerID,
			Type:  containerType,
		},
		Props: CardProps{
			Title:       title,
			Description: item.Description,
			WSJF:        &WSJFProps{},
		},
		Checklist: checklistLines(item),
	}

	id, err := s.client.CreateCard(ctx, card)
	if err != nil {
		return "", &store.TransportError{Store: s.Name(), Op: "create card", Err: err}
	}
	return id, nil
}

func checklistLines(item *types.SyncItem) []ChecklistItemDTO {
	var out []ChecklistItemDTO
	appendLines := func(kind, text string) {
		for _, line := range strings.Split(text, "\n") {
			if line = strings.TrimSpace(line); line != "" {
				out = append(out, ChecklistItemDTO{
					Class: checklistItemClass,
					Kind:  kind,
					Label: line,
				})
			}
		}
	}
	appendLines(hypothesisKind, item.Hypotheses)
	appendLines(acceptanceKind, item.AcceptanceCriteria)
	return out
}

func (s *Store) nextPosition() (x, y float64) {
	if s.nextX == 0 && s.nextY == 0 {
		s.nextX, s.nextY = placeStartX, placeStartY
	}
	x, y = s.nextX, s.nextY
	s.nextX += placeStepX
	if s.nextX+cardWidth > workspaceWidth {
		s.nextX = placeStartX
		s.nextY += placeStepY
	}
	return x, y
}

func (s *Store) UpdateTitle(ctx context.Context, nativeID, newTitle string) error {
	if err := s.Validate(); err != nil {
		return err
	}
	card := CardDTO{
		Class:   cardClass,
		ID:      nativeID,
		BoardID: s.boardID,
		Name:    newTitle,
		Props:   CardProps{Title: newTitle},
	}
	if err := s.client.UpdateCard(ctx, card); err != nil {
		return &store.TransportError{Store: s.Name(), Op: "update card", Err: err}
	}
	return nil
}
