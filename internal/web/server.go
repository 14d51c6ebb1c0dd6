// Package web exposes the reconciler over a small JSON HTTP API, for
// dashboards and scheduled runners that do not shell out to the CLI.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/plansync/plansync/internal/journal"
	"github.com/plansync/plansync/internal/reconcile"
	"github.com/plansync/plansync/internal/store"
	"github.com/plansync/plansync/internal/types"
)

// Server hosts the HTTP API. Stores are shared across requests;
// reconciliation runs for the same scope are serialized by the scope lock.
type Server struct {
	ledger  store.Ledger
	board   store.Store
	tracker store.Store
	journal *journal.Journal

	locks      *reconcile.ScopeLock
	httpServer *http.Server
	listener   net.Listener
	addr       string
	mu         sync.RWMutex
}

// NewServer creates an API server over the given stores. The journal may
// be nil, in which case runs are not recorded.
func NewServer(ledger store.Ledger, board, tracker store.Store, jnl *journal.Journal, addr string) *Server {
	return &Server{
		ledger:  ledger,
		board:   board,
		tracker: tracker,
		journal: jnl,
		locks:   reconcile.NewScopeLock(),
		addr:    addr,
	}
}

// Start listens and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	var err error
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.httpServer.Shutdown(shutdownCtx)
	}()

	return s.httpServer.Serve(listener)
}

// Addr returns the bound address once Start has run.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Handler builds the route table. Exposed for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/epics", s.handleEpics)
	mux.HandleFunc("/api/verify", s.handleVerify)
	mux.HandleFunc("/api/reconcile", s.handleReconcile)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleEpics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	epics, err := s.ledger.FetchEpics(r.Context())
	if err != nil {
		s.writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"epics": epics})
}

// scopeRequest is the body of verify and reconcile calls.
type scopeRequest struct {
	Iteration int    `json:"iteration"`
	Epic      string `json:"epic,omitempty"`
	DryRun    bool   `json:"dry_run,omitempty"`
}

// verifyResponse reports store agreement without changing anything.
type verifyResponse struct {
	Scope       types.Scope           `json:"scope"`
	Board       reconcile.DiffSummary `json:"board"`
	Tracker     reconcile.DiffSummary `json:"tracker"`
	InAgreement bool                  `json:"in_agreement"`
	NeedsReview int                   `json:"needs_review"`
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeScope(w, r)
	if !ok {
		return
	}
	scope := types.Scope{Iteration: req.Iteration, EpicID: req.Epic}

	var epic *types.Epic
	if scope.EpicID != "" {
		found, err := s.ledger.FetchEpic(r.Context(), scope.EpicID)
		if err != nil {
			s.writeError(w, http.StatusBadGateway, err.Error())
			return
		}
		if found == nil {
			s.writeError(w, http.StatusNotFound, fmt.Sprintf("epic %q not found", scope.EpicID))
			return
		}
		epic = found
	}

	// The three fetches are independent reads; run them concurrently.
	var ledgerItems, boardItems, trackerItems []*types.SyncItem
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		ledgerItems, err = s.ledger.FetchItems(ctx, scope)
		return err
	})
	g.Go(func() error {
		var err error
		boardItems, err = s.board.FetchItems(ctx, scope)
		return err
	})
	g.Go(func() error {
		var err error
		trackerItems, err = s.tracker.FetchItems(ctx, scope)
		return err
	})
	if err := g.Wait(); err != nil {
		s.writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	boardSummary := reconcile.Summarize(reconcile.Diff(ledgerItems, boardItems, nil, epic))
	trackerSummary := reconcile.Summarize(reconcile.Diff(ledgerItems, trackerItems, reconcile.DefaultTrackerKinds, epic))

	s.writeJSON(w, http.StatusOK, verifyResponse{
		Scope:   scope,
		Board:   boardSummary,
		Tracker: trackerSummary,
		InAgreement: boardSummary.Create == 0 && boardSummary.NotPresent == 0 &&
			trackerSummary.Create == 0 && trackerSummary.NotPresent == 0,
		NeedsReview: boardSummary.Create + boardSummary.NotPresent +
			trackerSummary.Create + trackerSummary.NotPresent,
	})
}

// reconcileResponse is the wire form of a run result.
type reconcileResponse struct {
	Scope    types.Scope         `json:"scope"`
	DryRun   bool                `json:"dry_run"`
	Created  int                 `json:"created"`
	Stats    types.RunStats      `json:"stats"`
	Failures []types.ItemFailure `json:"failures,omitempty"`
	Messages []string            `json:"messages"`
	RunID    int64               `json:"run_id,omitempty"`
}

func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeScope(w, r)
	if !ok {
		return
	}
	scope := types.Scope{Iteration: req.Iteration, EpicID: req.Epic}

	release := s.locks.Acquire(scope)
	defer release()

	var messages []string
	engine := &reconcile.Engine{
		Ledger:    s.ledger,
		Board:     s.board,
		Tracker:   s.tracker,
		DryRun:    req.DryRun,
		OnMessage: func(m string) { messages = append(messages, m) },
		OnWarning: func(m string) { messages = append(messages, "warning: "+m) },
	}

	result, err := engine.Run(r.Context(), scope)
	if err != nil {
		var scopeErr *reconcile.ScopeError
		if errors.As(err, &scopeErr) {
			s.writeError(w, http.StatusNotFound, err.Error())
			return
		}
		s.writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	resp := reconcileResponse{
		Scope:    scope,
		DryRun:   req.DryRun,
		Created:  result.CreatedCount,
		Stats:    result.Stats,
		Failures: result.Failures,
		Messages: messages,
	}
	if s.journal != nil && !req.DryRun {
		if id, err := s.journal.Record(r.Context(), scope, result, req.DryRun); err == nil {
			resp.RunID = id
		}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) decodeScope(w http.ResponseWriter, r *http.Request) (scopeRequest, bool) {
	var req scopeRequest
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return req, false
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return req, false
	}
	if req.Iteration < 0 {
		s.writeError(w, http.StatusBadRequest, "iteration must not be negative")
		return req, false
	}
	return req, true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
