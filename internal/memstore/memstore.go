// Package memstore is an in-memory store.Store. It exists for tests and
// single-process experiments; the claim flag keeps real CAS semantics under
// a mutex so orchestrator race tests are meaningful.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/codenames/internal/models"
	"github.com/jason-s-yu/codenames/internal/store"
)

type record struct {
	game    *models.Game
	players []*models.Player
	actions []models.GameAction
	events  []models.GameEvent
}

// Store holds every game behind one mutex. Good enough for tests; the
// production path is database.Store.
type Store struct {
	mu     sync.Mutex
	games  map[uuid.UUID]*record
	nextID int64
	now    func() time.Time
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		games: make(map[uuid.UUID]*record),
		now:   time.Now,
	}
}

func (s *Store) CreateGame(ctx context.Context, g *models.Game, players []*models.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]*models.Player, len(players))
	for i, p := range players {
		pc := *p
		cp[i] = &pc
	}
	s.games[g.ID] = &record{game: g.Clone(), players: cp}
	return nil
}

func (s *Store) GetGame(ctx context.Context, id uuid.UUID) (*models.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.games[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return rec.game.Clone(), nil
}

func (s *Store) GetPlayers(ctx context.Context, gameID uuid.UUID) ([]*models.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.games[gameID]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := make([]*models.Player, len(rec.players))
	for i, p := range rec.players {
		pc := *p
		out[i] = &pc
	}
	return out, nil
}

func (s *Store) GetActions(ctx context.Context, gameID uuid.UUID) ([]models.GameAction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.games[gameID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return append([]models.GameAction(nil), rec.actions...), nil
}

// Events returns the diagnostic log for a game. Test helper, not part of
// store.Store.
func (s *Store) Events(gameID uuid.UUID) []models.GameEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.games[gameID]
	if !ok {
		return nil
	}
	return append([]models.GameEvent(nil), rec.events...)
}

func (s *Store) UpdateGame(ctx context.Context, id uuid.UUID, fn store.ApplyFunc) (*models.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.games[id]
	if !ok {
		return nil, store.ErrNotFound
	}

	working := rec.game.Clone()
	history := append([]models.GameAction(nil), rec.actions...)
	res, err := fn(working, rec.players, history)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return rec.game.Clone(), nil
	}
	for _, a := range res.Actions {
		s.nextID++
		a.ID = s.nextID
		rec.actions = append(rec.actions, a)
	}
	rec.events = append(rec.events, res.Events...)
	if res.Game != nil {
		res.Game.UpdatedAt = s.now()
		rec.game = res.Game.Clone()
	}
	return rec.game.Clone(), nil
}

func (s *Store) SetNeedsAIMove(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.games[id]
	if !ok {
		return store.ErrNotFound
	}
	rec.game.NeedsAIMove = true
	return nil
}

func (s *Store) OldestPendingGame(ctx context.Context) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []uuid.UUID
	for id, rec := range s.games {
		if rec.game.NeedsAIMove && rec.game.Status == models.StatusActive && !rec.game.Archived {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return uuid.Nil, store.ErrNoPending
	}
	sort.Slice(ids, func(i, j int) bool {
		return s.games[ids[i]].game.UpdatedAt.Before(s.games[ids[j]].game.UpdatedAt)
	})
	return ids[0], nil
}

func (s *Store) ClaimPendingMove(ctx context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.games[id]
	if !ok {
		return false, store.ErrNotFound
	}
	if !rec.game.NeedsAIMove {
		return false, nil
	}
	rec.game.NeedsAIMove = false
	return true, nil
}

func (s *Store) StalledGames(ctx context.Context, olderThan time.Duration) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-olderThan)
	var ids []uuid.UUID
	for id, rec := range s.games {
		g := rec.game
		if g.Status == models.StatusActive && !g.Archived && !g.NeedsAIMove && g.UpdatedAt.Before(cutoff) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *Store) ListActiveGames(ctx context.Context) ([]*models.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Game
	for _, rec := range s.games {
		if !rec.game.Archived {
			out = append(out, rec.game.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out, nil
}

func (s *Store) ArchiveGame(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.games[id]
	if !ok {
		return store.ErrNotFound
	}
	rec.game.Archived = true
	return nil
}

func (s *Store) AppendEvents(ctx context.Context, events []models.GameEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ev := range events {
		if rec, ok := s.games[ev.GameID]; ok {
			rec.events = append(rec.events, ev)
		}
	}
	return nil
}
