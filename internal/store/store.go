// Package store defines the persistence contract for the game aggregate.
// Two implementations exist: the pgx-backed database.Store used in
// production, and memstore.Store used by tests. Both provide the same
// transactional read-modify-write and compare-and-swap semantics.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/codenames/internal/models"
)

var (
	// ErrNotFound is returned when a game id resolves to nothing.
	ErrNotFound = errors.New("store: game not found")
	// ErrNoPending is returned by OldestPendingGame when no game is marked
	// as needing an automated move.
	ErrNoPending = errors.New("store: no game pending an automated move")
)

// ApplyResult tells the store what to persist after an ApplyFunc ran.
// A nil Game leaves the aggregate untouched (rule violations); Actions and
// Events are appended regardless, in the same transaction.
type ApplyResult struct {
	Game    *models.Game
	Actions []models.GameAction
	Events  []models.GameEvent
}

// ApplyFunc runs inside the game's transaction with the latest committed
// aggregate, its seats, and the full action history. Returning an error
// aborts the transaction.
type ApplyFunc func(g *models.Game, players []*models.Player, history []models.GameAction) (*ApplyResult, error)

// Store is the transactional key/record store backing games.
type Store interface {
	// CreateGame persists a new aggregate and its four seats atomically.
	CreateGame(ctx context.Context, g *models.Game, players []*models.Player) error

	GetGame(ctx context.Context, id uuid.UUID) (*models.Game, error)
	GetPlayers(ctx context.Context, gameID uuid.UUID) ([]*models.Player, error)
	GetActions(ctx context.Context, gameID uuid.UUID) ([]models.GameAction, error)

	// UpdateGame serializes all writers of one game: fn observes the latest
	// committed state and its result commits atomically.
	UpdateGame(ctx context.Context, id uuid.UUID, fn ApplyFunc) (*models.Game, error)

	// SetNeedsAIMove marks the game as awaiting an automated move. Redundant
	// marking is harmless.
	SetNeedsAIMove(ctx context.Context, id uuid.UUID) error

	// OldestPendingGame returns the id of the longest-waiting marked game,
	// or ErrNoPending.
	OldestPendingGame(ctx context.Context) (uuid.UUID, error)

	// ClaimPendingMove atomically flips the claim flag true->false for the
	// given game. It returns false without error when another worker won the
	// race; that is the expected outcome, not a failure.
	ClaimPendingMove(ctx context.Context, id uuid.UUID) (bool, error)

	// StalledGames lists active, unmarked games whose last update is older
	// than the lease window. Used to re-arm games whose claiming worker died
	// between the claim and the move commit.
	StalledGames(ctx context.Context, olderThan time.Duration) ([]uuid.UUID, error)

	ListActiveGames(ctx context.Context) ([]*models.Game, error)
	ArchiveGame(ctx context.Context, id uuid.UUID) error

	// AppendEvents inserts diagnostic events outside a game transaction,
	// such as policy failures the orchestrator observes after a claim.
	AppendEvents(ctx context.Context, events []models.GameEvent) error
}
