package models

import (
	"time"

	"github.com/google/uuid"
)

// GameStatus is the aggregate lifecycle status.
type GameStatus string

const (
	StatusActive    GameStatus = "active"
	StatusCompleted GameStatus = "completed"
	StatusAbandoned GameStatus = "abandoned"
)

// Game is the aggregate root persisted per match.
//
// NeedsAIMove is the claim flag for the orchestrator's drain loop: it lives
// on the persisted record so that claiming it is a single conditional write,
// valid across processes, not just goroutines.
type Game struct {
	ID          uuid.UUID  `json:"id"`
	Status      GameStatus `json:"status"`
	Archived    bool       `json:"archived"`
	NeedsAIMove bool       `json:"needsAIMove"`
	State       *GameState `json:"gameState"`
	Label       string     `json:"label,omitempty"`
	Winner      Team       `json:"winner,omitempty"`
	StartedAt   time.Time  `json:"startedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// Clone deep-copies the aggregate.
func (g *Game) Clone() *Game {
	if g == nil {
		return nil
	}
	cp := *g
	cp.State = g.State.Clone()
	if g.CompletedAt != nil {
		t := *g.CompletedAt
		cp.CompletedAt = &t
	}
	return &cp
}
