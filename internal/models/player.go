package models

import "github.com/google/uuid"

// PlayerKind distinguishes human seats from policy-driven seats.
type PlayerKind string

const (
	KindHuman PlayerKind = "human"
	KindAI    PlayerKind = "ai"
)

// PlayerRole is the seat's function within its team.
type PlayerRole string

const (
	RoleSpymaster PlayerRole = "spymaster"
	RoleOperative PlayerRole = "operative"
)

// PolicyOptions carries the recognized per-seat settings for automated
// actors. Unrecognized options are not representable on purpose; no dynamic
// property bags.
type PolicyOptions struct {
	Model                  string `json:"model,omitempty"`
	WithReasoning          bool   `json:"withReasoning,omitempty"`
	AlwaysPassOnBonusGuess bool   `json:"alwaysPassOnBonusGuess,omitempty"`
	SystemPrompt           string `json:"systemPrompt,omitempty"`
}

// Player is one of the four seats in a game: one spymaster and one operative
// per team. Seats are created at game init and are immutable afterwards.
type Player struct {
	ID     uuid.UUID  `json:"id"`
	GameID uuid.UUID  `json:"gameId"`
	Name   string     `json:"name"`
	Kind   PlayerKind `json:"kind"`
	Team   Team       `json:"team"`
	Role   PlayerRole `json:"role"`

	// PolicyRef names the ActionPolicy driving this seat; empty for humans.
	PolicyRef     string         `json:"policyRef,omitempty"`
	PolicyOptions *PolicyOptions `json:"policyOptions,omitempty"`
}

// IsAutomated reports whether this seat acts through an ActionPolicy.
func (p *Player) IsAutomated() bool {
	return p.Kind == KindAI
}
