package models

// GamePhase is the engine's current state machine phase.
type GamePhase string

const (
	PhaseSetup      GamePhase = "setup"
	PhaseGivingClue GamePhase = "giving-clue"
	PhaseGuessing   GamePhase = "guessing"
	PhaseGameOver   GamePhase = "game-over"
)

// GameState is the authoritative per-game snapshot. All mutation happens
// through the engine inside a storage transaction; everything handed to
// callers is a copy.
//
// Invariants: CurrentPhase == giving-clue iff CurrentClue == nil iff
// RemainingGuesses == 0; Winner != "" implies CurrentPhase == game-over.
type GameState struct {
	Cards               []Card    `json:"cards"`
	CurrentTeam         Team      `json:"currentTeam"`
	CurrentPhase        GamePhase `json:"currentPhase"`
	CurrentClue         *Clue     `json:"currentClue"`
	RemainingGuesses    int       `json:"remainingGuesses"`
	Winner              Team      `json:"winner,omitempty"`
	StartingTeam        Team      `json:"startingTeam"`
	RedAgentsRemaining  int       `json:"redAgentsRemaining"`
	BlueAgentsRemaining int       `json:"blueAgentsRemaining"`
}

// Clone returns a deep copy safe to hand outside the transaction boundary.
func (s *GameState) Clone() *GameState {
	if s == nil {
		return nil
	}
	cp := *s
	cp.Cards = make([]Card, len(s.Cards))
	copy(cp.Cards, s.Cards)
	if s.CurrentClue != nil {
		clue := *s.CurrentClue
		cp.CurrentClue = &clue
	}
	return &cp
}

// AgentsRemaining returns the counter for the given team.
func (s *GameState) AgentsRemaining(t Team) int {
	if t == TeamRed {
		return s.RedAgentsRemaining
	}
	return s.BlueAgentsRemaining
}

// Redacted returns a copy with unrevealed card roles hidden. Spymasters see
// the full key card; everyone else only learns roles as cards flip.
func (s *GameState) Redacted(viewerIsSpymaster bool) *GameState {
	cp := s.Clone()
	if viewerIsSpymaster {
		return cp
	}
	for i := range cp.Cards {
		if !cp.Cards[i].Revealed {
			cp.Cards[i].Role = ""
		}
	}
	return cp
}
