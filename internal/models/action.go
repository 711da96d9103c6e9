package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ActionKind discriminates the Clue | Guess | Pass union.
type ActionKind string

const (
	ActionClue  ActionKind = "clue"
	ActionGuess ActionKind = "guess"
	ActionPass  ActionKind = "pass"
)

// Clue is a spymaster's one-word hint plus target count.
type Clue struct {
	Word  string `json:"word"`
	Count int    `json:"count"`

	// Reasoning optionally records what an automated spymaster was thinking.
	Reasoning string `json:"reasoning,omitempty"`
}

// Guess is an operative's attempt to reveal one board card.
type Guess struct {
	CardIndex int `json:"cardIndex"`
}

// Action is the tagged union of the three legal moves. Exactly one payload
// pointer is set, matching Kind; Pass carries no payload.
type Action struct {
	Kind  ActionKind
	Clue  *Clue
	Guess *Guess
}

// NewClueAction wraps a clue payload.
func NewClueAction(word string, count int) Action {
	return Action{Kind: ActionClue, Clue: &Clue{Word: word, Count: count}}
}

// NewGuessAction wraps a guess payload.
func NewGuessAction(cardIndex int) Action {
	return Action{Kind: ActionGuess, Guess: &Guess{CardIndex: cardIndex}}
}

// NewPassAction wraps the empty pass payload.
func NewPassAction() Action {
	return Action{Kind: ActionPass}
}

// actionEnvelope is the flat wire/storage form of an Action.
type actionEnvelope struct {
	Type      ActionKind `json:"type"`
	Word      string     `json:"word,omitempty"`
	Count     *int       `json:"count,omitempty"`
	Reasoning string     `json:"reasoning,omitempty"`
	CardIndex *int       `json:"cardIndex,omitempty"`
}

// MarshalJSON encodes the union with a "type" discriminator field.
func (a Action) MarshalJSON() ([]byte, error) {
	env := actionEnvelope{Type: a.Kind}
	switch a.Kind {
	case ActionClue:
		if a.Clue == nil {
			return nil, fmt.Errorf("clue action missing payload")
		}
		env.Word = a.Clue.Word
		env.Count = &a.Clue.Count
		env.Reasoning = a.Clue.Reasoning
	case ActionGuess:
		if a.Guess == nil {
			return nil, fmt.Errorf("guess action missing payload")
		}
		env.CardIndex = &a.Guess.CardIndex
	case ActionPass:
	default:
		return nil, fmt.Errorf("unknown action kind %q", a.Kind)
	}
	return json.Marshal(env)
}

// UnmarshalJSON decodes the discriminated form back into the union.
func (a *Action) UnmarshalJSON(data []byte) error {
	var env actionEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	switch env.Type {
	case ActionClue:
		count := 0
		if env.Count != nil {
			count = *env.Count
		}
		*a = Action{Kind: ActionClue, Clue: &Clue{Word: env.Word, Count: count, Reasoning: env.Reasoning}}
	case ActionGuess:
		idx := 0
		if env.CardIndex != nil {
			idx = *env.CardIndex
		}
		*a = Action{Kind: ActionGuess, Guess: &Guess{CardIndex: idx}}
	case ActionPass:
		*a = Action{Kind: ActionPass}
	default:
		return fmt.Errorf("unknown action kind %q", env.Type)
	}
	return nil
}

// GameAction is one append-only history entry: who did what, when. Entries
// are never mutated or deleted; the history doubles as policy context.
type GameAction struct {
	ID        int64     `json:"id,omitempty"`
	GameID    uuid.UUID `json:"gameId"`
	PlayerID  uuid.UUID `json:"playerId"`
	Team      Team      `json:"team"`
	Action    Action    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
}
