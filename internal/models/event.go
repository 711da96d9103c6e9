package models

import (
	"time"

	"github.com/google/uuid"
)

// GameEventKind classifies diagnostic events.
type GameEventKind string

const (
	EventGuessingRoundEnded GameEventKind = "guessing_round_ended"
	EventClueRejected       GameEventKind = "clue_rejected"
	EventGameEnded          GameEventKind = "game_ended"
	EventGameError          GameEventKind = "game_error"
)

// RoundEndReason says why a guessing round (or the game) ended.
type RoundEndReason string

const (
	ReasonPassed      RoundEndReason = "passed"
	ReasonOutOfGuess  RoundEndReason = "ran_out_of_guesses"
	ReasonHitNeutral  RoundEndReason = "hit_neutral"
	ReasonHitEnemy    RoundEndReason = "hit_enemy"
	ReasonHitAssassin RoundEndReason = "hit_assassin"
	ReasonVictory     RoundEndReason = "victory"
)

// GameEvent is an append-only diagnostic record. Events never influence game
// legality; they exist for the audit trail and analytics.
type GameEvent struct {
	GameID    uuid.UUID      `json:"gameId"`
	PlayerID  *uuid.UUID     `json:"playerId,omitempty"`
	Team      Team           `json:"team,omitempty"`
	Kind      GameEventKind  `json:"kind"`
	Reason    RoundEndReason `json:"reason,omitempty"`
	Detail    string         `json:"detail,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}
