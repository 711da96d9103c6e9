package game

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/jason-s-yu/codenames/internal/models"
)

// RuleCode classifies expected rule violations. These are normal game flow
// triggered routinely by both humans and faulty policies, not exceptions.
type RuleCode string

const (
	CodeUnknownPlayer RuleCode = "unknown_player"
	CodeNotYourTurn   RuleCode = "not_your_turn"
	CodeWrongPhase    RuleCode = "wrong_phase"
	CodeWrongRole     RuleCode = "wrong_role"
	CodeInvalidClue   RuleCode = "invalid_clue"
	CodeInvalidGuess  RuleCode = "invalid_guess"
	CodeUnknownAction RuleCode = "unknown_action"
)

// RuleError is a typed, expected validation failure. The game state is
// untouched whenever one is returned.
type RuleError struct {
	Code    RuleCode
	Message string
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Result is the discriminated outcome of every public engine call.
type Result struct {
	Success  bool
	Error    *RuleError
	GameOver bool
	State    *models.GameState
}

func failure(code RuleCode, format string, args ...interface{}) Result {
	return Result{Error: &RuleError{Code: code, Message: fmt.Sprintf(format, args...)}}
}

// Engine owns one game's rules: it validates and applies clue/guess/pass
// actions against a GameState. It is not safe for concurrent use; the store
// runs it inside a per-game transaction.
type Engine struct {
	gameID  uuid.UUID
	state   *models.GameState
	players []*models.Player
	dict    Dictionary

	actions []models.GameAction
	events  []models.GameEvent
	now     func() time.Time
}

// NewEngine wraps an existing state snapshot. dict may be nil (permissive
// clue words).
func NewEngine(gameID uuid.UUID, state *models.GameState, players []*models.Player, dict Dictionary) *Engine {
	return &Engine{
		gameID:  gameID,
		state:   state,
		players: players,
		dict:    dict,
		now:     time.Now,
	}
}

// State returns a copy of the current snapshot.
func (e *Engine) State() *models.GameState {
	return e.state.Clone()
}

// Pending drains the actions and events accumulated by applied calls. The
// caller persists them in the same transaction as the state write.
func (e *Engine) Pending() ([]models.GameAction, []models.GameEvent) {
	actions, events := e.actions, e.events
	e.actions, e.events = nil, nil
	return actions, events
}

// CurrentMover resolves which seat must act next: the current team's
// spymaster while a clue is due, its operative while guessing, nobody once
// the game is over.
func CurrentMover(state *models.GameState, players []*models.Player) *models.Player {
	var role models.PlayerRole
	switch state.CurrentPhase {
	case models.PhaseGivingClue:
		role = models.RoleSpymaster
	case models.PhaseGuessing:
		role = models.RoleOperative
	default:
		return nil
	}
	for _, p := range players {
		if p.Team == state.CurrentTeam && p.Role == role {
			return p
		}
	}
	return nil
}

// CurrentPlayer is CurrentMover over the engine's own state.
func (e *Engine) CurrentPlayer() *models.Player {
	return CurrentMover(e.state, e.players)
}

func (e *Engine) playerByID(id uuid.UUID) *models.Player {
	for _, p := range e.players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// TakeAction dispatches on the action union. Policy output goes through here
// and is validated exactly like a client-submitted action.
func (e *Engine) TakeAction(playerID uuid.UUID, action models.Action) Result {
	switch action.Kind {
	case models.ActionClue:
		if action.Clue == nil {
			return failure(CodeInvalidClue, "clue action has no payload")
		}
		return e.GiveClue(playerID, action.Clue.Word, action.Clue.Count)
	case models.ActionGuess:
		if action.Guess == nil {
			return failure(CodeInvalidGuess, "guess action has no payload")
		}
		return e.MakeGuess(playerID, action.Guess.CardIndex)
	case models.ActionPass:
		return e.PassTurn(playerID)
	default:
		return failure(CodeUnknownAction, "unknown action kind %q", action.Kind)
	}
}

// GiveClue validates and applies a spymaster clue. An empty word with count
// zero is accepted as the deliberate-failure signal from automated actors;
// the phase still advances with a single guess available.
func (e *Engine) GiveClue(playerID uuid.UUID, word string, count int) Result {
	player := e.playerByID(playerID)
	if player == nil {
		return failure(CodeUnknownPlayer, "player %s not found", playerID)
	}
	if player.Role != models.RoleSpymaster {
		return failure(CodeWrongRole, "only spymasters can give clues")
	}
	if player.Team != e.state.CurrentTeam {
		return failure(CodeNotYourTurn, "not your turn")
	}
	if e.state.CurrentPhase != models.PhaseGivingClue {
		return failure(CodeWrongPhase, "not in clue-giving phase")
	}

	normalized := strings.ToLower(strings.TrimSpace(word))
	if !(normalized == "" && count == 0) {
		if err := e.validateClue(normalized, count); err != nil {
			e.recordEvent(models.GameEvent{
				PlayerID: &player.ID,
				Team:     player.Team,
				Kind:     models.EventClueRejected,
				Detail:   err.Message,
			})
			return Result{Error: err}
		}
	}

	e.state.CurrentClue = &models.Clue{Word: normalized, Count: count}
	e.state.CurrentPhase = models.PhaseGuessing
	e.state.RemainingGuesses = count + 1 // the standard bonus guess
	e.recordAction(player, models.Action{Kind: models.ActionClue, Clue: &models.Clue{Word: normalized, Count: count}})

	return Result{Success: true, State: e.State()}
}

func (e *Engine) validateClue(normalized string, count int) *RuleError {
	if normalized == "" {
		return &RuleError{Code: CodeInvalidClue, Message: "clue word cannot be empty"}
	}
	if count < 0 || count > 9 {
		return &RuleError{Code: CodeInvalidClue, Message: "count must be between 0 and 9"}
	}
	if strings.ContainsFunc(normalized, unicode.IsSpace) {
		return &RuleError{Code: CodeInvalidClue, Message: "clue must be a single word"}
	}
	if e.dict != nil && !e.dict.Contains(normalized) {
		return &RuleError{Code: CodeInvalidClue, Message: fmt.Sprintf("%q is not a dictionary word", normalized)}
	}
	for _, card := range e.state.Cards {
		if card.Revealed {
			continue
		}
		boardWord := strings.ToLower(card.Word)
		if normalized == boardWord || strings.Contains(normalized, boardWord) || strings.Contains(boardWord, normalized) {
			return &RuleError{Code: CodeInvalidClue, Message: fmt.Sprintf("clue overlaps board word %q", card.Word)}
		}
	}
	return nil
}

// MakeGuess validates and applies an operative guess. Outcomes are evaluated
// in order: assassin, own agent, neutral, enemy agent. Win conditions are
// checked immediately after each counter decrement.
func (e *Engine) MakeGuess(playerID uuid.UUID, cardIndex int) Result {
	player := e.playerByID(playerID)
	if player == nil {
		return failure(CodeUnknownPlayer, "player %s not found", playerID)
	}
	if player.Role != models.RoleOperative {
		return failure(CodeWrongRole, "only operatives can make guesses")
	}
	if player.Team != e.state.CurrentTeam {
		return failure(CodeNotYourTurn, "not your turn")
	}
	if e.state.CurrentPhase != models.PhaseGuessing {
		return failure(CodeWrongPhase, "not in guessing phase")
	}
	if cardIndex < 0 || cardIndex >= models.BoardSize {
		return failure(CodeInvalidGuess, "card index %d out of range", cardIndex)
	}
	card := &e.state.Cards[cardIndex]
	if card.Revealed {
		return failure(CodeInvalidGuess, "card %q is already revealed", card.Word)
	}

	card.Revealed = true
	e.recordAction(player, models.NewGuessAction(cardIndex))

	team := player.Team
	switch {
	case card.Role == models.CardAssassin:
		e.declareWinner(team.Opponent())
		e.recordRoundEnd(player, models.ReasonHitAssassin)
		e.recordGameEnd(player)
		return Result{Success: true, GameOver: true, State: e.State()}

	case card.Role == team.Role():
		e.decrementAgents(team)
		if e.state.AgentsRemaining(team) == 0 {
			e.declareWinner(team)
			e.recordRoundEnd(player, models.ReasonVictory)
			e.recordGameEnd(player)
			return Result{Success: true, GameOver: true, State: e.State()}
		}
		e.state.RemainingGuesses--
		if e.state.RemainingGuesses <= 0 {
			e.endTurn()
			e.recordRoundEnd(player, models.ReasonOutOfGuess)
		}
		return Result{Success: true, State: e.State()}

	case card.Role == models.CardNeutral:
		e.endTurn()
		e.recordRoundEnd(player, models.ReasonHitNeutral)
		return Result{Success: true, State: e.State()}

	default: // enemy agent
		enemy := team.Opponent()
		e.decrementAgents(enemy)
		if e.state.AgentsRemaining(enemy) == 0 {
			e.declareWinner(enemy)
			e.recordRoundEnd(player, models.ReasonHitEnemy)
			e.recordGameEnd(player)
			return Result{Success: true, GameOver: true, State: e.State()}
		}
		e.endTurn()
		e.recordRoundEnd(player, models.ReasonHitEnemy)
		return Result{Success: true, State: e.State()}
	}
}

// PassTurn voluntarily ends the guessing round. Passing during the
// clue-giving phase is illegal: only the spymaster acts then.
func (e *Engine) PassTurn(playerID uuid.UUID) Result {
	player := e.playerByID(playerID)
	if player == nil {
		return failure(CodeUnknownPlayer, "player %s not found", playerID)
	}
	if player.Team != e.state.CurrentTeam {
		return failure(CodeNotYourTurn, "not your turn")
	}
	if e.state.CurrentPhase != models.PhaseGuessing {
		return failure(CodeWrongPhase, "can only pass during the guessing phase")
	}

	e.recordAction(player, models.NewPassAction())
	e.endTurn()
	e.recordRoundEnd(player, models.ReasonPassed)
	return Result{Success: true, State: e.State()}
}

func (e *Engine) endTurn() {
	e.state.CurrentTeam = e.state.CurrentTeam.Opponent()
	e.state.CurrentPhase = models.PhaseGivingClue
	e.state.CurrentClue = nil
	e.state.RemainingGuesses = 0
}

func (e *Engine) declareWinner(winner models.Team) {
	e.state.Winner = winner
	e.state.CurrentPhase = models.PhaseGameOver
	e.state.CurrentClue = nil
	e.state.RemainingGuesses = 0
}

func (e *Engine) decrementAgents(t models.Team) {
	if t == models.TeamRed {
		e.state.RedAgentsRemaining--
	} else {
		e.state.BlueAgentsRemaining--
	}
}

func (e *Engine) recordAction(player *models.Player, action models.Action) {
	e.actions = append(e.actions, models.GameAction{
		GameID:    e.gameID,
		PlayerID:  player.ID,
		Team:      player.Team,
		Action:    action,
		Timestamp: e.now(),
	})
}

func (e *Engine) recordEvent(ev models.GameEvent) {
	ev.GameID = e.gameID
	ev.Timestamp = e.now()
	e.events = append(e.events, ev)
}

func (e *Engine) recordRoundEnd(player *models.Player, reason models.RoundEndReason) {
	e.recordEvent(models.GameEvent{
		PlayerID: &player.ID,
		Team:     player.Team,
		Kind:     models.EventGuessingRoundEnded,
		Reason:   reason,
	})
}

func (e *Engine) recordGameEnd(player *models.Player) {
	e.recordEvent(models.GameEvent{
		PlayerID: &player.ID,
		Team:     player.Team,
		Kind:     models.EventGameEnded,
		Detail:   string(e.state.Winner),
	})
}
