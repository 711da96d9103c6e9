package policy

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jason-s-yu/codenames/internal/models"
)

func testState(clue *models.Clue, remaining int) *models.GameState {
	cards := make([]models.Card, models.BoardSize)
	for i := range cards {
		cards[i] = models.Card{Word: "w", Position: i, Revealed: i < 5}
	}
	return &models.GameState{
		Cards:            cards,
		CurrentTeam:      models.TeamRed,
		CurrentPhase:     models.PhaseGuessing,
		CurrentClue:      clue,
		RemainingGuesses: remaining,
	}
}

func TestHeuristicSpymasterUsesFallbackClue(t *testing.T) {
	p := NewHeuristicPolicy(nil)
	self := &models.Player{ID: uuid.New(), Role: models.RoleSpymaster, Team: models.TeamRed}

	action, err := p.TakeAction(context.Background(), testState(nil, 0), self, nil)
	require.NoError(t, err)
	require.Equal(t, models.ActionClue, action.Kind)
	assert.Empty(t, action.Clue.Word)
	assert.Zero(t, action.Clue.Count)
}

func TestHeuristicOperativeGuessesUnrevealed(t *testing.T) {
	p := NewHeuristicPolicy(nil)
	self := &models.Player{ID: uuid.New(), Role: models.RoleOperative, Team: models.TeamRed}
	state := testState(&models.Clue{Word: "", Count: 0}, 1)

	for i := 0; i < 20; i++ {
		action, err := p.TakeAction(context.Background(), state, self, nil)
		require.NoError(t, err)
		require.Equal(t, models.ActionGuess, action.Kind)
		assert.False(t, state.Cards[action.Guess.CardIndex].Revealed)
	}
}

func TestHeuristicOperativePassesWithoutClue(t *testing.T) {
	p := NewHeuristicPolicy(nil)
	self := &models.Player{ID: uuid.New(), Role: models.RoleOperative, Team: models.TeamRed}

	action, err := p.TakeAction(context.Background(), testState(nil, 0), self, nil)
	require.NoError(t, err)
	assert.Equal(t, models.ActionPass, action.Kind)
}

func TestHeuristicAlwaysPassOnBonusGuess(t *testing.T) {
	p := NewHeuristicPolicy(&models.PolicyOptions{AlwaysPassOnBonusGuess: true})
	self := &models.Player{ID: uuid.New(), Role: models.RoleOperative, Team: models.TeamRed}

	// Two of two clued cards found, only the bonus guess remains.
	action, err := p.TakeAction(context.Background(), testState(&models.Clue{Word: "ocean", Count: 2}, 1), self, nil)
	require.NoError(t, err)
	assert.Equal(t, models.ActionPass, action.Kind)

	// Clued guesses still outstanding: keep guessing.
	action, err = p.TakeAction(context.Background(), testState(&models.Clue{Word: "ocean", Count: 2}, 3), self, nil)
	require.NoError(t, err)
	assert.Equal(t, models.ActionGuess, action.Kind)
}

func TestRegistryResolvesDefaultAndNamed(t *testing.T) {
	reg := NewRegistry()

	p, err := reg.Resolve(&models.Player{Kind: models.KindAI})
	require.NoError(t, err)
	assert.IsType(t, &HeuristicPolicy{}, p)

	p, err = reg.Resolve(&models.Player{Kind: models.KindAI, PolicyRef: "heuristic"})
	require.NoError(t, err)
	assert.IsType(t, &HeuristicPolicy{}, p)

	_, err = reg.Resolve(&models.Player{Kind: models.KindAI, PolicyRef: "gpt-unknown"})
	require.Error(t, err)
}
