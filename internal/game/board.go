package game

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/jason-s-yu/codenames/internal/models"
)

// RandomStartingTeam flips the coin that decides who opens the game (and
// therefore who gets the ninth agent).
func RandomStartingTeam() models.Team {
	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	if r.Intn(2) == 0 {
		return models.TeamRed
	}
	return models.TeamBlue
}

// GenerateBoard assigns 25 words from the pool to the 25 positions and the
// fixed role multiset {9 starting-team, 8 other, 7 neutral, 1 assassin}.
// The word draw and the role layout are shuffled with independent sources so
// the joint distribution is uniform over valid boards.
func GenerateBoard(pool []string, startingTeam models.Team) ([]models.Card, error) {
	distinct := make(map[string]struct{}, len(pool))
	var words []string
	for _, w := range pool {
		key := strings.ToLower(strings.TrimSpace(w))
		if key == "" {
			continue
		}
		if _, dup := distinct[key]; dup {
			continue
		}
		distinct[key] = struct{}{}
		words = append(words, strings.TrimSpace(w))
	}
	if len(words) < models.BoardSize {
		return nil, fmt.Errorf("need at least %d distinct words, got %d", models.BoardSize, len(words))
	}

	wordRand := rand.New(rand.NewSource(time.Now().UnixNano()))
	wordRand.Shuffle(len(words), func(i, j int) {
		words[i], words[j] = words[j], words[i]
	})
	boardWords := words[:models.BoardSize]

	roles := make([]models.CardRole, 0, models.BoardSize)
	for i := 0; i < models.StartingTeamAgents; i++ {
		roles = append(roles, startingTeam.Role())
	}
	for i := 0; i < models.SecondTeamAgents; i++ {
		roles = append(roles, startingTeam.Opponent().Role())
	}
	for i := 0; i < models.NeutralCards; i++ {
		roles = append(roles, models.CardNeutral)
	}
	roles = append(roles, models.CardAssassin)

	roleRand := rand.New(rand.NewSource(time.Now().UnixNano() + 1))
	roleRand.Shuffle(len(roles), func(i, j int) {
		roles[i], roles[j] = roles[j], roles[i]
	})

	cards := make([]models.Card, models.BoardSize)
	for i := 0; i < models.BoardSize; i++ {
		cards[i] = models.Card{
			Word:     boardWords[i],
			Role:     roles[i],
			Revealed: false,
			Position: i,
		}
	}
	return cards, nil
}

// NewGameState builds the initial snapshot for a freshly generated board.
func NewGameState(cards []models.Card, startingTeam models.Team) *models.GameState {
	red, blue := models.SecondTeamAgents, models.SecondTeamAgents
	if startingTeam == models.TeamRed {
		red = models.StartingTeamAgents
	} else {
		blue = models.StartingTeamAgents
	}
	return &models.GameState{
		Cards:               cards,
		CurrentTeam:         startingTeam,
		CurrentPhase:        models.PhaseGivingClue,
		CurrentClue:         nil,
		RemainingGuesses:    0,
		StartingTeam:        startingTeam,
		RedAgentsRemaining:  red,
		BlueAgentsRemaining: blue,
	}
}
