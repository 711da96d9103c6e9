package models

// Team identifies one of the two sides.
type Team string

const (
	TeamRed  Team = "red"
	TeamBlue Team = "blue"
)

// Opponent returns the other team.
func (t Team) Opponent() Team {
	if t == TeamRed {
		return TeamBlue
	}
	return TeamRed
}

// Role returns the card role owned by this team.
func (t Team) Role() CardRole {
	if t == TeamRed {
		return CardRed
	}
	return CardBlue
}

// CardRole is a board card's hidden identity on the key card.
type CardRole string

const (
	CardRed      CardRole = "red"
	CardBlue     CardRole = "blue"
	CardNeutral  CardRole = "neutral"
	CardAssassin CardRole = "assassin"
)

// Board composition. The starting team owns the extra ninth agent.
const (
	BoardSize          = 25
	StartingTeamAgents = 9
	SecondTeamAgents   = 8
	NeutralCards       = 7
	AssassinCards      = 1
)

// Card is one board position. Role is redacted for non-spymaster viewers
// until Revealed flips.
type Card struct {
	Word     string   `json:"word"`
	Role     CardRole `json:"role,omitempty"`
	Revealed bool     `json:"revealed"`
	Position int      `json:"position"`
}
