package orchestrator

import (
	"github.com/google/uuid"

	"github.com/jason-s-yu/codenames/internal/models"
)

// EventSink receives fire-and-forget notifications about game progress,
// typically fanned out to websocket subscribers. Implementations must not
// block; the orchestrator calls these while holding no locks but on the hot
// path of move execution.
type EventSink interface {
	OnGameStateUpdate(gameID uuid.UUID, g *models.Game)
	OnAIThinking(gameID, playerID uuid.UUID, name string)
	OnAIMoveComplete(gameID, playerID uuid.UUID, action models.Action)
	OnGameEnded(gameID uuid.UUID, winner models.Team)
	OnGameError(gameID uuid.UUID, message string)
}

// NopSink discards all notifications.
type NopSink struct{}

var _ EventSink = NopSink{}

func (NopSink) OnGameStateUpdate(uuid.UUID, *models.Game)            {}
func (NopSink) OnAIThinking(uuid.UUID, uuid.UUID, string)            {}
func (NopSink) OnAIMoveComplete(uuid.UUID, uuid.UUID, models.Action) {}
func (NopSink) OnGameEnded(uuid.UUID, models.Team)                   {}
func (NopSink) OnGameError(uuid.UUID, string)                        {}
