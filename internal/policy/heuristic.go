package policy

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/jason-s-yu/codenames/internal/models"
)

// HeuristicPolicy is the built-in non-LLM policy. The spymaster side emits
// the empty fallback clue, which grants the operative exactly one guess; the
// operative side picks a random unrevealed card, or passes when
// AlwaysPassOnBonusGuess applies. Games driven entirely by this policy
// always terminate because every turn reveals a card.
type HeuristicPolicy struct {
	opts models.PolicyOptions

	mu  sync.Mutex
	rng *rand.Rand
}

var _ ActionPolicy = (*HeuristicPolicy)(nil)

func NewHeuristicPolicy(opts *models.PolicyOptions) *HeuristicPolicy {
	p := &HeuristicPolicy{rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
	if opts != nil {
		p.opts = *opts
	}
	return p
}

func (p *HeuristicPolicy) TakeAction(ctx context.Context, state *models.GameState, self *models.Player, history []models.GameAction) (models.Action, error) {
	if err := ctx.Err(); err != nil {
		return models.Action{}, err
	}
	switch self.Role {
	case models.RoleSpymaster:
		return models.NewClueAction("", 0), nil
	case models.RoleOperative:
		return p.operativeMove(state), nil
	default:
		return models.Action{}, fmt.Errorf("player %s has unknown role %q", self.ID, self.Role)
	}
}

func (p *HeuristicPolicy) operativeMove(state *models.GameState) models.Action {
	clue := state.CurrentClue
	if clue == nil {
		return models.NewPassAction()
	}
	if p.opts.AlwaysPassOnBonusGuess && clue.Word != "" {
		usedGuesses := clue.Count + 1 - state.RemainingGuesses
		if usedGuesses >= clue.Count {
			return models.NewPassAction()
		}
	}

	var unrevealed []int
	for i, card := range state.Cards {
		if !card.Revealed {
			unrevealed = append(unrevealed, i)
		}
	}
	if len(unrevealed) == 0 {
		return models.NewPassAction()
	}

	p.mu.Lock()
	idx := unrevealed[p.rng.Intn(len(unrevealed))]
	p.mu.Unlock()
	return models.NewGuessAction(idx)
}
