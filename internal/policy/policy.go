// Package policy decides moves for automated players. The orchestrator calls
// into a policy with the full game state; the engine still validates whatever
// comes back, so a buggy policy can never corrupt a game.
package policy

import (
	"context"
	"fmt"
	"sync"

	"github.com/jason-s-yu/codenames/internal/models"
)

// ActionPolicy produces the next move for an automated player. The call may
// block on external services, so it always takes a context and must never be
// invoked while holding a game lock.
type ActionPolicy interface {
	TakeAction(ctx context.Context, state *models.GameState, self *models.Player, history []models.GameAction) (models.Action, error)
}

// Provider builds a policy instance for a player, typically from the
// player's PolicyOptions.
type Provider func(p *models.Player) (ActionPolicy, error)

// Registry maps a player's PolicyRef to a Provider. An empty ref resolves to
// the default provider.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
	def       Provider
}

func NewRegistry() *Registry {
	r := &Registry{providers: make(map[string]Provider)}
	r.def = func(p *models.Player) (ActionPolicy, error) {
		return NewHeuristicPolicy(p.PolicyOptions), nil
	}
	r.Register("heuristic", r.def)
	return r
}

func (r *Registry) Register(ref string, provider Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[ref] = provider
}

// Resolve returns the policy for the given player.
func (r *Registry) Resolve(p *models.Player) (ActionPolicy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p.PolicyRef == "" {
		return r.def(p)
	}
	provider, ok := r.providers[p.PolicyRef]
	if !ok {
		return nil, fmt.Errorf("no policy registered for ref %q", p.PolicyRef)
	}
	return provider(p)
}
