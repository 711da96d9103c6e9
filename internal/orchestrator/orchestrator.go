// Package orchestrator coordinates turn flow between human submissions and
// policy-driven seats. Automated moves use a claim-and-execute protocol: a
// persisted per-game flag is claimed with a conditional write, the winning
// worker executes exactly one move, and the committed result may re-arm the
// flag for the next automated mover.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/codenames/internal/game"
	"github.com/jason-s-yu/codenames/internal/models"
	"github.com/jason-s-yu/codenames/internal/policy"
	"github.com/jason-s-yu/codenames/internal/store"
)

// ActivityPublisher feeds the historian's inactivity tracking. Nil disables
// publishing.
type ActivityPublisher interface {
	PublishActivity(ctx context.Context, gameID uuid.UUID, at time.Time) error
}

const (
	defaultMaxDrains    = 100
	defaultClaimBackoff = 50 * time.Millisecond
	defaultPolicyTime   = 2 * time.Minute
)

// Config wires an Orchestrator. Store is required; everything else has a
// working default.
type Config struct {
	Store      store.Store
	Sink       EventSink
	Policies   *policy.Registry
	Dictionary game.Dictionary
	WordPool   []string
	Activity   ActivityPublisher
	Logger     *logrus.Logger

	// MaxConcurrentDrains caps simultaneous drain loops. Excess triggers are
	// dropped, not queued; pending games survive in the store and the next
	// trigger or poll picks them up.
	MaxConcurrentDrains int32
	// ClaimBackoff is slept after losing a claim race before rescanning.
	ClaimBackoff time.Duration
	// PolicyTimeout bounds a single policy invocation.
	PolicyTimeout time.Duration
}

type Orchestrator struct {
	store    store.Store
	sink     EventSink
	policies *policy.Registry
	dict     game.Dictionary
	pool     []string
	activity ActivityPublisher
	log      *logrus.Logger

	maxDrains     int32
	claimBackoff  time.Duration
	policyTimeout time.Duration
	active        atomic.Int32
}

func New(cfg Config) (*Orchestrator, error) {
	if cfg.Store == nil {
		return nil, errors.New("orchestrator: store is required")
	}
	o := &Orchestrator{
		store:         cfg.Store,
		sink:          cfg.Sink,
		policies:      cfg.Policies,
		dict:          cfg.Dictionary,
		pool:          cfg.WordPool,
		activity:      cfg.Activity,
		log:           cfg.Logger,
		maxDrains:     cfg.MaxConcurrentDrains,
		claimBackoff:  cfg.ClaimBackoff,
		policyTimeout: cfg.PolicyTimeout,
	}
	if o.sink == nil {
		o.sink = NopSink{}
	}
	if o.policies == nil {
		o.policies = policy.NewRegistry()
	}
	if o.log == nil {
		o.log = logrus.StandardLogger()
	}
	if o.maxDrains <= 0 {
		o.maxDrains = defaultMaxDrains
	}
	if o.claimBackoff <= 0 {
		o.claimBackoff = defaultClaimBackoff
	}
	if o.policyTimeout <= 0 {
		o.policyTimeout = defaultPolicyTime
	}
	return o, nil
}

// SeatSpec describes one of the four seats at game creation.
type SeatSpec struct {
	Name          string                `json:"name"`
	Kind          models.PlayerKind     `json:"kind"`
	Team          models.Team           `json:"team"`
	Role          models.PlayerRole     `json:"role"`
	PolicyRef     string                `json:"policyRef,omitempty"`
	PolicyOptions *models.PolicyOptions `json:"policyOptions,omitempty"`
}

// CreateGameRequest configures a new match. StartingTeam is optional; empty
// means a coin flip.
type CreateGameRequest struct {
	Label        string      `json:"label,omitempty"`
	StartingTeam models.Team `json:"startingTeam,omitempty"`
	Seats        []SeatSpec  `json:"seats"`
}

// CreateGame validates the four seats, deals a board and persists the new
// aggregate. If the opening spymaster is automated the game is marked and a
// drain is kicked immediately.
func (o *Orchestrator) CreateGame(ctx context.Context, req CreateGameRequest) (*models.Game, []*models.Player, error) {
	if len(req.Seats) != 4 {
		return nil, nil, fmt.Errorf("a game needs exactly 4 seats, got %d", len(req.Seats))
	}
	seen := make(map[string]bool, 4)
	for _, seat := range req.Seats {
		if seat.Team != models.TeamRed && seat.Team != models.TeamBlue {
			return nil, nil, fmt.Errorf("invalid team %q", seat.Team)
		}
		if seat.Role != models.RoleSpymaster && seat.Role != models.RoleOperative {
			return nil, nil, fmt.Errorf("invalid role %q", seat.Role)
		}
		if seat.Kind != models.KindHuman && seat.Kind != models.KindAI {
			return nil, nil, fmt.Errorf("invalid player kind %q", seat.Kind)
		}
		key := string(seat.Team) + "/" + string(seat.Role)
		if seen[key] {
			return nil, nil, fmt.Errorf("duplicate seat %s", key)
		}
		seen[key] = true
	}

	startingTeam := req.StartingTeam
	if startingTeam == "" {
		startingTeam = game.RandomStartingTeam()
	} else if startingTeam != models.TeamRed && startingTeam != models.TeamBlue {
		return nil, nil, fmt.Errorf("invalid starting team %q", startingTeam)
	}

	pool := o.pool
	if len(pool) == 0 {
		var err error
		if pool, err = game.LoadWordPool(""); err != nil {
			return nil, nil, err
		}
	}
	cards, err := game.GenerateBoard(pool, startingTeam)
	if err != nil {
		return nil, nil, err
	}

	gameID := uuid.New()
	players := make([]*models.Player, 0, 4)
	for _, seat := range req.Seats {
		name := seat.Name
		if name == "" {
			name = fmt.Sprintf("%s %s", seat.Team, seat.Role)
		}
		p := &models.Player{
			ID:            uuid.New(),
			GameID:        gameID,
			Name:          name,
			Kind:          seat.Kind,
			Team:          seat.Team,
			Role:          seat.Role,
			PolicyRef:     seat.PolicyRef,
			PolicyOptions: seat.PolicyOptions,
		}
		if p.IsAutomated() {
			// Fail fast on unknown policy refs instead of at first move.
			if _, err := o.policies.Resolve(p); err != nil {
				return nil, nil, err
			}
		}
		players = append(players, p)
	}

	state := game.NewGameState(cards, startingTeam)
	now := time.Now()
	g := &models.Game{
		ID:        gameID,
		Status:    models.StatusActive,
		State:     state,
		Label:     req.Label,
		StartedAt: now,
		UpdatedAt: now,
	}
	if mover := game.CurrentMover(state, players); mover != nil && mover.IsAutomated() {
		g.NeedsAIMove = true
	}

	if err := o.store.CreateGame(ctx, g, players); err != nil {
		return nil, nil, err
	}
	o.log.WithFields(logrus.Fields{
		"game_id":       gameID,
		"starting_team": startingTeam,
		"needs_ai_move": g.NeedsAIMove,
	}).Info("game created")

	if g.NeedsAIMove {
		go o.Drain(context.WithoutCancel(ctx))
	}
	return g, players, nil
}

// TakeAction applies one externally submitted action. The rule verdict comes
// back in the Result; the returned error is reserved for infrastructure
// failures.
func (o *Orchestrator) TakeAction(ctx context.Context, gameID, playerID uuid.UUID, action models.Action) (game.Result, error) {
	res, updated, err := o.applyAction(ctx, gameID, playerID, action)
	if err != nil {
		return game.Result{}, err
	}
	if res.Success {
		o.afterCommit(ctx, updated, res)
		if updated.NeedsAIMove {
			go o.Drain(context.WithoutCancel(ctx))
		}
	}
	return res, nil
}

// applyAction runs the engine inside the game's transaction so validation
// always sees the latest committed state. The aggregate write, the action
// append and the event append commit together; a rule violation commits only
// its events.
func (o *Orchestrator) applyAction(ctx context.Context, gameID, playerID uuid.UUID, action models.Action) (game.Result, *models.Game, error) {
	var res game.Result
	updated, err := o.store.UpdateGame(ctx, gameID, func(g *models.Game, players []*models.Player, _ []models.GameAction) (*store.ApplyResult, error) {
		if g.Status != models.StatusActive {
			res = game.Result{Error: &game.RuleError{
				Code:    game.CodeWrongPhase,
				Message: fmt.Sprintf("game is %s", g.Status),
			}}
			return nil, nil
		}

		eng := game.NewEngine(g.ID, g.State, players, o.dict)
		res = eng.TakeAction(playerID, action)
		actions, events := eng.Pending()
		if !res.Success {
			// Persist rejection events, leave the aggregate alone.
			return &store.ApplyResult{Events: events}, nil
		}

		g.State = eng.State()
		g.NeedsAIMove = false
		if res.GameOver {
			g.Status = models.StatusCompleted
			g.Winner = g.State.Winner
			now := time.Now()
			g.CompletedAt = &now
		} else if next := game.CurrentMover(g.State, players); next != nil && next.IsAutomated() {
			g.NeedsAIMove = true
		}
		return &store.ApplyResult{Game: g, Actions: actions, Events: events}, nil
	})
	if err != nil {
		return game.Result{}, nil, err
	}
	return res, updated, nil
}

// afterCommit fans out notifications for a successfully committed move.
func (o *Orchestrator) afterCommit(ctx context.Context, g *models.Game, res game.Result) {
	o.sink.OnGameStateUpdate(g.ID, g)
	if res.GameOver {
		o.sink.OnGameEnded(g.ID, g.Winner)
	}
	if o.activity != nil {
		if err := o.activity.PublishActivity(ctx, g.ID, time.Now()); err != nil {
			o.log.WithError(err).WithField("game_id", g.ID).Warn("activity publish failed")
		}
	}
}

// HandleStateChange re-marks a game whose current mover is automated, then
// kicks a drain. Marking an already marked game is a no-op, so callers may
// invoke this after any external state change.
func (o *Orchestrator) HandleStateChange(ctx context.Context, gameID uuid.UUID) error {
	g, err := o.store.GetGame(ctx, gameID)
	if err != nil {
		return err
	}
	if g.Status != models.StatusActive || g.Archived {
		return nil
	}
	players, err := o.store.GetPlayers(ctx, gameID)
	if err != nil {
		return err
	}
	mover := game.CurrentMover(g.State, players)
	if mover == nil || !mover.IsAutomated() {
		return nil
	}
	if !g.NeedsAIMove {
		if err := o.store.SetNeedsAIMove(ctx, gameID); err != nil {
			return err
		}
	}
	go o.Drain(context.WithoutCancel(ctx))
	return nil
}

// Drain claims and executes pending automated moves until none remain. Any
// number of triggers may race; the per-game claim guarantees each pending
// move is executed at most once. When the concurrency ceiling is hit the
// trigger is dropped; the work stays queued in the store.
func (o *Orchestrator) Drain(ctx context.Context) {
	if o.active.Add(1) > o.maxDrains {
		o.active.Add(-1)
		o.log.Warn("drain ceiling reached, dropping trigger")
		return
	}
	defer o.active.Add(-1)

	for {
		if ctx.Err() != nil {
			return
		}
		gameID, err := o.store.OldestPendingGame(ctx)
		if errors.Is(err, store.ErrNoPending) {
			return
		}
		if err != nil {
			o.log.WithError(err).Error("pending game scan failed")
			return
		}

		claimed, err := o.store.ClaimPendingMove(ctx, gameID)
		if err != nil {
			o.log.WithError(err).WithField("game_id", gameID).Error("claim failed")
			return
		}
		if !claimed {
			// Another worker won; back off briefly so we rescan after its
			// move (and any re-mark) commits.
			time.Sleep(o.claimBackoff)
			continue
		}
		o.executeAutomatedMove(ctx, gameID)
	}
}

// executeAutomatedMove runs one policy move for a game we hold the claim
// for. The policy call happens with no locks held; the engine revalidates
// its output inside the transaction exactly like a human submission.
func (o *Orchestrator) executeAutomatedMove(ctx context.Context, gameID uuid.UUID) {
	g, err := o.store.GetGame(ctx, gameID)
	if err != nil {
		o.log.WithError(err).WithField("game_id", gameID).Error("load claimed game failed")
		return
	}
	players, err := o.store.GetPlayers(ctx, gameID)
	if err != nil {
		o.log.WithError(err).WithField("game_id", gameID).Error("load players failed")
		return
	}

	mover := game.CurrentMover(g.State, players)
	if mover == nil || !mover.IsAutomated() || g.Status != models.StatusActive {
		// Stale mark; dropping the claim is correct.
		o.log.WithField("game_id", gameID).Debug("claimed game has no automated mover")
		return
	}

	o.sink.OnAIThinking(gameID, mover.ID, mover.Name)

	pol, err := o.policies.Resolve(mover)
	if err != nil {
		o.reportMoveFailure(ctx, g, mover, err)
		return
	}
	history, err := o.store.GetActions(ctx, gameID)
	if err != nil {
		o.log.WithError(err).WithField("game_id", gameID).Error("load history failed")
		return
	}

	policyCtx, cancel := context.WithTimeout(ctx, o.policyTimeout)
	action, err := pol.TakeAction(policyCtx, g.State.Redacted(mover.Role == models.RoleSpymaster), mover, history)
	cancel()
	if err != nil {
		o.reportMoveFailure(ctx, g, mover, err)
		return
	}

	res, updated, err := o.applyAction(ctx, gameID, mover.ID, action)
	if err != nil {
		o.reportMoveFailure(ctx, g, mover, err)
		return
	}
	if !res.Success {
		// The policy produced an illegal move. No retry here; surfacing the
		// failure and waiting for the lease poller avoids hot-looping on a
		// deterministic bad policy.
		o.reportMoveFailure(ctx, g, mover, res.Error)
		return
	}

	o.sink.OnAIMoveComplete(gameID, mover.ID, action)
	o.afterCommit(ctx, updated, res)
	o.log.WithFields(logrus.Fields{
		"game_id": gameID,
		"player":  mover.Name,
		"action":  action.Kind,
	}).Info("automated move committed")
}

// reportMoveFailure surfaces a failed automated move without retrying. The
// error event is appended outside any game transaction.
func (o *Orchestrator) reportMoveFailure(ctx context.Context, g *models.Game, mover *models.Player, cause error) {
	o.log.WithError(cause).WithFields(logrus.Fields{
		"game_id": g.ID,
		"player":  mover.Name,
	}).Error("automated move failed")
	o.sink.OnGameError(g.ID, cause.Error())
	ev := models.GameEvent{
		GameID:    g.ID,
		PlayerID:  &mover.ID,
		Team:      mover.Team,
		Kind:      models.EventGameError,
		Detail:    cause.Error(),
		Timestamp: time.Now(),
	}
	if err := o.store.AppendEvents(ctx, []models.GameEvent{ev}); err != nil {
		o.log.WithError(err).WithField("game_id", g.ID).Warn("append error event failed")
	}
}

// StartPoller runs the safety net loop: every interval it re-marks stalled
// games and drains. This covers workers that crashed between claiming and
// committing, and automated moves whose commit-time kick was dropped at the
// drain ceiling.
func (o *Orchestrator) StartPoller(ctx context.Context, interval, lease time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.remarkStalled(ctx, lease)
			o.Drain(ctx)
		}
	}
}

// remarkStalled re-arms active games whose automated mover has been idle
// past the lease window. SetNeedsAIMove is idempotent, so racing with a live
// worker at worst schedules one redundant scan.
func (o *Orchestrator) remarkStalled(ctx context.Context, lease time.Duration) {
	ids, err := o.store.StalledGames(ctx, lease)
	if err != nil {
		o.log.WithError(err).Error("stalled game scan failed")
		return
	}
	for _, id := range ids {
		g, err := o.store.GetGame(ctx, id)
		if err != nil {
			continue
		}
		players, err := o.store.GetPlayers(ctx, id)
		if err != nil {
			continue
		}
		mover := game.CurrentMover(g.State, players)
		if mover == nil || !mover.IsAutomated() {
			continue
		}
		if err := o.store.SetNeedsAIMove(ctx, id); err != nil {
			o.log.WithError(err).WithField("game_id", id).Warn("re-mark failed")
			continue
		}
		o.log.WithField("game_id", id).Info("re-marked stalled automated game")
	}
}

// ListActiveGames returns all unarchived games.
func (o *Orchestrator) ListActiveGames(ctx context.Context) ([]*models.Game, error) {
	return o.store.ListActiveGames(ctx)
}

// ArchiveGame hides a game from listings and the drain scan. History stays
// queryable.
func (o *Orchestrator) ArchiveGame(ctx context.Context, gameID uuid.UUID) error {
	return o.store.ArchiveGame(ctx, gameID)
}

// GetGame fetches the aggregate with its seats.
func (o *Orchestrator) GetGame(ctx context.Context, gameID uuid.UUID) (*models.Game, []*models.Player, error) {
	g, err := o.store.GetGame(ctx, gameID)
	if err != nil {
		return nil, nil, err
	}
	players, err := o.store.GetPlayers(ctx, gameID)
	if err != nil {
		return nil, nil, err
	}
	return g, players, nil
}

// GetHistory returns the append-only action log.
func (o *Orchestrator) GetHistory(ctx context.Context, gameID uuid.UUID) ([]models.GameAction, error) {
	return o.store.GetActions(ctx, gameID)
}
