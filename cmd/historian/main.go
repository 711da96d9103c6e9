// cmd/historian/main.go is an asynchronous housekeeping service. It consumes
// the Redis activity feed published by the game server and marks games
// abandoned once they have been inactive past the configured threshold.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/codenames/internal/cache"
	"github.com/jason-s-yu/codenames/internal/database"
	"github.com/jason-s-yu/codenames/internal/models"
)

// HistorianService tracks per-game liveness from the activity feed and
// abandons games nobody is playing anymore.
type HistorianService struct {
	store       *database.Store
	redisClient *redis.Client
	log         *logrus.Logger

	inactivity   time.Duration
	sweepEvery   time.Duration
	lastActivity sync.Map // map[uuid.UUID]time.Time

	ctx      context.Context
	cancelFn context.CancelFunc
}

func NewHistorianService(store *database.Store, rdb *redis.Client, log *logrus.Logger) *HistorianService {
	inactivitySec := getEnvInt("GAME_INACTIVITY_TIMEOUT_SEC", 600) // default 10 min
	sweepSec := getEnvInt("HISTORIAN_SWEEP_SEC", 60)

	ctx, cancel := context.WithCancel(context.Background())
	return &HistorianService{
		store:       store,
		redisClient: rdb,
		log:         log,
		inactivity:  time.Duration(inactivitySec) * time.Second,
		sweepEvery:  time.Duration(sweepSec) * time.Second,
		ctx:         ctx,
		cancelFn:    cancel,
	}
}

// Run starts the feed reader and the inactivity sweep, then blocks until
// Stop is called.
func (hs *HistorianService) Run() {
	go hs.readFeedLoop()
	go hs.sweepLoop()

	hs.log.Info("codenames-historian service started")
	<-hs.ctx.Done()
	hs.log.Info("codenames-historian shutting down")
}

// readFeedLoop BLPops activity records and refreshes each game's liveness
// timestamp.
func (hs *HistorianService) readFeedLoop() {
	queueName := getEnv("HISTORIAN_QUEUE_NAME", cache.DefaultQueueName)

	for {
		if hs.ctx.Err() != nil {
			return
		}
		// 3-second timeout so context cancellation is observed promptly.
		res, err := hs.redisClient.BLPop(hs.ctx, 3*time.Second, queueName).Result()
		if err != nil {
			if !errors.Is(err, redis.Nil) && hs.ctx.Err() == nil {
				hs.log.WithError(err).Error("BLPop failed")
				time.Sleep(time.Second)
			}
			continue
		}
		if len(res) < 2 {
			continue
		}

		var record cache.ActivityRecord
		if err := json.Unmarshal([]byte(res[1]), &record); err != nil {
			hs.log.WithError(err).Warn("invalid activity record")
			continue
		}
		hs.lastActivity.Store(record.GameID, time.UnixMilli(record.Timestamp))
	}
}

// sweepLoop periodically abandons active games with no recent activity. The
// database's updated_at is the fallback signal for games the feed never
// mentioned, such as those created before a historian restart.
func (hs *HistorianService) sweepLoop() {
	ticker := time.NewTicker(hs.sweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-hs.ctx.Done():
			return
		case <-ticker.C:
			hs.sweep()
		}
	}
}

func (hs *HistorianService) sweep() {
	ctx, cancel := context.WithTimeout(hs.ctx, 30*time.Second)
	defer cancel()

	games, err := hs.store.ListActiveGames(ctx)
	if err != nil {
		hs.log.WithError(err).Error("active game scan failed")
		return
	}

	now := time.Now()
	for _, g := range games {
		if g.Status != models.StatusActive {
			continue
		}
		last := g.UpdatedAt
		if v, ok := hs.lastActivity.Load(g.ID); ok {
			if t := v.(time.Time); t.After(last) {
				last = t
			}
		}
		if now.Sub(last) <= hs.inactivity {
			continue
		}
		if err := hs.store.MarkAbandoned(ctx, g.ID); err != nil {
			hs.log.WithError(err).WithField("game_id", g.ID).Error("abandon failed")
			continue
		}
		hs.lastActivity.Delete(g.ID)
		hs.log.WithField("game_id", g.ID).Info("marked game abandoned due to inactivity")
	}
}

// Stop gracefully stops the historian service.
func (hs *HistorianService) Stop() {
	hs.cancelFn()
}

func main() {
	logger := logrus.New()

	pool, err := database.Connect(context.Background())
	if err != nil {
		logger.Fatalf("database connect failed: %v", err)
	}
	defer pool.Close()

	rdb, err := cache.Connect()
	if err != nil {
		logger.Fatalf("redis connect failed: %v", err)
	}
	defer rdb.Close()

	hs := NewHistorianService(database.NewStore(pool), rdb, logger)
	go hs.Run()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	hs.Stop()
	logger.Info("historian shutdown complete")
}

// getEnv retrieves an environment variable's value or returns a default.
func getEnv(key, defVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defVal
}

// getEnvInt retrieves an integer value from an environment variable or returns a default value.
func getEnvInt(key string, defVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defVal
	}
	return i
}
