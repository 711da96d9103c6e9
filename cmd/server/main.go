// cmd/server/main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/codenames/internal/auth"
	"github.com/jason-s-yu/codenames/internal/cache"
	"github.com/jason-s-yu/codenames/internal/database"
	"github.com/jason-s-yu/codenames/internal/game"
	"github.com/jason-s-yu/codenames/internal/handlers"
	"github.com/jason-s-yu/codenames/internal/orchestrator"
)

func main() {
	auth.Init()

	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	ctx := context.Background()

	pool, err := database.Connect(ctx)
	if err != nil {
		log.Fatalf("database connect failed: %v", err)
	}
	defer pool.Close()
	if err := database.EnsureSchema(ctx, pool); err != nil {
		log.Fatalf("schema init failed: %v", err)
	}
	gameStore := database.NewStore(pool)

	var activity orchestrator.ActivityPublisher
	if rdb, err := cache.Connect(); err != nil {
		logger.Warnf("redis unavailable, activity feed disabled: %v", err)
	} else {
		defer rdb.Close()
		activity = cache.NewPublisher(rdb)
	}

	wordPool, err := game.LoadWordPool(os.Getenv("WORD_POOL_FILE"))
	if err != nil {
		log.Fatalf("word pool load failed: %v", err)
	}
	var dict game.Dictionary
	if path := os.Getenv("CLUE_DICTIONARY_FILE"); path != "" {
		wl, err := game.LoadDictionary(path)
		if err != nil {
			log.Fatalf("clue dictionary load failed: %v", err)
		}
		dict = wl
	}

	hub := handlers.NewHub(logger)
	orch, err := orchestrator.New(orchestrator.Config{
		Store:      gameStore,
		Sink:       hub,
		Dictionary: dict,
		WordPool:   wordPool,
		Activity:   activity,
		Logger:     logger,
	})
	if err != nil {
		log.Fatalf("orchestrator init failed: %v", err)
	}

	// Safety net for claims lost to crashed workers or dropped triggers.
	go orch.StartPoller(ctx, 15*time.Second, 2*time.Minute)

	srv := handlers.NewServer(orch, hub, logger)

	addr := ":8080"
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}
	logger.Infof("Running on %s", addr)
	if err := http.ListenAndServe(addr, srv.Router()); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
