package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"

	"duel-game-server/api"
	"duel-game-server/auth"
	"duel-game-server/channel"
	"duel-game-server/config"
	"duel-game-server/game"
	"duel-game-server/lobby"
	"duel-game-server/loghandler"
	"duel-game-server/matchmaking"
	"duel-game-server/storage"
	"duel-game-server/store"
	"duel-game-server/users"
	"duel-game-server/ws"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Print("No .env file found; using environment variables.")
	}

	slog.SetDefault(slog.New(loghandler.NewCompactHandler(os.Stdout, slog.LevelInfo)))

	cfg := config.Load()
	slog.Info("configuration loaded", "tag", "main",
		"ws_port", cfg.WSPort, "turn_time_sec", cfg.TurnTimeSec, "max_turns", cfg.MaxTurns,
		"search_tick_sec", cfg.SearchTickSec, "redis_addr", cfg.RedisAddr)

	ctx := context.Background()

	// The KV store and channel layer are load-bearing; refusing to
	// start without them beats running a lobby that loses state.
	kv, err := store.New(ctx, cfg)
	if err != nil {
		slog.Error("connecting to Redis", "tag", "main", "err", err)
		os.Exit(1)
	}
	defer kv.Close()
	layer := channel.New(kv.Client())

	duels, err := storage.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("connecting to Postgres", "tag", "main", "err", err)
		os.Exit(1)
	}
	if duels == nil {
		slog.Info("no DATABASE_URL set; duel history disabled", "tag", "main")
	}
	defer duels.Close()

	directory := users.New(cfg.UsersAPIBaseURL)

	verifier, err := auth.NewVerifier(cfg.UsersJWTSecret, cfg.UsersJWKSURL, directory)
	if err != nil {
		slog.Error("configuring auth", "tag", "main", "err", err)
		os.Exit(1)
	}

	registry := game.NewRegistry(func(token string) *game.Session {
		return game.NewSession(token, game.Options{
			TurnTime:      time.Duration(cfg.TurnTimeSec) * time.Second,
			MaxTurns:      cfg.MaxTurns,
			RatingPerGame: cfg.RatingPerGame,
			ExpGain:       cfg.ExpGain,
			Reporter:      directory,
			Recorder:      duels,
		})
	})

	matchmaker := matchmaking.New(cfg, kv, layer, registry)
	go matchmaker.Run(ctx)

	lb := lobby.New(kv, layer, matchmaker)

	mux := http.NewServeMux()
	ws.NewServer(kv, lb, registry, directory).Register(mux)
	api.NewHandler(verifier, kv, duels).Register(mux)

	addr := fmt.Sprintf(":%d", cfg.WSPort)
	slog.Info("duel game server listening", "tag", "main", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("server stopped", "tag", "main", "err", err)
		os.Exit(1)
	}
}
