// Package matchmaking runs the singleton search loop that pairs
// enrolled players, falling back to a bot when a searcher's
// time-to-search budget runs out.
package matchmaking

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"duel-game-server/ai"
	"duel-game-server/config"
	"duel-game-server/game"
	"duel-game-server/store"
)

// Pool is the shared search pool plus the token and channel lookups
// the matchmaker needs. Implemented by the KV store.
type Pool interface {
	SearchPool(ctx context.Context) ([]store.SearchEntry, error)
	RemoveSearch(ctx context.Context, username string) error
	DecrementTTS(ctx context.Context, username string, by int) error
	GenerateRoomToken(ctx context.Context) (string, error)
	Channel(ctx context.Context, username string) (string, error)
}

// Publisher delivers frames to per-user channels. Implemented by the
// channel layer.
type Publisher interface {
	Publish(ctx context.Context, channelName string, payload []byte) error
}

// MatchEvent is the frame delivered to matched searchers.
type MatchEvent struct {
	EventType string `json:"event_type"`
	Message   string `json:"message"`
	TargetURL string `json:"target_url"`
}

// Matchmaker owns the cooperative search loop shared by all searchers.
// Enrollments wake it with a poke; a poke during a running loop resets
// its tick budget instead of spawning a second loop.
type Matchmaker struct {
	pool      Pool
	publisher Publisher
	registry  *game.Registry

	tickEvery time.Duration
	loopLimit int

	poke chan struct{}
}

// New creates the matchmaker.
func New(cfg *config.Config, pool Pool, publisher Publisher, registry *game.Registry) *Matchmaker {
	return &Matchmaker{
		pool:      pool,
		publisher: publisher,
		registry:  registry,
		tickEvery: time.Duration(cfg.SearchTickSec) * time.Second,
		loopLimit: cfg.MatchLoopLimit,
		poke:      make(chan struct{}, 1),
	}
}

// Poke wakes the loop after an enrollment. Never blocks; concurrent
// pokes coalesce.
func (m *Matchmaker) Poke() {
	select {
	case m.poke <- struct{}{}:
	default:
	}
}

// Run is the matchmaker's main loop. It blocks until poked, runs the
// search loop until the pool empties or the tick budget is spent, and
// goes back to sleep. Should be run as a goroutine.
func (m *Matchmaker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.poke:
		}
		m.searchLoop(ctx)
	}
}

func (m *Matchmaker) searchLoop(ctx context.Context) {
	for i := 0; i < m.loopLimit; i++ {
		if !m.tick(ctx) {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-m.poke:
			// Fresh enrollment: reset the tick budget.
			i = -1
		case <-time.After(m.tickEvery):
		}
	}
	slog.Info("search loop tick budget spent", "tag", "matchmaking")
}

// tick walks the pool once, pairing searchers two at a time. A
// searcher left unpaired loses one tick of time-to-search; at zero it
// is paired with a bot. Returns false when the pool is empty.
func (m *Matchmaker) tick(ctx context.Context) bool {
	entries, err := m.pool.SearchPool(ctx)
	if err != nil {
		slog.Error("reading search pool", "tag", "matchmaking", "err", err)
		return true
	}
	if len(entries) == 0 {
		return false
	}

	for len(entries) >= 2 {
		m.matchPair(ctx, entries[0].Username, entries[1].Username)
		entries = entries[2:]
	}

	if len(entries) == 1 {
		last := entries[0]
		remaining := last.TimeToSearch - int(m.tickEvery/time.Second)
		if remaining > 0 {
			if err := m.pool.DecrementTTS(ctx, last.Username, int(m.tickEvery/time.Second)); err != nil {
				slog.Error("decrementing time-to-search", "tag", "matchmaking", "username", last.Username, "err", err)
			}
		} else {
			m.matchBot(ctx, last.Username)
		}
	}
	return true
}

// matchPair mints a room and notifies both searchers. On token
// exhaustion the pairing attempt is dropped for this tick and both
// users stay enrolled.
func (m *Matchmaker) matchPair(ctx context.Context, u1, u2 string) {
	token, err := m.pool.GenerateRoomToken(ctx)
	if err != nil {
		slog.Error("minting room token", "tag", "matchmaking", "err", err)
		return
	}

	slog.Info("match created", "tag", "matchmaking", "room", token, "p1", u1, "p2", u2)

	for _, u := range []string{u1, u2} {
		if err := m.pool.RemoveSearch(ctx, u); err != nil {
			slog.Error("removing searcher from pool", "tag", "matchmaking", "username", u, "err", err)
		}
	}
	m.notifyMatch(ctx, token, "Game found: P1 - "+u1+", P2 - "+u2, u1, u2)
}

// matchBot mints a room, seats a bot in it and notifies the lone
// searcher. The bot observes session events and plays its character.
func (m *Matchmaker) matchBot(ctx context.Context, username string) {
	token, err := m.pool.GenerateRoomToken(ctx)
	if err != nil {
		slog.Error("minting room token for bot match", "tag", "matchmaking", "err", err)
		return
	}

	slog.Info("bot match created", "tag", "matchmaking", "room", token, "p1", username)

	if err := m.pool.RemoveSearch(ctx, username); err != nil {
		slog.Error("removing searcher from pool", "tag", "matchmaking", "username", username, "err", err)
	}

	session := m.registry.GetOrCreate(token)
	bot := ai.NewBot()
	session.AttachObserver(bot)
	if err := session.AttachCharacter(bot.Character()); err != nil {
		slog.Error("seating bot", "tag", "matchmaking", "room", token, "err", err)
		return
	}

	m.notifyMatch(ctx, token, "Game found: P1 - "+username+", P2 - "+ai.BotName, username)
}

func (m *Matchmaker) notifyMatch(ctx context.Context, token, message string, usernames ...string) {
	payload, _ := json.Marshal(MatchEvent{
		EventType: "/game_match",
		Message:   message,
		TargetURL: "/game_lobby/" + token + "/",
	})
	for _, u := range usernames {
		channelName, err := m.pool.Channel(ctx, u)
		if err != nil {
			slog.Error("resolving searcher channel", "tag", "matchmaking", "username", u, "err", err)
			continue
		}
		if err := m.publisher.Publish(ctx, channelName, payload); err != nil {
			slog.Error("delivering match event", "tag", "matchmaking", "username", u, "err", err)
		}
	}
}
