// Package store wraps the shared Redis instance holding all
// cross-process lobby state: presence, chat history, per-user channel
// names, the search pool, the room set and game-auth tokens.
package store

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"duel-game-server/config"
)

// Redis keys.
const (
	keyUsers       = "global_users"
	keyMessages    = "global_messages"
	keySearchPool  = "search_pool"
	keyRooms       = "rooms"
	keyGameTokens  = "player_tokens"
	channelKeyPref = "channel_"
)

var tokenAlphabet = []rune("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789")

// Store errors.
var (
	ErrChannelNotFound = errors.New("no channel registered for user")
	ErrTokenNotFound   = errors.New("token not found")
	ErrTokenExhausted  = errors.New("could not generate a unique token")
)

// SearchEntry is one enrolled user in the matchmaking pool.
type SearchEntry struct {
	Username     string
	TimeToSearch int
}

// KV is the shared key-value store client.
type KV struct {
	rdb           *redis.Client
	ttl           time.Duration
	maxMessages   int64
	timeToSearch  int
	tokenLength   int
	tokenAttempts int
}

// New connects to Redis and verifies the connection. The service
// cannot run without the KV store, so callers treat an error as fatal.
func New(ctx context.Context, cfg *config.Config) (*KV, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, err
	}
	slog.Info("connected to Redis", "tag", "store", "addr", cfg.RedisAddr)
	return &KV{
		rdb:           rdb,
		ttl:           time.Duration(cfg.KVTTLSec) * time.Second,
		maxMessages:   int64(cfg.MaxChatMessages),
		timeToSearch:  cfg.TimeToSearchSec,
		tokenLength:   cfg.RoomTokenLength,
		tokenAttempts: cfg.RoomTokenAttempts,
	}, nil
}

// Client exposes the underlying Redis client for the channel layer.
func (k *KV) Client() *redis.Client {
	return k.rdb
}

// Close releases the Redis connection.
func (k *KV) Close() {
	if k != nil && k.rdb != nil {
		k.rdb.Close()
	}
}

// --- presence ---

// AddUser marks a username online in the global lobby.
func (k *KV) AddUser(ctx context.Context, username string) error {
	pipe := k.rdb.TxPipeline()
	pipe.ZAdd(ctx, keyUsers, redis.Z{Score: 0, Member: username})
	pipe.Expire(ctx, keyUsers, k.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

// RemoveUser marks a username offline.
func (k *KV) RemoveUser(ctx context.Context, username string) error {
	return k.rdb.ZRem(ctx, keyUsers, username).Err()
}

// ListUsers returns all online usernames.
func (k *KV) ListUsers(ctx context.Context) ([]string, error) {
	return k.rdb.ZRange(ctx, keyUsers, 0, -1).Result()
}

// --- per-user delivery channels ---

// SetChannel records the pub/sub channel name a username is reachable
// on for direct delivery.
func (k *KV) SetChannel(ctx context.Context, username, channelName string) error {
	return k.rdb.Set(ctx, channelKeyPref+username, channelName, k.ttl).Err()
}

// Channel returns the delivery channel for a username.
func (k *KV) Channel(ctx context.Context, username string) (string, error) {
	name, err := k.rdb.Get(ctx, channelKeyPref+username).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrChannelNotFound
	}
	return name, err
}

// DeleteChannel removes a username's delivery channel.
func (k *KV) DeleteChannel(ctx context.Context, username string) error {
	return k.rdb.Del(ctx, channelKeyPref+username).Err()
}

// --- chat history ---

// AppendMessage appends a serialized chat frame to the ring-buffered
// lobby history.
func (k *KV) AppendMessage(ctx context.Context, payload []byte) error {
	pipe := k.rdb.TxPipeline()
	pipe.RPush(ctx, keyMessages, payload)
	pipe.LTrim(ctx, keyMessages, -k.maxMessages, -1)
	pipe.Expire(ctx, keyMessages, k.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

// Messages returns the buffered lobby history, oldest first.
func (k *KV) Messages(ctx context.Context) ([]string, error) {
	return k.rdb.LRange(ctx, keyMessages, 0, -1).Result()
}

// --- search pool ---

// AddSearch enrolls a username in the matchmaking pool with the
// initial time-to-search budget.
func (k *KV) AddSearch(ctx context.Context, username string) error {
	pipe := k.rdb.TxPipeline()
	pipe.HSet(ctx, keySearchPool, username, k.timeToSearch)
	pipe.Expire(ctx, keySearchPool, k.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

// RemoveSearch withdraws a username from the pool.
func (k *KV) RemoveSearch(ctx context.Context, username string) error {
	return k.rdb.HDel(ctx, keySearchPool, username).Err()
}

// SearchPool returns the enrolled users ordered by username so the
// matchmaker walks a stable list.
func (k *KV) SearchPool(ctx context.Context) ([]SearchEntry, error) {
	raw, err := k.rdb.HGetAll(ctx, keySearchPool).Result()
	if err != nil {
		return nil, err
	}
	entries := make([]SearchEntry, 0, len(raw))
	for username, tts := range raw {
		entries = append(entries, SearchEntry{Username: username, TimeToSearch: atoiOrZero(tts)})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Username < entries[j].Username })
	return entries, nil
}

// DecrementTTS reduces a user's remaining time-to-search.
func (k *KV) DecrementTTS(ctx context.Context, username string, by int) error {
	return k.rdb.HIncrBy(ctx, keySearchPool, username, int64(-by)).Err()
}

// --- room tokens ---

// GenerateRoomToken mints a unique 8-char room token, retrying on
// collision up to the configured attempt limit.
func (k *KV) GenerateRoomToken(ctx context.Context) (string, error) {
	for i := 0; i < k.tokenAttempts; i++ {
		token := randomToken(k.tokenLength)
		added, err := k.rdb.SAdd(ctx, keyRooms, token).Result()
		if err != nil {
			return "", err
		}
		if added == 1 {
			k.rdb.Expire(ctx, keyRooms, k.ttl)
			return token, nil
		}
	}
	return "", ErrTokenExhausted
}

// RoomExists reports whether a room token is live.
func (k *KV) RoomExists(ctx context.Context, token string) (bool, error) {
	return k.rdb.SIsMember(ctx, keyRooms, token).Result()
}

// --- game-auth tokens ---

// GenerateGameToken mints a single-use game-auth token bound to a
// username.
func (k *KV) GenerateGameToken(ctx context.Context, username string) (string, error) {
	for i := 0; i < k.tokenAttempts; i++ {
		token := randomToken(k.tokenLength)
		set, err := k.rdb.HSetNX(ctx, keyGameTokens, token, username).Result()
		if err != nil {
			return "", err
		}
		if set {
			k.rdb.Expire(ctx, keyGameTokens, k.ttl)
			return token, nil
		}
	}
	return "", ErrTokenExhausted
}

// ConsumeGameToken resolves a game-auth token to its username and
// deletes it, so a token authorizes exactly one game connection.
func (k *KV) ConsumeGameToken(ctx context.Context, token string) (string, error) {
	username, err := k.rdb.HGet(ctx, keyGameTokens, token).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrTokenNotFound
	}
	if err != nil {
		return "", err
	}
	if err := k.rdb.HDel(ctx, keyGameTokens, token).Err(); err != nil {
		return "", err
	}
	return username, nil
}

func randomToken(length int) string {
	var b strings.Builder
	b.Grow(length)
	for i := 0; i < length; i++ {
		b.WriteRune(tokenAlphabet[rand.Intn(len(tokenAlphabet))])
	}
	return b.String()
}

func atoiOrZero(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
