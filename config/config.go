package config

import (
	"encoding/json"
	"log"
	"os"
	"strconv"
)

// Config holds all configurable server parameters.
type Config struct {
	WSPort int `json:"ws_port"`

	// RedisAddr is the address of the shared KV store / channel layer.
	RedisAddr     string `json:"redis_addr"`
	RedisPassword string `json:"redis_password"`

	// DatabaseURL enables duel history persistence when non-empty.
	DatabaseURL string `json:"database_url"`

	// UsersAPIBaseURL is the base URL of the user directory service.
	UsersAPIBaseURL string `json:"users_api_base_url"`
	// UsersJWTSecret validates directory access tokens locally (HS256).
	UsersJWTSecret string `json:"users_jwt_secret"`
	// UsersJWKSURL, when set, validates access tokens against the
	// directory's JWKS endpoint instead of the shared secret.
	UsersJWKSURL string `json:"users_jwks_url"`

	// Game parameters.
	TurnTimeSec   int `json:"turn_time_sec"`
	MaxTurns      int `json:"max_turns"`
	RatingPerGame int `json:"rating_per_game"`
	ExpGain       int `json:"exp_gain"`

	// Matchmaking parameters.
	SearchTickSec   int `json:"search_tick_sec"`
	TimeToSearchSec int `json:"time_to_search_sec"`
	MatchLoopLimit  int `json:"match_loop_limit"`

	// Lobby / token parameters.
	MaxChatMessages   int `json:"max_chat_messages"`
	KVTTLSec          int `json:"kv_ttl_sec"`
	RoomTokenLength   int `json:"room_token_length"`
	RoomTokenAttempts int `json:"room_token_attempts"`
}

// Defaults returns a Config with all default values.
func Defaults() *Config {
	return &Config{
		WSPort:            8080,
		RedisAddr:         "localhost:6379",
		UsersAPIBaseURL:   "http://localhost:8000/usr/api/v1",
		TurnTimeSec:       30,
		MaxTurns:          100,
		RatingPerGame:     25,
		ExpGain:           10,
		SearchTickSec:     5,
		TimeToSearchSec:   30,
		MatchLoopLimit:    100,
		MaxChatMessages:   1000,
		KVTTLSec:          3600 * 24,
		RoomTokenLength:   8,
		RoomTokenAttempts: 100,
	}
}

// Load reads configuration from an optional config.json file,
// then applies environment variable overrides. Fields not set
// in either source retain their default values.
func Load() *Config {
	cfg := Defaults()

	if f, err := os.Open("config.json"); err == nil {
		defer f.Close()
		if err := json.NewDecoder(f).Decode(cfg); err != nil {
			log.Printf("Warning: failed to parse config.json: %v", err)
		}
	}

	overrideInt(&cfg.WSPort, "WS_PORT")
	overrideString(&cfg.RedisAddr, "REDIS_ADDR")
	overrideString(&cfg.RedisPassword, "REDIS_PASSWORD")
	overrideString(&cfg.DatabaseURL, "DATABASE_URL")
	overrideString(&cfg.UsersAPIBaseURL, "USERS_API_BASE_URL")
	overrideString(&cfg.UsersJWTSecret, "USERS_JWT_SECRET")
	overrideString(&cfg.UsersJWKSURL, "USERS_JWKS_URL")
	overrideInt(&cfg.TurnTimeSec, "TURN_TIME_SEC")
	overrideInt(&cfg.MaxTurns, "MAX_TURNS")
	overrideInt(&cfg.RatingPerGame, "RATING_PER_GAME")
	overrideInt(&cfg.ExpGain, "EXP_GAIN")
	overrideInt(&cfg.SearchTickSec, "SEARCH_TICK_SEC")
	overrideInt(&cfg.TimeToSearchSec, "TIME_TO_SEARCH_SEC")
	overrideInt(&cfg.MatchLoopLimit, "MATCH_LOOP_LIMIT")
	overrideInt(&cfg.MaxChatMessages, "MAX_CHAT_MESSAGES")
	overrideInt(&cfg.KVTTLSec, "KV_TTL_SEC")
	overrideInt(&cfg.RoomTokenLength, "ROOM_TOKEN_LENGTH")
	overrideInt(&cfg.RoomTokenAttempts, "ROOM_TOKEN_ATTEMPTS")

	return cfg
}

func overrideInt(field *int, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			*field = n
		} else {
			log.Printf("Warning: invalid value for %s: %q", envKey, val)
		}
	}
}

func overrideString(field *string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}
