package config

import (
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.TurnTimeSec != 30 {
		t.Errorf("TurnTimeSec = %d, want 30", cfg.TurnTimeSec)
	}
	if cfg.MaxTurns != 100 {
		t.Errorf("MaxTurns = %d, want 100", cfg.MaxTurns)
	}
	if cfg.RatingPerGame != 25 {
		t.Errorf("RatingPerGame = %d, want 25", cfg.RatingPerGame)
	}
	if cfg.SearchTickSec != 5 {
		t.Errorf("SearchTickSec = %d, want 5", cfg.SearchTickSec)
	}
	if cfg.TimeToSearchSec != 30 {
		t.Errorf("TimeToSearchSec = %d, want 30", cfg.TimeToSearchSec)
	}
	if cfg.RoomTokenLength != 8 {
		t.Errorf("RoomTokenLength = %d, want 8", cfg.RoomTokenLength)
	}
	if cfg.MaxChatMessages != 1000 {
		t.Errorf("MaxChatMessages = %d, want 1000", cfg.MaxChatMessages)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("TURN_TIME_SEC", "5")
	t.Setenv("REDIS_ADDR", "redis.internal:6380")
	t.Setenv("MAX_TURNS", "not-a-number")

	cfg := Load()

	if cfg.TurnTimeSec != 5 {
		t.Errorf("TurnTimeSec = %d, want 5 (env override)", cfg.TurnTimeSec)
	}
	if cfg.RedisAddr != "redis.internal:6380" {
		t.Errorf("RedisAddr = %q, want env override", cfg.RedisAddr)
	}
	if cfg.MaxTurns != 100 {
		t.Errorf("MaxTurns = %d, want default 100 when override is invalid", cfg.MaxTurns)
	}
}
