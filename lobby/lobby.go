// Package lobby implements the global chat lobby: presence, history
// replay, command routing and matchmaking enrollment.
package lobby

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"duel-game-server/channel"
	"duel-game-server/store"
)

const timestampFormat = "15:04:05"

// Searcher wakes the matchmaking loop after an enrollment.
type Searcher interface {
	Poke()
}

// InboundFrame is the client-to-server lobby frame.
type InboundFrame struct {
	Message  string `json:"message"`
	Username string `json:"username"`
}

// ChatEvent is a public or private chat frame.
type ChatEvent struct {
	EventType string `json:"event_type"`
	Message   string `json:"message"`
	Username  string `json:"username"`
	Timestamp string `json:"timestamp"`
}

// InviteEvent is a duel invite carrying the room URL.
type InviteEvent struct {
	EventType string `json:"event_type"`
	Message   string `json:"message"`
	Username  string `json:"username"`
	Timestamp string `json:"timestamp"`
	TargetURL string `json:"target_url"`
}

// UserListEvent announces the current lobby presence list.
type UserListEvent struct {
	EventType string   `json:"event_type"`
	Users     []string `json:"users"`
}

// Lobby routes frames for the single global lobby.
type Lobby struct {
	kv       *store.KV
	layer    *channel.Layer
	searcher Searcher
}

// New creates the lobby.
func New(kv *store.KV, layer *channel.Layer, searcher Searcher) *Lobby {
	return &Lobby{kv: kv, layer: layer, searcher: searcher}
}

// Join registers presence for a username and opens its subscription to
// the lobby group plus a fresh direct channel.
func (l *Lobby) Join(ctx context.Context, username string) (string, *channel.Subscription, error) {
	channelName := "chan:" + uuid.NewString()
	if err := l.kv.AddUser(ctx, username); err != nil {
		return "", nil, err
	}
	if err := l.kv.SetChannel(ctx, username, channelName); err != nil {
		l.kv.RemoveUser(ctx, username)
		return "", nil, err
	}
	sub := l.layer.Subscribe(ctx, channelName, channel.LobbyGroup)
	slog.Info("user joined lobby", "tag", "lobby", "username", username)
	return channelName, sub, nil
}

// Leave deregisters presence.
func (l *Lobby) Leave(ctx context.Context, username string) {
	if err := l.kv.RemoveUser(ctx, username); err != nil {
		slog.Error("removing user from lobby", "tag", "lobby", "username", username, "err", err)
	}
	if err := l.kv.DeleteChannel(ctx, username); err != nil {
		slog.Error("removing user channel", "tag", "lobby", "username", username, "err", err)
	}
	slog.Info("user left lobby", "tag", "lobby", "username", username)
}

// History returns the buffered chat frames for replay to a newcomer,
// oldest first.
func (l *Lobby) History(ctx context.Context) [][]byte {
	raw, err := l.kv.Messages(ctx)
	if err != nil {
		slog.Error("loading chat history", "tag", "lobby", "err", err)
		return nil
	}
	frames := make([][]byte, 0, len(raw))
	for _, m := range raw {
		frames = append(frames, []byte(m))
	}
	return frames
}

// BroadcastUserList pushes the current presence list to the whole
// lobby group.
func (l *Lobby) BroadcastUserList(ctx context.Context) {
	userList, err := l.kv.ListUsers(ctx)
	if err != nil {
		slog.Error("listing lobby users", "tag", "lobby", "err", err)
		return
	}
	payload, _ := json.Marshal(UserListEvent{EventType: "/new_user", Users: userList})
	if err := l.layer.Publish(ctx, channel.LobbyGroup, payload); err != nil {
		slog.Error("broadcasting user list", "tag", "lobby", "err", err)
	}
}

// HandleFrame routes one inbound frame from a lobby connection.
// senderChannel is the connection's direct channel, used to echo
// private and invite frames back to the sender.
func (l *Lobby) HandleFrame(ctx context.Context, senderChannel string, raw []byte) {
	var frame InboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		slog.Debug("dropping malformed lobby frame", "tag", "lobby", "err", err)
		return
	}

	parsed := ParseCommand(frame.Message)
	timestamp := time.Now().Format(timestampFormat)

	switch parsed.Command {
	case CommandMessage:
		l.handlePublic(ctx, frame.Username, parsed.Text, timestamp)
	case CommandPrivate:
		l.handlePrivate(ctx, senderChannel, frame.Username, parsed, timestamp)
	case CommandInvite:
		l.handleInvite(ctx, senderChannel, frame.Username, parsed, timestamp)
	case CommandSearch:
		l.handleSearch(ctx, frame.Username)
	}
}

func (l *Lobby) handlePublic(ctx context.Context, username, text, timestamp string) {
	payload, _ := json.Marshal(ChatEvent{
		EventType: CommandMessage,
		Message:   text,
		Username:  username,
		Timestamp: timestamp,
	})
	if err := l.kv.AppendMessage(ctx, payload); err != nil {
		slog.Error("appending chat history", "tag", "lobby", "err", err)
	}
	if err := l.layer.Publish(ctx, channel.LobbyGroup, payload); err != nil {
		slog.Error("broadcasting chat message", "tag", "lobby", "err", err)
	}
}

func (l *Lobby) handlePrivate(ctx context.Context, senderChannel, username string, parsed ParsedCommand, timestamp string) {
	recipientChannel, err := l.kv.Channel(ctx, parsed.Recipient)
	if err != nil {
		if !errors.Is(err, store.ErrChannelNotFound) {
			slog.Error("resolving private recipient", "tag", "lobby", "recipient", parsed.Recipient, "err", err)
		}
		return
	}
	payload, _ := json.Marshal(ChatEvent{
		EventType: CommandPrivate,
		Message:   "private: " + parsed.Text,
		Username:  username,
		Timestamp: timestamp,
	})
	l.publishTo(ctx, recipientChannel, payload)
	l.publishTo(ctx, senderChannel, payload)
}

func (l *Lobby) handleInvite(ctx context.Context, senderChannel, username string, parsed ParsedCommand, timestamp string) {
	recipientChannel, err := l.kv.Channel(ctx, parsed.Recipient)
	if err != nil {
		if !errors.Is(err, store.ErrChannelNotFound) {
			slog.Error("resolving invite recipient", "tag", "lobby", "recipient", parsed.Recipient, "err", err)
		}
		return
	}
	token, err := l.kv.GenerateRoomToken(ctx)
	if err != nil {
		slog.Error("minting invite room token", "tag", "lobby", "err", err)
		return
	}
	payload, _ := json.Marshal(InviteEvent{
		EventType: CommandInvite,
		Message:   "invite from " + username + ": " + parsed.Text,
		Username:  username,
		Timestamp: timestamp,
		TargetURL: "/game_lobby/" + token + "/",
	})
	l.publishTo(ctx, recipientChannel, payload)
	l.publishTo(ctx, senderChannel, payload)
}

func (l *Lobby) handleSearch(ctx context.Context, username string) {
	if err := l.kv.AddSearch(ctx, username); err != nil {
		slog.Error("enrolling in search pool", "tag", "lobby", "username", username, "err", err)
		return
	}
	slog.Info("search accepted", "tag", "lobby", "username", username)
	l.searcher.Poke()
}

func (l *Lobby) publishTo(ctx context.Context, channelName string, payload []byte) {
	if err := l.layer.Publish(ctx, channelName, payload); err != nil {
		slog.Error("publishing to channel", "tag", "lobby", "channel", channelName, "err", err)
	}
}
