package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"duel-game-server/game"
	"duel-game-server/lobby"
	"duel-game-server/store"
	"duel-game-server/users"
	"duel-game-server/wsutil"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Allow all origins for development; restrict in production.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server terminates the lobby and game-room websocket endpoints.
type Server struct {
	kv        *store.KV
	lobby     *lobby.Lobby
	registry  *game.Registry
	directory *users.Client
}

// NewServer creates the websocket front end.
func NewServer(kv *store.KV, lb *lobby.Lobby, registry *game.Registry, directory *users.Client) *Server {
	return &Server{kv: kv, lobby: lb, registry: registry, directory: directory}
}

// Register installs the websocket routes.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/ws/global/{username}/{$}", s.serveLobbyWS)
	mux.HandleFunc("/ws/game/{room_token}/{username}/{char_name}/{token}/{$}", s.serveGameWS)
}

// serveLobbyWS handles a global lobby connection: presence, history
// replay, chat command routing.
func (s *Server) serveLobbyWS(w http.ResponseWriter, r *http.Request) {
	username := r.PathValue("username")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade", "tag", "ws", "err", err)
		return
	}
	client := NewClient(conn)

	// The connection outlives the HTTP request.
	ctx := context.Background()

	channelName, sub, err := s.lobby.Join(ctx, username)
	if err != nil {
		slog.Error("joining lobby", "tag", "ws", "username", username, "err", err)
		conn.Close()
		return
	}

	go client.WritePump()

	// Replay chat history to the newcomer only.
	for _, frame := range s.lobby.History(ctx) {
		wsutil.SafeSend(client.Send, frame)
	}

	// Fan subscribed frames into this connection.
	go func() {
		for frame := range sub.Frames() {
			wsutil.SafeSend(client.Send, frame)
		}
	}()

	s.lobby.BroadcastUserList(ctx)

	client.OnMessage = func(data []byte) {
		s.lobby.HandleFrame(ctx, channelName, data)
	}
	client.OnClose = func() {
		sub.Close()
		s.lobby.Leave(ctx, username)
		s.lobby.BroadcastUserList(ctx)
	}
	go client.ReadPump()
}

// choiceFrame is the inbound game-room frame.
type choiceFrame struct {
	Choice string `json:"choice"`
}

// serveGameWS handles a game-room connection. The one-shot game-auth
// token must resolve to the username in the URL; violations are
// accepted and then closed without touching session state.
func (s *Server) serveGameWS(w http.ResponseWriter, r *http.Request) {
	roomToken := r.PathValue("room_token")
	username := r.PathValue("username")
	charName := r.PathValue("char_name")
	gameToken := r.PathValue("token")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade", "tag", "ws", "err", err)
		return
	}

	ctx := context.Background()

	owner, err := s.kv.ConsumeGameToken(ctx, gameToken)
	if err != nil || owner != username {
		slog.Info("rejecting game connection", "tag", "ws", "room", roomToken, "username", username)
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "invalid game token"))
		conn.Close()
		return
	}

	sess := s.registry.GetOrCreate(roomToken)
	client := NewClient(conn)
	go client.WritePump()

	obs := newGameObserver(client)
	sess.AttachObserver(obs)
	sess.BroadcastNotice(username + " connected to game")

	if sess.Started() && sess.CharacterByOwner(username) != nil {
		// Rehydrate a reconnecting player; the session does not rewind.
		snapshot := sess.Snapshot()
		obs.OnStart(snapshot)
	} else {
		if err := s.seatCharacter(ctx, sess, username, charName); err != nil {
			slog.Error("seating character", "tag", "ws", "room", roomToken, "username", username, "err", err)
			sess.DetachObserver(obs)
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "could not join game"))
			conn.Close()
			return
		}
	}

	client.OnMessage = func(data []byte) {
		var frame choiceFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			return
		}
		action, ok := game.ParseAction(frame.Choice)
		if !ok {
			return
		}
		sess.SetAction(username, action)
	}
	client.OnClose = func() {
		sess.DetachObserver(obs)
	}
	go client.ReadPump()
}

// seatCharacter fetches the named character from the user directory
// and attaches it to the session.
func (s *Server) seatCharacter(ctx context.Context, sess *game.Session, username, charName string) error {
	sheets, err := s.directory.Characters(ctx, username)
	if err != nil {
		return err
	}
	for _, sheet := range sheets {
		if sheet.Name == charName {
			c := game.NewCharacter(game.Sheet{
				Name:       sheet.Name,
				Owner:      username,
				Strength:   sheet.Strength,
				Agility:    sheet.Agility,
				Stamina:    sheet.Stamina,
				Endurance:  sheet.Endurance,
				Level:      sheet.Level,
				Experience: sheet.Experience,
			})
			return sess.AttachCharacter(c)
		}
	}
	return game.ErrCharacterNotFound
}
