package ws

import (
	"encoding/json"
	"log/slog"

	"duel-game-server/game"
	"duel-game-server/wsutil"
)

// gameObserver forwards session events to one game-room connection,
// framing them with the protocol message_type.
type gameObserver struct {
	send chan []byte
}

func newGameObserver(c *Client) *gameObserver {
	return &gameObserver{send: c.Send}
}

func (o *gameObserver) OnStart(m game.StartMessage) {
	o.push(struct {
		MessageType string `json:"message_type"`
		game.StartMessage
	}{"game started", m})
}

func (o *gameObserver) OnTurn(m game.TurnMessage) {
	o.push(struct {
		MessageType string `json:"message_type"`
		game.TurnMessage
	}{"turn", m})
}

func (o *gameObserver) OnTimer(m game.TimerMessage) {
	o.push(struct {
		MessageType string `json:"message_type"`
		game.TimerMessage
	}{"timer", m})
}

func (o *gameObserver) OnResult(m game.ResultMessage) {
	o.push(struct {
		MessageType string `json:"message_type"`
		game.ResultMessage
	}{"game result", m})
}

// OnNotice delivers room-level announcements (player connects).
func (o *gameObserver) OnNotice(message string) {
	o.push(struct {
		MessageType string `json:"message_type"`
		Message     string `json:"message"`
	}{"player connect", message})
}

func (o *gameObserver) push(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("marshaling game event", "tag", "ws", "err", err)
		return
	}
	wsutil.SafeSend(o.send, data)
}
