package wsutil

import "log/slog"

// SafeSend sends data to a client send channel without panicking if
// the channel is closed. A full or closed channel drops the frame;
// slow consumers never block a session or lobby loop.
func SafeSend(ch chan []byte, data []byte) {
	defer func() {
		if r := recover(); r != nil {
			slog.Debug("SafeSend recovered panic", "tag", "wsutil", "panic", r)
		}
	}()
	select {
	case ch <- data:
	default:
	}
}
