package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Session errors.
var (
	ErrSlotsFull         = errors.New("both character slots are filled")
	ErrSessionEnded      = errors.New("session has ended")
	ErrAlreadySeated     = errors.New("character owner already holds a slot")
	ErrCharacterNotFound = errors.New("character not found")
)

// StartMessage is broadcast once when both slots fill, and again as a
// one-shot snapshot to a reconnecting player.
type StartMessage struct {
	Message    string     `json:"message"`
	P1Username string     `json:"p1_username"`
	P1Status   StatusView `json:"p1_status"`
	P2Username string     `json:"p2_username"`
	P2Status   StatusView `json:"p2_status"`
}

// TurnMessage is broadcast after each resolved turn.
type TurnMessage struct {
	Message    string     `json:"message"`
	P1Username string     `json:"p1_username"`
	P1Status   StatusView `json:"p1_status"`
	P1Action   string     `json:"p1_action"`
	P2Username string     `json:"p2_username"`
	P2Status   StatusView `json:"p2_status"`
	P2Action   string     `json:"p2_action"`
}

// TimerMessage is broadcast roughly once per second while waiting for
// both players to choose.
type TimerMessage struct {
	Message string `json:"message"`
	Timer   int    `json:"timer"`
}

// ResultMessage is the final broadcast of a session.
type ResultMessage struct {
	Message string `json:"message"`
}

// Observer consumes session events. Both the human connection task and
// the bot implement it. Events are delivered in registration order.
type Observer interface {
	OnStart(StartMessage)
	OnTurn(TurnMessage)
	OnTimer(TimerMessage)
	OnResult(ResultMessage)
}

// NoticeObserver is optionally implemented by observers that also want
// room-level notices (player connect announcements).
type NoticeObserver interface {
	OnNotice(message string)
}

// Reporter posts duel outcomes to the user directory. Implementations
// talk HTTP; the session fires calls once and logs failures without
// retrying.
type Reporter interface {
	AddWin(ctx context.Context, username string) error
	AddLoss(ctx context.Context, username string) error
	AddDraw(ctx context.Context, username string) error
	ChangeRating(ctx context.Context, username string, rating int) error
	UpdateCharExperience(ctx context.Context, charName string, experience int) error
}

// Recorder persists finished duels. May be backed by a nil store, in
// which case recording is a no-op.
type Recorder interface {
	RecordDuel(ctx context.Context, roomToken, p1User, p1Char, p2User, p2Char string, turns int, result string) error
}

// Options configures a session's timing and bookkeeping collaborators.
type Options struct {
	TurnTime      time.Duration
	MaxTurns      int
	RatingPerGame int
	ExpGain       int
	Reporter      Reporter
	Recorder      Recorder
}

// Session is the turn-synchronized state machine for one duel room.
// The run loop is the sole mutator of turn state; connection tasks only
// write their own character's action slot and append observers.
type Session struct {
	Token string

	opts Options

	mu         sync.Mutex
	characters [2]*Character
	observers  []Observer
	started    bool
	ended      bool
	turnNumber int

	cancel    chan struct{}
	finishing sync.Once

	// onEnd releases the session from the registry; set by the registry.
	onEnd func()
}

// NewSession creates a session in the LOBBY state.
func NewSession(token string, opts Options) *Session {
	if opts.TurnTime <= 0 {
		opts.TurnTime = 30 * time.Second
	}
	if opts.MaxTurns <= 0 {
		opts.MaxTurns = 100
	}
	return &Session{
		Token:  token,
		opts:   opts,
		cancel: make(chan struct{}),
	}
}

// AttachCharacter fills an empty slot. When the second slot fills the
// session broadcasts start, transitions to RUNNING and spawns the turn
// loop.
func (s *Session) AttachCharacter(c *Character) error {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return ErrSessionEnded
	}
	for _, seated := range s.characters {
		if seated != nil && seated.Owner == c.Owner {
			s.mu.Unlock()
			return ErrAlreadySeated
		}
	}
	switch {
	case s.characters[0] == nil:
		s.characters[0] = c
	case s.characters[1] == nil:
		s.characters[1] = c
	default:
		s.mu.Unlock()
		return ErrSlotsFull
	}
	bothSeated := s.characters[0] != nil && s.characters[1] != nil
	start := bothSeated && !s.started
	if start {
		s.started = true
	}
	s.mu.Unlock()

	slog.Info("character attached", "tag", "game", "room", s.Token, "owner", c.Owner, "character", c.Name)

	if start {
		s.broadcastStart()
		go s.run()
	}
	return nil
}

// AttachObserver registers an observer for session events.
func (s *Session) AttachObserver(o Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, o)
}

// DetachObserver removes an observer. Idempotent.
func (s *Session) DetachObserver(o Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.observers {
		if existing == o {
			s.observers = append(s.observers[:i], s.observers[i+1:]...)
			return
		}
	}
}

// Started reports whether the session has left the LOBBY state.
func (s *Session) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// Ended reports whether the session reached a terminal state.
func (s *Session) Ended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ended
}

// TurnNumber returns the number of resolved turns so far.
func (s *Session) TurnNumber() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.turnNumber
}

// CharacterByOwner returns the seated character owned by username, or
// nil when the username holds no slot.
func (s *Session) CharacterByOwner(username string) *Character {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.characters {
		if c != nil && c.Owner == username {
			return c
		}
	}
	return nil
}

// SetAction records username's choice for the current turn. Unknown
// owners and unavailable actions are ignored.
func (s *Session) SetAction(username string, a Action) {
	c := s.CharacterByOwner(username)
	if c == nil {
		return
	}
	c.SetAction(a)
}

// Snapshot returns a start-style message with the current statuses,
// used to rehydrate a reconnecting client. The session does not rewind.
func (s *Session) Snapshot() StartMessage {
	s.mu.Lock()
	c1, c2 := s.characters[0], s.characters[1]
	s.mu.Unlock()
	return StartMessage{
		Message:    "reconnect",
		P1Username: c1.Name,
		P1Status:   c1.Status(),
		P2Username: c2.Name,
		P2Status:   c2.Status(),
	}
}

// run executes turns until an end condition or the turn cap. It is the
// sole goroutine mutating turn state.
func (s *Session) run() {
	for i := 0; i < s.opts.MaxTurns; i++ {
		s.mu.Lock()
		s.turnNumber++
		c1, c2 := s.characters[0], s.characters[1]
		s.mu.Unlock()

		remaining := int(s.opts.TurnTime / time.Second)
		for remaining > 0 {
			if c1.Ready() && c2.Ready() {
				break
			}
			select {
			case <-time.After(time.Second):
			case <-s.cancel:
				return
			}
			remaining--
			s.broadcastTimer(remaining)
		}

		s.resolveTurn(c1, c2)

		result := s.checkEndCondition(i, c1, c2)
		if result != "" {
			s.broadcastResult("game ended: " + result)
			s.record(result, c1, c2)
			s.finish()
			return
		}
	}
}

// resolveTurn consumes both action slots, applies the algebra and
// broadcasts the turn outcome. Stun flags are cleared here, after the
// input window, so a stunned character spends the whole window limited
// to PASS.
func (s *Session) resolveTurn(c1, c2 *Character) {
	c1.ClearSkip()
	c2.ClearSkip()

	a1 := c1.ConsumeAction()
	a2 := c2.ConsumeAction()

	d1, d2 := Resolve(a1, a2, c1.Powers(), c2.Powers())
	c1.ApplyTurn(d1)
	c2.ApplyTurn(d2)

	s.mu.Lock()
	turn := s.turnNumber
	s.mu.Unlock()

	log := fmt.Sprintf("Turn: %d:\n%s: %s\n%s: %s", turn, c1.Name, a1, c2.Name, a2)
	s.broadcastTurn(TurnMessage{
		Message:    log,
		P1Username: c1.Name,
		P1Status:   c1.Status(),
		P1Action:   a1.String(),
		P2Username: c2.Name,
		P2Status:   c2.Status(),
		P2Action:   a2.String(),
	})
}

// checkEndCondition evaluates the end conditions after turn index i and
// performs directory bookkeeping for the outcome. Returns "" while the
// duel continues.
func (s *Session) checkEndCondition(i int, c1, c2 *Character) string {
	d1, d2 := c1.IsDead(), c2.IsDead()

	switch {
	case d1 && d2:
		s.reportDraw(c1, c2)
		return "draw"
	case d1:
		s.reportWin(c2, c1)
		return c2.Owner + " win"
	case d2:
		s.reportWin(c1, c2)
		return c1.Owner + " win"
	case i == s.opts.MaxTurns-1:
		s.reportDraw(c1, c2)
		return "draw"
	default:
		return ""
	}
}

// calcExperience returns the winner's experience gain, scaled by the
// level gap.
func (s *Session) calcExperience(winnerLevel, loserLevel int) int {
	if winnerLevel <= 0 {
		return 0
	}
	return s.opts.ExpGain * loserLevel / winnerLevel
}

func (s *Session) reportWin(winner, loser *Character) {
	r := s.opts.Reporter
	if r == nil {
		return
	}
	ctx := context.Background()
	s.report(func() error { return r.AddWin(ctx, winner.Owner) })
	s.report(func() error { return r.ChangeRating(ctx, winner.Owner, s.opts.RatingPerGame) })
	s.report(func() error { return r.AddLoss(ctx, loser.Owner) })
	s.report(func() error { return r.ChangeRating(ctx, loser.Owner, -s.opts.RatingPerGame) })
	gained := s.calcExperience(winner.Level, loser.Level)
	s.report(func() error { return r.UpdateCharExperience(ctx, winner.Name, gained) })
}

func (s *Session) reportDraw(c1, c2 *Character) {
	r := s.opts.Reporter
	if r == nil {
		return
	}
	ctx := context.Background()
	s.report(func() error { return r.AddDraw(ctx, c1.Owner) })
	s.report(func() error { return r.AddDraw(ctx, c2.Owner) })
}

// report runs one fire-and-forget directory call. Failures are logged
// and not retried.
func (s *Session) report(call func() error) {
	if err := call(); err != nil {
		slog.Error("user directory update failed", "tag", "game", "room", s.Token, "err", err)
	}
}

func (s *Session) record(result string, c1, c2 *Character) {
	rec := s.opts.Recorder
	if rec == nil {
		return
	}
	s.mu.Lock()
	turns := s.turnNumber
	s.mu.Unlock()
	if err := rec.RecordDuel(context.Background(), s.Token, c1.Owner, c1.Name, c2.Owner, c2.Name, turns, result); err != nil {
		slog.Error("recording duel result", "tag", "game", "room", s.Token, "err", err)
	}
}

// finish transitions to ENDED exactly once: cancels outstanding timer
// waits and releases the session from the registry.
func (s *Session) finish() {
	s.finishing.Do(func() {
		s.mu.Lock()
		s.ended = true
		onEnd := s.onEnd
		s.mu.Unlock()
		close(s.cancel)
		slog.Info("session ended", "tag", "game", "room", s.Token)
		if onEnd != nil {
			onEnd()
		}
	})
}

func (s *Session) observerSnapshot() []Observer {
	s.mu.Lock()
	defer s.mu.Unlock()
	obs := make([]Observer, len(s.observers))
	copy(obs, s.observers)
	return obs
}

func (s *Session) broadcastStart() {
	s.mu.Lock()
	c1, c2 := s.characters[0], s.characters[1]
	s.mu.Unlock()
	msg := StartMessage{
		Message:    "game started",
		P1Username: c1.Name,
		P1Status:   c1.Status(),
		P2Username: c2.Name,
		P2Status:   c2.Status(),
	}
	for _, o := range s.observerSnapshot() {
		o.OnStart(msg)
	}
}

func (s *Session) broadcastTurn(msg TurnMessage) {
	for _, o := range s.observerSnapshot() {
		o.OnTurn(msg)
	}
}

func (s *Session) broadcastTimer(remaining int) {
	msg := TimerMessage{Message: "timer update", Timer: remaining}
	for _, o := range s.observerSnapshot() {
		o.OnTimer(msg)
	}
}

func (s *Session) broadcastResult(message string) {
	msg := ResultMessage{Message: message}
	for _, o := range s.observerSnapshot() {
		o.OnResult(msg)
	}
}

// BroadcastNotice delivers a room-level notice to observers that
// accept them.
func (s *Session) BroadcastNotice(message string) {
	for _, o := range s.observerSnapshot() {
		if n, ok := o.(NoticeObserver); ok {
			n.OnNotice(message)
		}
	}
}
