package game

import (
	"encoding/json"
	"sync"
)

// Stat multipliers for derived character quantities.
const (
	hpPerEndurance = 20
	enPerStamina   = 20
	dmgPerStrength = 4
	bePerStamina   = 2
	aePerStamina   = 8
)

// Sheet is the immutable character description fetched from the user
// directory before a duel starts.
type Sheet struct {
	Name       string `json:"name"`
	Owner      string `json:"owner"`
	Strength   int    `json:"strength"`
	Agility    int    `json:"agility"`
	Stamina    int    `json:"stamina"`
	Endurance  int    `json:"endurance"`
	Level      int    `json:"level"`
	Experience int    `json:"experience"`
}

// Character is one combatant's runtime state during a duel. Stats are
// fixed at creation; health, energy and the action slot change per
// turn. The action slot is written by the connection goroutine and
// consumed by the session loop, so it is guarded by a mutex.
type Character struct {
	Name  string
	Owner string

	Level      int
	Experience int

	MaxHealth int
	MaxEnergy int
	Damage    int
	EPA       int // energy cost per active action
	BER       int // base energy regen per turn
	AER       int // active energy regen (rest)

	mu            sync.Mutex
	health        int
	energy        int
	skipTurn      bool
	isDead        bool
	currentAction Action
	lastAction    Action
	readyToAct    bool
}

// NewCharacter builds a combatant from its directory sheet with full
// health and energy.
func NewCharacter(s Sheet) *Character {
	c := &Character{
		Name:       s.Name,
		Owner:      s.Owner,
		Level:      s.Level,
		Experience: s.Experience,
		MaxHealth:  s.Endurance * hpPerEndurance,
		MaxEnergy:  s.Stamina * enPerStamina,
		Damage:     s.Strength * dmgPerStrength,
		EPA:        100 / s.Agility,
		BER:        s.Stamina * bePerStamina,
		AER:        s.Stamina * aePerStamina,
	}
	c.health = c.MaxHealth
	c.energy = c.MaxEnergy
	c.currentAction = ActionPass
	c.lastAction = ActionPass
	return c
}

// AvailableActions returns the set of actions the character may choose
// this turn. A dead character has none; a stunned one may only pass;
// attack and defence require at least EPA energy.
func (c *Character) AvailableActions() []Action {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.availableLocked()
}

func (c *Character) availableLocked() []Action {
	if c.isDead {
		return nil
	}
	if c.skipTurn {
		return []Action{ActionPass}
	}
	if c.energy < c.EPA {
		return []Action{ActionFeint, ActionRest}
	}
	return []Action{ActionAttack, ActionDefence, ActionFeint, ActionRest}
}

// SetAction records the character's choice for the current turn.
// Choices outside the available set are silently ignored, so hostile
// or stale input cannot corrupt the slot.
func (c *Character) SetAction(a Action) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, avail := range c.availableLocked() {
		if avail == a {
			c.currentAction = a
			c.readyToAct = true
			return
		}
	}
}

// ConsumeAction atomically captures the chosen action and resets the
// slot to PASS for the next turn.
func (c *Character) ConsumeAction() Action {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastAction = c.currentAction
	c.currentAction = ActionPass
	c.readyToAct = false
	return c.lastAction
}

// LastAction returns the action consumed by the most recent turn.
func (c *Character) LastAction() Action {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastAction
}

// Ready reports whether the character has chosen an action this turn.
func (c *Character) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readyToAct
}

// ClearSkip lifts a stun before input collection for the next turn.
func (c *Character) ClearSkip() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.skipTurn = false
}

// ApplyTurn folds one turn's status delta into the character. Health
// is not clamped upward from zero: the recorded value may go negative
// and death triggers the instant it reaches zero or below. Energy is
// clamped to [0, MaxEnergy] after base regen is added.
func (c *Character) ApplyTurn(d StatusDelta) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.health += d.Health
	if c.health <= 0 {
		c.isDead = true
	}

	c.energy += d.Energy + c.BER
	if c.energy > c.MaxEnergy {
		c.energy = c.MaxEnergy
	}
	if c.energy < 0 {
		c.energy = 0
	}

	c.skipTurn = d.Skip
}

// Powers returns the magnitudes this character contributes to effect
// resolution.
func (c *Character) Powers() Powers {
	return Powers{EPA: c.EPA, Damage: c.Damage, AER: c.AER}
}

// Health returns the current (possibly negative) health.
func (c *Character) Health() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.health
}

// Energy returns the current energy.
func (c *Character) Energy() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.energy
}

// IsDead reports whether health has reached zero.
func (c *Character) IsDead() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isDead
}

// Status returns the character's externally visible state.
func (c *Character) Status() StatusView {
	c.mu.Lock()
	defer c.mu.Unlock()
	actions := c.availableLocked()
	names := make([]string, 0, len(actions))
	for _, a := range actions {
		names = append(names, a.String())
	}
	return StatusView{
		Health:    c.health,
		Energy:    c.energy,
		Available: names,
		IsDead:    c.isDead,
	}
}

// StatusView is the wire representation of a character's state,
// serialized as the positional array [health, energy, actions, is_dead].
type StatusView struct {
	Health    int
	Energy    int
	Available []string
	IsDead    bool
}

// MarshalJSON encodes the status as a positional array.
func (s StatusView) MarshalJSON() ([]byte, error) {
	avail := s.Available
	if avail == nil {
		avail = []string{}
	}
	return json.Marshal([]any{s.Health, s.Energy, avail, s.IsDead})
}

// UnmarshalJSON decodes the positional array form.
func (s *StatusView) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw[0], &s.Health); err != nil {
			return err
		}
	}
	if len(raw) > 1 {
		if err := json.Unmarshal(raw[1], &s.Energy); err != nil {
			return err
		}
	}
	if len(raw) > 2 {
		if err := json.Unmarshal(raw[2], &s.Available); err != nil {
			return err
		}
	}
	if len(raw) > 3 {
		if err := json.Unmarshal(raw[3], &s.IsDead); err != nil {
			return err
		}
	}
	return nil
}

// CanAct reports whether a named action is in the available set. Used
// by the bot to reason about the opponent from broadcast state.
func (s StatusView) CanAct(name string) bool {
	for _, a := range s.Available {
		if a == name {
			return true
		}
	}
	return false
}
