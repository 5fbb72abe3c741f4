package game

import (
	"encoding/json"
	"testing"
)

func baseSheet() Sheet {
	return Sheet{
		Name:      "Warrior",
		Owner:     "alice",
		Strength:  5,
		Agility:   5,
		Stamina:   5,
		Endurance: 5,
		Level:     1,
	}
}

func TestNewCharacterDerivedStats(t *testing.T) {
	c := NewCharacter(baseSheet())

	if c.MaxHealth != 100 {
		t.Errorf("MaxHealth = %d, want 100", c.MaxHealth)
	}
	if c.MaxEnergy != 100 {
		t.Errorf("MaxEnergy = %d, want 100", c.MaxEnergy)
	}
	if c.Damage != 20 {
		t.Errorf("Damage = %d, want 20", c.Damage)
	}
	if c.EPA != 20 {
		t.Errorf("EPA = %d, want 20", c.EPA)
	}
	if c.BER != 10 {
		t.Errorf("BER = %d, want 10", c.BER)
	}
	if c.AER != 40 {
		t.Errorf("AER = %d, want 40", c.AER)
	}
	if c.Health() != 100 || c.Energy() != 100 {
		t.Errorf("runtime state = (%d, %d), want full (100, 100)", c.Health(), c.Energy())
	}
}

func hasAction(actions []Action, want Action) bool {
	for _, a := range actions {
		if a == want {
			return true
		}
	}
	return false
}

func TestAvailableActions(t *testing.T) {
	c := NewCharacter(baseSheet())

	avail := c.AvailableActions()
	if len(avail) != 4 || hasAction(avail, ActionPass) {
		t.Errorf("healthy available = %v, want attack/defence/feint/rest", avail)
	}

	// At exactly epa energy the active actions stay available; one
	// below and they drop out.
	c.energy = c.EPA
	if avail = c.AvailableActions(); !hasAction(avail, ActionAttack) || !hasAction(avail, ActionDefence) {
		t.Errorf("at energy=epa available = %v, want attack and defence present", avail)
	}
	c.energy = c.EPA - 1
	avail = c.AvailableActions()
	if hasAction(avail, ActionAttack) || hasAction(avail, ActionDefence) {
		t.Errorf("at energy=epa-1 available = %v, want attack and defence absent", avail)
	}
	if !hasAction(avail, ActionFeint) || !hasAction(avail, ActionRest) {
		t.Errorf("at energy=epa-1 available = %v, want feint and rest present", avail)
	}

	c.energy = c.MaxEnergy
	c.skipTurn = true
	if avail = c.AvailableActions(); len(avail) != 1 || avail[0] != ActionPass {
		t.Errorf("stunned available = %v, want only pass", avail)
	}

	c.skipTurn = false
	c.isDead = true
	if avail = c.AvailableActions(); len(avail) != 0 {
		t.Errorf("dead available = %v, want none", avail)
	}
}

func TestSetActionValidation(t *testing.T) {
	c := NewCharacter(baseSheet())

	c.SetAction(ActionAttack)
	if !c.Ready() {
		t.Fatal("attack should be accepted when available")
	}
	if got := c.ConsumeAction(); got != ActionAttack {
		t.Errorf("consumed %v, want attack", got)
	}
	if c.Ready() {
		t.Error("consume must reset readiness")
	}

	// PASS is not selectable while healthy; the slot stays at its
	// post-consume default.
	c.SetAction(ActionPass)
	if c.Ready() {
		t.Error("pass should be ignored for a healthy character")
	}
	if got := c.ConsumeAction(); got != ActionPass {
		t.Errorf("consumed %v, want default pass", got)
	}

	// Stunned: only PASS is accepted.
	c.skipTurn = true
	c.SetAction(ActionAttack)
	if c.Ready() {
		t.Error("attack should be ignored while stunned")
	}
	c.SetAction(ActionPass)
	if !c.Ready() {
		t.Error("pass should be accepted while stunned")
	}
}

func TestApplyTurnClamping(t *testing.T) {
	c := NewCharacter(baseSheet())

	// Energy clamps to max after regen.
	c.ApplyTurn(StatusDelta{Energy: 40})
	if c.Energy() != c.MaxEnergy {
		t.Errorf("energy = %d, want clamped to %d", c.Energy(), c.MaxEnergy)
	}

	// Energy never goes negative.
	c.ApplyTurn(StatusDelta{Energy: -1000})
	if c.Energy() != 0 {
		t.Errorf("energy = %d, want clamped to 0", c.Energy())
	}

	// Health is allowed to go negative; death triggers at zero.
	c.ApplyTurn(StatusDelta{Health: -150})
	if !c.IsDead() {
		t.Error("character should be dead at negative health")
	}
	if c.Health() != -50 {
		t.Errorf("health = %d, want -50 (not clamped)", c.Health())
	}
}

func TestApplyTurnAddsBaseRegen(t *testing.T) {
	c := NewCharacter(baseSheet())
	c.energy = 50

	// An attack turn costs epa but regains ber: net -10.
	c.ApplyTurn(StatusDelta{Energy: -c.EPA})
	if c.Energy() != 40 {
		t.Errorf("energy = %d, want 40 after epa cost plus ber regen", c.Energy())
	}

	// A rest turn nets aer + ber.
	c.ApplyTurn(StatusDelta{Energy: c.AER})
	if c.Energy() != 90 {
		t.Errorf("energy = %d, want 90 after aer plus ber", c.Energy())
	}
}

func TestSkipFlagLifecycle(t *testing.T) {
	c := NewCharacter(baseSheet())

	c.ApplyTurn(StatusDelta{Skip: true})
	if avail := c.AvailableActions(); len(avail) != 1 || avail[0] != ActionPass {
		t.Fatalf("stunned available = %v, want only pass", avail)
	}

	c.ClearSkip()
	if avail := c.AvailableActions(); hasAction(avail, ActionPass) {
		t.Errorf("after ClearSkip available = %v, want active set", avail)
	}
}

func TestStatusViewJSON(t *testing.T) {
	c := NewCharacter(baseSheet())
	data, err := json.Marshal(c.Status())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `[100,100,["attack","defence","feint","rest"],false]`
	if string(data) != want {
		t.Errorf("status JSON = %s, want %s", data, want)
	}

	var round StatusView
	if err := json.Unmarshal(data, &round); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if round.Health != 100 || round.Energy != 100 || round.IsDead || !round.CanAct("attack") {
		t.Errorf("round-tripped status = %+v", round)
	}
}
