package game

// Action is one of the five choices a character can reveal on a turn.
type Action int

const (
	ActionPass Action = iota
	ActionAttack
	ActionDefence
	ActionFeint
	ActionRest
)

// allActions lists every action in canonical order.
var allActions = []Action{ActionAttack, ActionDefence, ActionFeint, ActionRest, ActionPass}

// String returns the protocol string for an Action.
func (a Action) String() string {
	switch a {
	case ActionAttack:
		return "attack"
	case ActionDefence:
		return "defence"
	case ActionFeint:
		return "feint"
	case ActionRest:
		return "rest"
	case ActionPass:
		return "pass"
	default:
		return "unknown"
	}
}

// ParseAction maps a protocol string to an Action. The second return
// value is false for unknown strings.
func ParseAction(s string) (Action, bool) {
	switch s {
	case "attack":
		return ActionAttack, true
	case "defence":
		return ActionDefence, true
	case "feint":
		return ActionFeint, true
	case "rest":
		return ActionRest, true
	case "pass":
		return ActionPass, true
	default:
		return ActionPass, false
	}
}

// Target selects which side of the duel an effect lands on.
type Target int

const (
	TargetSelf Target = iota
	TargetEnemy
)

// Param selects which status parameter an effect modifies.
type Param int

const (
	ParamHealth Param = iota
	ParamEnergy
	ParamSkip
)

// Op is the arithmetic applied to the targeted parameter of the delta.
type Op int

const (
	OpAdd Op = iota
	OpSub
	OpMul
	OpSetTrue
)

// Effect is a single status modification carried by an action.
type Effect struct {
	Name   string
	Target Target
	Param  Param
	Op     Op
	Power  int
}

// StatusDelta accumulates all effects applied to one side during a turn.
type StatusDelta struct {
	Health int
	Energy int
	Skip   bool
}

func (d *StatusDelta) apply(e Effect) {
	switch e.Param {
	case ParamHealth:
		d.Health = applyOp(d.Health, e.Op, e.Power)
	case ParamEnergy:
		d.Energy = applyOp(d.Energy, e.Op, e.Power)
	case ParamSkip:
		if e.Op == OpSetTrue {
			d.Skip = true
		}
	}
}

func applyOp(v int, op Op, power int) int {
	switch op {
	case OpAdd:
		return v + power
	case OpSub:
		return v - power
	case OpMul:
		return v * power
	default:
		return v
	}
}

// Powers holds the character-derived magnitudes used to instantiate
// effect tables at resolve time. EPA is the energy cost of an active
// action, Damage the attack damage, AER the active energy regen.
type Powers struct {
	EPA    int
	Damage int
	AER    int
}

// effectsFor returns the base effects an action always applies, with
// powers taken from the acting character.
func effectsFor(a Action, p Powers) []Effect {
	switch a {
	case ActionAttack:
		return []Effect{
			{Name: "use_energy", Target: TargetSelf, Param: ParamEnergy, Op: OpSub, Power: p.EPA},
			{Name: "damage", Target: TargetEnemy, Param: ParamHealth, Op: OpSub, Power: p.Damage},
		}
	case ActionDefence:
		return []Effect{
			{Name: "use_energy", Target: TargetSelf, Param: ParamEnergy, Op: OpSub, Power: p.EPA},
		}
	case ActionRest:
		return []Effect{
			{Name: "gain_energy", Target: TargetSelf, Param: ParamEnergy, Op: OpAdd, Power: p.AER},
		}
	default:
		return nil
	}
}

// countersFor returns the extra effects an action applies when the
// opponent revealed the given action. Counter powers do not depend on
// character stats.
func countersFor(a, opponent Action) []Effect {
	switch {
	case a == ActionDefence && opponent == ActionAttack:
		return []Effect{
			{Name: "block", Target: TargetSelf, Param: ParamHealth, Op: OpMul, Power: 0},
			{Name: "energy_penalty", Target: TargetEnemy, Param: ParamEnergy, Op: OpMul, Power: 2},
			{Name: "stun", Target: TargetEnemy, Param: ParamSkip, Op: OpSetTrue},
		}
	case a == ActionFeint && opponent == ActionDefence:
		return []Effect{
			{Name: "energy_penalty", Target: TargetEnemy, Param: ParamEnergy, Op: OpMul, Power: 2},
			{Name: "stun", Target: TargetEnemy, Param: ParamSkip, Op: OpSetTrue},
		}
	default:
		return nil
	}
}

// Resolve computes the status deltas of one turn from the ordered pair
// of revealed actions. Base effects of both sides are applied first,
// then counter effects, so a blocking multiplier always sees the
// already-accumulated delta.
func Resolve(left, right Action, leftP, rightP Powers) (StatusDelta, StatusDelta) {
	var dl, dr StatusDelta

	applyTo := func(e Effect, self, other *StatusDelta) {
		if e.Target == TargetSelf {
			self.apply(e)
		} else {
			other.apply(e)
		}
	}

	for _, e := range effectsFor(left, leftP) {
		applyTo(e, &dl, &dr)
	}
	for _, e := range effectsFor(right, rightP) {
		applyTo(e, &dr, &dl)
	}
	for _, e := range countersFor(left, right) {
		applyTo(e, &dl, &dr)
	}
	for _, e := range countersFor(right, left) {
		applyTo(e, &dr, &dl)
	}

	return dl, dr
}
