package ai

import (
	"log/slog"
	"math/rand"

	"duel-game-server/game"
)

// BotName is the reserved username and character name of the synthetic
// opponent.
const BotName = "Bot"

// botSheet is the canonical bot loadout.
var botSheet = game.Sheet{
	Name:      BotName,
	Owner:     BotName,
	Strength:  5,
	Agility:   5,
	Stamina:   5,
	Endurance: 5,
	Level:     1,
}

// Bot is a synthetic opponent. It implements game.Observer and chooses
// an action on every start and turn broadcast by sampling a weighted
// action multiset derived from both statuses.
type Bot struct {
	character *game.Character
	rng       *rand.Rand
}

// NewBot creates a bot with the canonical stats and its own character.
func NewBot() *Bot {
	return &Bot{
		character: game.NewCharacter(botSheet),
		rng:       rand.New(rand.NewSource(rand.Int63())),
	}
}

// Character returns the bot's combatant for session attachment.
func (b *Bot) Character() *game.Character {
	return b.character
}

// OnStart chooses the opening action.
func (b *Bot) OnStart(msg game.StartMessage) {
	own, opponent := b.splitStatuses(msg.P1Username, msg.P1Status, msg.P2Status)
	b.character.SetAction(b.chooseAction(own, opponent))
}

// OnTurn chooses the next action from the post-turn statuses.
func (b *Bot) OnTurn(msg game.TurnMessage) {
	own, opponent := b.splitStatuses(msg.P1Username, msg.P1Status, msg.P2Status)
	b.character.SetAction(b.chooseAction(own, opponent))
}

// OnTimer is ignored; the bot decides immediately.
func (b *Bot) OnTimer(game.TimerMessage) {}

// OnResult is ignored.
func (b *Bot) OnResult(game.ResultMessage) {}

func (b *Bot) splitStatuses(p1Username string, p1, p2 game.StatusView) (own, opponent game.StatusView) {
	if p1Username == b.character.Name {
		return p1, p2
	}
	return p2, p1
}

// chooseAction computes the weighted action multiset and samples it.
func (b *Bot) chooseAction(own, opponent game.StatusView) game.Action {
	if own.Energy < 20 {
		return game.ActionPass
	}

	weights := map[game.Action]int{
		game.ActionAttack:  1,
		game.ActionDefence: 1,
		game.ActionFeint:   1,
	}

	if own.Energy < 50 {
		weights[game.ActionRest]++
	}
	if own.Energy > opponent.Energy {
		weights[game.ActionAttack]++
	}
	if own.Health > opponent.Health {
		weights[game.ActionFeint]++
	}
	if own.Health < opponent.Health {
		weights[game.ActionDefence]++
	}

	// Counters are pointless against an opponent who can neither
	// attack nor defend this turn.
	if !opponent.CanAct("attack") && !opponent.CanAct("defence") {
		weights[game.ActionDefence] = 0
		weights[game.ActionFeint] = 0
	}

	available := make(map[game.Action]bool)
	for _, a := range b.character.AvailableActions() {
		available[a] = true
	}

	var pool []game.Action
	for _, a := range []game.Action{game.ActionAttack, game.ActionDefence, game.ActionFeint, game.ActionRest} {
		if !available[a] {
			continue
		}
		for i := 0; i < weights[a]; i++ {
			pool = append(pool, a)
		}
	}

	if len(pool) == 0 {
		return game.ActionPass
	}

	choice := pool[b.rng.Intn(len(pool))]
	slog.Debug("bot move", "tag", "ai", "choice", choice.String(), "pool", len(pool))
	return choice
}
