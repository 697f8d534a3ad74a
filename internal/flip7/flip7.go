package flip7

import (
	"flip7-server/internal/game"
)

type GameStatus string

const (
	StatusWaiting  GameStatus = "waiting"
	StatusPlaying  GameStatus = "playing"
	StatusRoundEnd GameStatus = "roundEnd"
	StatusGameEnd  GameStatus = "gameEnd"
)

type AIDifficulty string

const (
	Conservative AIDifficulty = "conservative"
	Moderate     AIDifficulty = "moderate"
	Aggressive   AIDifficulty = "aggressive"
)

const (
	// TargetScore ends the game once any player's cumulative score reaches it,
	// checked at round end.
	TargetScore = 200

	// Flip7Count is the number of distinct number values that ends the round
	// on the spot and grants the bonus.
	Flip7Count = 7

	// Flip7Bonus is added after all modifiers.
	Flip7Bonus = 15

	// reshuffleThreshold: StartNextRound folds the discard pile back into the
	// deck when fewer cards than this remain.
	reshuffleThreshold = 10
)

// SecondChanceUse records which draw consumed a Second Chance and which
// physical card was spent. A player can hold several Second Chance cards, so
// the spent one has to be named explicitly.
type SecondChanceUse struct {
	TriggeringCardID   int `json:"triggeringCardId"`
	SecondChanceCardID int `json:"secondChanceCardId"`
}

type Player struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	IsAI         bool         `json:"isAI"`
	AIDifficulty AIDifficulty `json:"aiDifficulty,omitempty"`

	// Cards is the canonical hand. The three sublists below are a derived
	// view recomputed by refreshCardGroups after every hand mutation; they
	// are never patched incrementally.
	Cards         []game.Card `json:"cards"`
	NumberCards   []game.Card `json:"numberCards"`
	ModifierCards []game.Card `json:"modifierCards"`
	ActionCards   []game.Card `json:"actionCards"`

	Score int `json:"score"`

	// Per-round flags, reset by StartRound.
	IsActive           bool              `json:"isActive"`
	HasBusted          bool              `json:"hasBusted"`
	HasSecondChance    bool              `json:"hasSecondChance"`
	SecondChanceUsedBy []SecondChanceUse `json:"secondChanceUsedBy,omitempty"`
	FrozenBy           string            `json:"frozenBy,omitempty"`
}

// PendingActionCard marks a drawn Freeze or Flip Three awaiting a target
// choice. While set, the owning player may not hit or stay.
type PendingActionCard struct {
	PlayerID   string          `json:"playerId"`
	CardID     int             `json:"cardId"`
	ActionKind game.ActionKind `json:"actionKind"`
}

type PlayerRoundResult struct {
	PlayerID string      `json:"playerId"`
	Name     string      `json:"name"`
	Score    int         `json:"score"`
	Busted   bool        `json:"busted"`
	Cards    []game.Card `json:"cards"`
}

type RoundRecord struct {
	Round   int                 `json:"round"`
	Results []PlayerRoundResult `json:"results"`
}

// Game is the authoritative state of a single Flip 7 game. Its methods are
// not internally synchronized: callers must serialize mutating operations
// per game (the room coordinator holds one lock per room). Every mutation
// runs to completion, so reads between operations always see committed
// state. The whole struct round-trips through JSON.
type Game struct {
	ID                 string             `json:"id"`
	Players            []*Player          `json:"players"`
	Deck               *game.Deck         `json:"deck"`
	DiscardPile        []game.Card        `json:"discardPile"`
	CurrentPlayerIndex int                `json:"currentPlayerIndex"`
	Round              int                `json:"round"`
	DealerIndex        int                `json:"dealerIndex"`
	GameStatus         GameStatus         `json:"gameStatus"`
	RoundScores        map[string]int     `json:"roundScores"`
	RoundHistory       []RoundRecord      `json:"roundHistory"`
	LargestRound       int                `json:"largestRound"`
	PendingActionCard  *PendingActionCard `json:"pendingActionCard,omitempty"`
}

// refreshCardGroups rebuilds the derived sublists from the canonical hand.
func (p *Player) refreshCardGroups() {
	p.NumberCards = p.NumberCards[:0]
	p.ModifierCards = p.ModifierCards[:0]
	p.ActionCards = p.ActionCards[:0]
	for _, c := range p.Cards {
		switch c.Kind {
		case game.Number:
			p.NumberCards = append(p.NumberCards, c)
		case game.Modifier:
			p.ModifierCards = append(p.ModifierCards, c)
		case game.Action:
			p.ActionCards = append(p.ActionCards, c)
		}
	}
}

func (p *Player) addCard(c game.Card) {
	p.Cards = append(p.Cards, c)
	p.refreshCardGroups()
}

// removeCard takes a card out of the hand by id. Returns false if the
// player does not hold it.
func (p *Player) removeCard(id int) (game.Card, bool) {
	for i, c := range p.Cards {
		if c.ID == id {
			p.Cards = append(p.Cards[:i], p.Cards[i+1:]...)
			p.refreshCardGroups()
			return c, true
		}
	}
	return game.Card{}, false
}

func (p *Player) findActionCard(id int) (game.Card, bool) {
	for _, c := range p.ActionCards {
		if c.ID == id {
			return c, true
		}
	}
	return game.Card{}, false
}

func (p *Player) holdsValue(value int) bool {
	for _, c := range p.NumberCards {
		if c.Value == value {
			return true
		}
	}
	return false
}

func (p *Player) uniqueNumberCount() int {
	seen := make(map[int]bool, len(p.NumberCards))
	for _, c := range p.NumberCards {
		seen[c.Value] = true
	}
	return len(seen)
}

// unusedSecondChanceCard returns the first Second Chance card in hand that
// has not been spent this round, or nil.
func (p *Player) unusedSecondChanceCard() *game.Card {
	for i, c := range p.ActionCards {
		if !c.IsAction(game.SecondChance) {
			continue
		}
		used := false
		for _, u := range p.SecondChanceUsedBy {
			if u.SecondChanceCardID == c.ID {
				used = true
				break
			}
		}
		if !used {
			return &p.ActionCards[i]
		}
	}
	return nil
}

// hasSecondChanceProtection reports whether a bust would be absorbed: either
// the granted flag is set or an unspent Second Chance card sits in the hand
// (the latter covers cards dealt face-up at round start).
func (p *Player) hasSecondChanceProtection() bool {
	return p.HasSecondChance || p.unusedSecondChanceCard() != nil
}

// heldFlipThree returns an unresolved Flip Three card in the hand, if any.
func (p *Player) heldFlipThree() (game.Card, bool) {
	for _, c := range p.ActionCards {
		if c.IsAction(game.FlipThree) {
			return c, true
		}
	}
	return game.Card{}, false
}

func (g *Game) findPlayer(id string) *Player {
	for _, p := range g.Players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (g *Game) currentPlayer() *Player {
	if len(g.Players) == 0 {
		return nil
	}
	return g.Players[g.CurrentPlayerIndex]
}

// activePlayers returns players still in the round. With excludeID set, that
// player is skipped; pass "" to include everyone.
func (g *Game) activePlayers(excludeID string) []*Player {
	active := make([]*Player, 0, len(g.Players))
	for _, p := range g.Players {
		if p.IsActive && p.ID != excludeID {
			active = append(active, p)
		}
	}
	return active
}

// TotalCardCount counts every card across deck, discard and hands. It is
// constant for the lifetime of a game (conservation invariant).
func (g *Game) TotalCardCount() int {
	total := g.Deck.Count() + len(g.DiscardPile)
	for _, p := range g.Players {
		total += len(p.Cards)
	}
	return total
}
