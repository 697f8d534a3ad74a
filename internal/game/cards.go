package game

import (
	"fmt"
	"math/rand"
)

type CardKind string

const (
	Number   CardKind = "number"
	Action   CardKind = "action"
	Modifier CardKind = "modifier"
)

type ActionKind string

const (
	Freeze       ActionKind = "freeze"
	FlipThree    ActionKind = "flipThree"
	SecondChance ActionKind = "secondChance"
)

type ModifierKind string

const (
	Add      ModifierKind = "add"
	Multiply ModifierKind = "multiply"
)

// MaxNumberValue is the highest number card in the deck. Number cards run 0..12.
const MaxNumberValue = 12

// PlayersPerDeck is how many seats a single deck supports before another
// full deck is mixed in.
const PlayersPerDeck = 10

// Card is immutable once created. Ownership moves between the deck, the
// discard pile and player hands; a card is never duplicated or destroyed.
type Card struct {
	ID            int          `json:"id"`
	Kind          CardKind     `json:"kind"`
	Value         int          `json:"value"`
	ActionKind    ActionKind   `json:"actionKind,omitempty"`
	ModifierKind  ModifierKind `json:"modifierKind,omitempty"`
	ModifierValue int          `json:"modifierValue,omitempty"`
}

func (c Card) String() string {
	switch c.Kind {
	case Number:
		return fmt.Sprintf("[%d]", c.Value)
	case Action:
		return fmt.Sprintf("[%s]", c.ActionKind)
	case Modifier:
		if c.ModifierKind == Multiply {
			return fmt.Sprintf("[x%d]", c.ModifierValue)
		}
		return fmt.Sprintf("[+%d]", c.ModifierValue)
	}
	return "[?]"
}

// IsAction reports whether the card is an action card of the given kind.
func (c Card) IsAction(kind ActionKind) bool {
	return c.Kind == Action && c.ActionKind == kind
}

type Deck struct {
	Cards []Card `json:"cards"`
}

// NewDeck builds an unshuffled standard deck: one 0 plus each value 1..12
// with quantity equal to the value, three copies of each +2/+4/+6/+8/+10
// modifier, a single x2 multiplier, and three each of the Freeze, Flip
// Three and Second Chance action cards. 104 cards total.
func NewDeck() *Deck {
	return buildDeck(0)
}

// NewScaledDeck concatenates one independently shuffled standard deck per
// ten seats, with globally unique card ids. For ten or fewer players this
// is a single shuffled deck.
func NewScaledDeck(playerCount int) *Deck {
	deckCount := (playerCount + PlayersPerDeck - 1) / PlayersPerDeck
	if deckCount < 1 {
		deckCount = 1
	}

	combined := &Deck{Cards: make([]Card, 0, deckCount*DeckSize)}
	for i := range deckCount {
		d := buildDeck(i * DeckSize)
		d.Shuffle()
		combined.Cards = append(combined.Cards, d.Cards...)
	}
	return combined
}

// DeckSize is the card count of one standard deck.
const DeckSize = 104

func buildDeck(firstID int) *Deck {
	cards := make([]Card, 0, DeckSize)
	id := firstID

	next := func(c Card) {
		c.ID = id
		id++
		cards = append(cards, c)
	}

	// Number cards: quantity matches the value, except a single 0.
	next(Card{Kind: Number, Value: 0})
	for value := 1; value <= MaxNumberValue; value++ {
		for range value {
			next(Card{Kind: Number, Value: value})
		}
	}

	// Add modifiers: +2 through +10, three copies each.
	for _, bonus := range []int{2, 4, 6, 8, 10} {
		for range 3 {
			next(Card{Kind: Modifier, ModifierKind: Add, ModifierValue: bonus})
		}
	}

	// One x2 multiplier.
	next(Card{Kind: Modifier, ModifierKind: Multiply, ModifierValue: 2})

	// Action cards: three of each.
	for _, action := range []ActionKind{Freeze, FlipThree, SecondChance} {
		for range 3 {
			next(Card{Kind: Action, ActionKind: action})
		}
	}

	return &Deck{Cards: cards}
}

func (d *Deck) Count() int {
	return len(d.Cards)
}

// Draw removes and returns the top card. The top of the pile is the end of
// the slice. Callers are responsible for checking Count first.
func (d *Deck) Draw() Card {
	card := d.Cards[len(d.Cards)-1]
	d.Cards = d.Cards[:len(d.Cards)-1]
	return card
}

func (d *Deck) Shuffle() {
	rand.Shuffle(d.Count(), func(i, j int) {
		d.Cards[i], d.Cards[j] = d.Cards[j], d.Cards[i]
	})
}
