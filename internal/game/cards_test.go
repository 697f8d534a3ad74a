package game_test

import (
	"slices"
	"testing"

	"flip7-server/internal/game"
)

func TestBuildDeckComposition(t *testing.T) {
	deck := game.NewDeck()

	if deck.Count() != game.DeckSize {
		t.Errorf("Deck should be %d cards, %d given.", game.DeckSize, deck.Count())
	}

	valueCounts := make(map[int]int)
	addCounts := make(map[int]int)
	multiplyCount := 0
	actionCounts := make(map[game.ActionKind]int)

	for _, card := range deck.Cards {
		switch card.Kind {
		case game.Number:
			valueCounts[card.Value]++
		case game.Modifier:
			if card.ModifierKind == game.Multiply {
				multiplyCount++
			} else {
				addCounts[card.ModifierValue]++
			}
		case game.Action:
			actionCounts[card.ActionKind]++
		}
	}

	if valueCounts[0] != 1 {
		t.Errorf("Expected exactly one 0 card, got %d", valueCounts[0])
	}
	for value := 1; value <= game.MaxNumberValue; value++ {
		if valueCounts[value] != value {
			t.Errorf("Expected %d copies of value %d, got %d", value, value, valueCounts[value])
		}
	}

	for _, bonus := range []int{2, 4, 6, 8, 10} {
		if addCounts[bonus] != 3 {
			t.Errorf("Expected 3 copies of +%d, got %d", bonus, addCounts[bonus])
		}
	}
	if multiplyCount != 1 {
		t.Errorf("Expected exactly one x2, got %d", multiplyCount)
	}

	for _, action := range []game.ActionKind{game.Freeze, game.FlipThree, game.SecondChance} {
		if actionCounts[action] != 3 {
			t.Errorf("Expected 3 copies of %s, got %d", action, actionCounts[action])
		}
	}
}

func TestDeckIDsUnique(t *testing.T) {
	deck := game.NewDeck()

	seen := make(map[int]bool)
	for _, card := range deck.Cards {
		if seen[card.ID] {
			t.Errorf("Duplicate card id %d", card.ID)
		}
		seen[card.ID] = true
	}
}

func TestDraw(t *testing.T) {
	deck := game.NewDeck()
	top := deck.Cards[deck.Count()-1]

	drawn := deck.Draw()

	if drawn != top {
		t.Errorf("Expected to draw top card %s, got %s", top, drawn)
	}
	if deck.Count() != game.DeckSize-1 {
		t.Errorf("Deck should have %d cards, %d given", game.DeckSize-1, deck.Count())
	}
}

func TestShuffle(t *testing.T) {
	deckA := game.NewDeck()
	deckB := game.NewDeck()

	if !slices.Equal(deckA.Cards, deckB.Cards) {
		t.Error("Your decks aren't equal to start")
	}

	deckB.Shuffle()

	if slices.Equal(deckA.Cards, deckB.Cards) {
		t.Error("Shuffling didn't work")
	}
}

func TestScaledDeckSinglePlayerCount(t *testing.T) {
	deck := game.NewScaledDeck(4)

	if deck.Count() != game.DeckSize {
		t.Errorf("4 players should get one deck of %d cards, got %d", game.DeckSize, deck.Count())
	}
}

func TestScaledDeckLargeTable(t *testing.T) {
	deck := game.NewScaledDeck(15)

	if deck.Count() != 2*game.DeckSize {
		t.Errorf("15 players should get %d cards, got %d", 2*game.DeckSize, deck.Count())
	}

	seen := make(map[int]bool)
	for _, card := range deck.Cards {
		if seen[card.ID] {
			t.Errorf("Duplicate card id %d across scaled decks", card.ID)
		}
		seen[card.ID] = true
	}
}
