package flip7

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"flip7-server/internal/game"
)

// botGame builds a two-seat game with an AI in seat 1, a hand-picked bot
// hand and a deck whose composition fixes the bust odds.
func botGame(t *testing.T, difficulty AIDifficulty, hand, deck []game.Card) *Game {
	t.Helper()
	g, err := NewGame([]string{"Ana", "Bot"}, []AIDifficulty{difficulty})
	if err != nil {
		t.Fatalf("NewGame: %v", err)
	}
	g.GameStatus = StatusPlaying
	for _, c := range hand {
		g.Players[1].addCard(c)
	}
	g.Deck.Cards = deck
	return g
}

func TestMakeAIDecisionRejectsNonAIPlayers(t *testing.T) {
	assert := assert.New(t)
	g := botGame(t, Moderate, nil, nil)

	_, err := g.MakeAIDecision("player_0")
	assert.ErrorContains(err, "PLAYER_NOT_AI")

	_, err = g.MakeAIDecision("ghost")
	assert.ErrorContains(err, "PLAYER_NOT_FOUND")
}

func TestAIHitsBelowMinimumScore(t *testing.T) {
	// 5 points is below every profile's floor; even a deck of pure
	// duplicates doesn't stop the draw.
	g := botGame(t, Conservative,
		[]game.Card{num(1, 5)},
		[]game.Card{num(2, 5), num(3, 5)})

	d, err := g.MakeAIDecision("player_1")
	assert.NoError(t, err)
	assert.Equal(t, "hit", d.Action)
}

func TestAIStaysOnBadOdds(t *testing.T) {
	// Score 20 is bankable and every remaining number card busts.
	g := botGame(t, Conservative,
		[]game.Card{num(1, 8), num(2, 12)},
		[]game.Card{num(3, 8), num(4, 12), num(5, 8)})

	d, err := g.MakeAIDecision("player_1")
	assert.NoError(t, err)
	assert.Equal(t, "stay", d.Action)
}

func TestAIHitsOnSafeOdds(t *testing.T) {
	g := botGame(t, Moderate,
		[]game.Card{num(1, 8), num(2, 12)},
		[]game.Card{num(3, 1), num(4, 2), num(5, 3)})

	d, err := g.MakeAIDecision("player_1")
	assert.NoError(t, err)
	assert.Equal(t, "hit", d.Action)
}

func TestAISecondChanceDoublesRiskTolerance(t *testing.T) {
	assert := assert.New(t)
	hand := []game.Card{num(1, 5), num(2, 8)}
	// 2 of 5 remaining number cards duplicate the hand: 40% bust odds,
	// past the conservative cap but inside the doubled one.
	deck := []game.Card{num(3, 5), num(4, 8), num(5, 1), num(6, 2), num(7, 3)}

	g := botGame(t, Conservative, hand, deck)
	d, err := g.MakeAIDecision("player_1")
	assert.NoError(err)
	assert.Equal("stay", d.Action)

	g = botGame(t, Conservative, hand, deck)
	g.Players[1].addCard(action(8, game.SecondChance))
	d, err = g.MakeAIDecision("player_1")
	assert.NoError(err)
	assert.Equal("hit", d.Action)
}

func TestAIRisksMoreWhenBehind(t *testing.T) {
	assert := assert.New(t)
	hand := []game.Card{num(1, 8), num(2, 12)}
	// 5 of 11 remaining number cards bust: just over the moderate cap.
	deck := []game.Card{
		num(3, 8), num(4, 8), num(5, 8), num(6, 12), num(7, 12),
		num(8, 1), num(9, 2), num(10, 3), num(11, 4), num(12, 5), num(13, 6),
	}

	g := botGame(t, Moderate, hand, deck)
	d, err := g.MakeAIDecision("player_1")
	assert.NoError(err)
	assert.Equal("stay", d.Action)

	g = botGame(t, Moderate, hand, deck)
	g.Players[0].Score = 80
	d, err = g.MakeAIDecision("player_1")
	assert.NoError(err)
	assert.Equal("hit", d.Action)
}

func TestAIPushesForFlip7(t *testing.T) {
	// Six unique numbers and ugly odds: an aggressive bot still chases the
	// seventh for the bonus.
	g := botGame(t, Aggressive,
		[]game.Card{num(1, 1), num(2, 2), num(3, 3), num(4, 4), num(5, 5), num(6, 6)},
		[]game.Card{num(7, 1), num(8, 2), num(9, 7)})

	d, err := g.MakeAIDecision("player_1")
	assert.NoError(t, err)
	assert.Equal(t, "hit", d.Action)
}

func TestAIStaysOnFlip7(t *testing.T) {
	g := botGame(t, Aggressive,
		[]game.Card{num(1, 1), num(2, 2), num(3, 3), num(4, 4), num(5, 5), num(6, 6), num(7, 7)},
		[]game.Card{num(8, 8)})

	d, err := g.MakeAIDecision("player_1")
	assert.NoError(t, err)
	assert.Equal(t, "stay", d.Action)
}

func TestAIPendingFreezeTargetsLeader(t *testing.T) {
	assert := assert.New(t)
	g, err := NewGame([]string{"Ana", "Cleo", "Bot"}, []AIDifficulty{Moderate})
	assert.NoError(err)
	g.GameStatus = StatusPlaying
	g.Players[0].addCard(num(1, 4))
	g.Players[1].addCard(num(2, 11))
	g.PendingActionCard = &PendingActionCard{PlayerID: "player_2", CardID: 42, ActionKind: game.Freeze}

	d, err := g.MakeAIDecision("player_2")
	assert.NoError(err)
	assert.Equal("playActionCard", d.Action)
	assert.Equal(42, d.CardID)
	assert.Equal("player_1", d.TargetPlayerID)
}

func TestAIPendingFlipThreeTargetsSelf(t *testing.T) {
	assert := assert.New(t)
	g := botGame(t, Moderate, nil, nil)
	g.PendingActionCard = &PendingActionCard{PlayerID: "player_1", CardID: 7, ActionKind: game.FlipThree}

	d, err := g.MakeAIDecision("player_1")
	assert.NoError(err)
	assert.Equal("playActionCard", d.Action)
	assert.Equal(7, d.CardID)
	assert.Equal("player_1", d.TargetPlayerID)
}
