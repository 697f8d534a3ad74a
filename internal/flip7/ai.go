package flip7

import (
	"errors"
	"fmt"

	"flip7-server/internal/game"
)

// AIDecision is what a bot wants to do on its turn. Action is "hit",
// "stay" or "playActionCard"; CardID and TargetPlayerID are only set for
// action card plays.
type AIDecision struct {
	Action         string `json:"action"`
	CardID         int    `json:"cardId,omitempty"`
	TargetPlayerID string `json:"targetPlayerId,omitempty"`
}

// aiProfile tunes how a difficulty weighs risk.
type aiProfile struct {
	// MaxBustProb is the highest acceptable chance of drawing a duplicate.
	MaxBustProb float64
	// MinScoreToStay: below this round score the bot keeps drawing even at
	// uncomfortable odds.
	MinScoreToStay int
	// Flip7Threshold: at this many unique numbers the bot pushes for the
	// seven-card bonus regardless of its usual caution.
	Flip7Threshold int
}

var aiProfiles = map[AIDifficulty]aiProfile{
	Conservative: {MaxBustProb: 0.25, MinScoreToStay: 12, Flip7Threshold: 6},
	Moderate:     {MaxBustProb: 0.40, MinScoreToStay: 18, Flip7Threshold: 5},
	Aggressive:   {MaxBustProb: 0.55, MinScoreToStay: 25, Flip7Threshold: 5},
}

// avgNumberCardValue is the mean face value across the number cards of a
// full deck, used as the expected gain of one more draw.
const avgNumberCardValue = 6.5

// MakeAIDecision computes the move for a bot. Deterministic: the same game
// state always yields the same decision, which keeps bot behavior
// replayable from a state snapshot. The caller applies the returned move
// through the normal operations.
func (g *Game) MakeAIDecision(playerID string) (*AIDecision, error) {
	p, err := g.requireAIPlayer(playerID)
	if err != nil {
		return nil, err
	}

	// A pending action card preempts everything else.
	if g.PendingActionCard != nil && g.PendingActionCard.PlayerID == p.ID {
		return g.decidePendingAction(p), nil
	}

	if HasFlip7(p) || p.HasBusted || !p.IsActive {
		return &AIDecision{Action: "stay"}, nil
	}

	profile, ok := aiProfiles[p.AIDifficulty]
	if !ok {
		profile = aiProfiles[Moderate]
	}

	bustProb := g.bustProbability(p)
	roundScore := CalculateScore(p)
	expectedGain := (1 - bustProb) * avgNumberCardValue

	maxBust := profile.MaxBustProb
	if p.hasSecondChanceProtection() {
		// A live Second Chance absorbs the next duplicate, so the bot can
		// stomach roughly double the risk.
		maxBust *= 2
	}
	if g.isBehindLeader(p) {
		maxBust += 0.10
	}

	// Close enough to Flip 7 that the +15 swing dominates the math.
	uniques := p.uniqueNumberCount()
	if uniques >= profile.Flip7Threshold && float64(roundScore)+expectedGain > float64(profile.MinScoreToStay) {
		return &AIDecision{Action: "hit"}, nil
	}

	if roundScore < profile.MinScoreToStay {
		return &AIDecision{Action: "hit"}, nil
	}
	if bustProb <= maxBust {
		return &AIDecision{Action: "hit"}, nil
	}
	return &AIDecision{Action: "stay"}, nil
}

// AutoResolvePendingAction plays the currently pending action card with the
// same target choice a bot would make. Used when a player sits on a Freeze
// or Flip Three past the decision timeout.
func (g *Game) AutoResolvePendingAction() error {
	pending := g.PendingActionCard
	if pending == nil {
		return errors.New("NO_PENDING_ACTION: Nothing to resolve")
	}
	p := g.findPlayer(pending.PlayerID)
	if p == nil {
		return fmt.Errorf("PLAYER_NOT_FOUND: No player %q", pending.PlayerID)
	}
	d := g.decidePendingAction(p)
	return g.PlayActionCard(p.ID, d.CardID, d.TargetPlayerID)
}

// decidePendingAction picks a target for a parked Freeze or Flip Three.
// Freeze goes to the strongest opponent; Flip Three is kept selfish, the
// forced draws are upside when the bot wants cards anyway.
func (g *Game) decidePendingAction(p *Player) *AIDecision {
	pending := g.PendingActionCard
	decision := &AIDecision{Action: "playActionCard", CardID: pending.CardID}

	switch pending.ActionKind {
	case game.Freeze:
		if target := g.strongestOpponent(p.ID); target != nil {
			decision.TargetPlayerID = target.ID
		} else {
			decision.TargetPlayerID = p.ID
		}
	default:
		decision.TargetPlayerID = p.ID
	}
	return decision
}

// strongestOpponent returns the active opponent with the highest current
// round score, breaking ties toward whoever is closer to Flip 7.
func (g *Game) strongestOpponent(excludeID string) *Player {
	var best *Player
	bestScore, bestUniques := -1, -1
	for _, q := range g.activePlayers(excludeID) {
		score := CalculateScore(q)
		uniques := q.uniqueNumberCount()
		if score > bestScore || (score == bestScore && uniques > bestUniques) {
			best, bestScore, bestUniques = q, score, uniques
		}
	}
	return best
}

// bustProbability is the share of remaining number cards (deck plus discard
// pile, since the discard folds back in on exhaustion) that duplicate a
// value the player already holds.
func (g *Game) bustProbability(p *Player) float64 {
	held := make(map[int]bool, len(p.NumberCards))
	for _, c := range p.NumberCards {
		held[c.Value] = true
	}

	totalNumbers, duplicating := 0, 0
	count := func(c game.Card) {
		if c.Kind != game.Number {
			return
		}
		totalNumbers++
		if held[c.Value] {
			duplicating++
		}
	}
	for _, c := range g.Deck.Cards {
		count(c)
	}
	for _, c := range g.DiscardPile {
		count(c)
	}

	if totalNumbers == 0 {
		return 1
	}
	return float64(duplicating) / float64(totalNumbers)
}

// isBehindLeader reports whether another player's cumulative score leads
// this one's.
func (g *Game) isBehindLeader(p *Player) bool {
	for _, q := range g.Players {
		if q.ID != p.ID && q.Score > p.Score {
			return true
		}
	}
	return false
}

func (g *Game) requireAIPlayer(playerID string) (*Player, error) {
	p := g.findPlayer(playerID)
	if p == nil {
		return nil, fmt.Errorf("PLAYER_NOT_FOUND: No player %q", playerID)
	}
	if !p.IsAI {
		return nil, fmt.Errorf("PLAYER_NOT_AI: %s is not an AI player", p.Name)
	}
	return p, nil
}
