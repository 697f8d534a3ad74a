package flip7

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"flip7-server/internal/game"
)

// NewGame builds a fresh game in Waiting status. Turn order follows
// playerNames; the trailing len(aiDifficulties) entries are bot seats. The
// deck scales with the table size and arrives shuffled.
func NewGame(playerNames []string, aiDifficulties []AIDifficulty) (*Game, error) {
	if len(playerNames) == 0 {
		return nil, errors.New("NO_PLAYERS: At least one player name is required")
	}
	if len(aiDifficulties) > len(playerNames) {
		return nil, errors.New("INVALID_AI_COUNT: More AI difficulties than player names")
	}

	humanCount := len(playerNames) - len(aiDifficulties)
	players := make([]*Player, len(playerNames))
	for i, name := range playerNames {
		p := &Player{
			ID:       fmt.Sprintf("player_%d", i),
			Name:     name,
			Cards:    make([]game.Card, 0),
			IsActive: true,
		}
		if i >= humanCount {
			p.IsAI = true
			p.AIDifficulty = aiDifficulties[i-humanCount]
		}
		p.refreshCardGroups()
		players[i] = p
	}

	return &Game{
		ID:           uuid.New().String(),
		Players:      players,
		Deck:         game.NewScaledDeck(len(playerNames)),
		DiscardPile:  make([]game.Card, 0),
		Round:        1,
		DealerIndex:  0,
		GameStatus:   StatusWaiting,
		RoundScores:  make(map[string]int),
		RoundHistory: make([]RoundRecord, 0),
	}, nil
}

// StartRound discards last round's hands, resets the per-round flags and
// deals one face-up card to every player. Initial deals never bust and
// never resolve action cards; whatever comes up simply joins the hand.
// On any failure gameStatus is restored to Waiting so a half-dealt round is
// never exposed as playable.
func (g *Game) StartRound() error {
	if len(g.Players) == 0 {
		return errors.New("GAME_NOT_INITIALIZED: Game has no players")
	}
	if g.GameStatus == StatusGameEnd {
		return errors.New("GAME_OVER: Game has already ended")
	}

	// Hands from the finished round stay visible through RoundEnd and are
	// only swept to the discard pile here.
	for _, p := range g.Players {
		g.DiscardPile = append(g.DiscardPile, p.Cards...)
		p.Cards = make([]game.Card, 0)
		p.refreshCardGroups()
		p.IsActive = true
		p.HasBusted = false
		p.HasSecondChance = false
		p.SecondChanceUsedBy = nil
		p.FrozenBy = ""
	}
	g.RoundScores = make(map[string]int)
	g.PendingActionCard = nil

	for _, p := range g.Players {
		card, err := g.drawCard()
		if err != nil {
			g.GameStatus = StatusWaiting
			return err
		}
		p.addCard(card)
	}

	idx, ok := g.firstActiveAfter(g.DealerIndex)
	if !ok {
		g.GameStatus = StatusWaiting
		return errors.New("NO_ACTIVE_PLAYERS: No active players to start the round")
	}
	g.CurrentPlayerIndex = idx
	g.GameStatus = StatusPlaying
	return nil
}

// StartNextRound rotates the dealer, bumps the round counter and replays
// the discard pile into the deck when it runs low, then deals the new round.
func (g *Game) StartNextRound() error {
	if len(g.Players) == 0 {
		return errors.New("GAME_NOT_INITIALIZED: Game has no players")
	}
	if g.GameStatus == StatusGameEnd {
		return errors.New("GAME_OVER: Game has already ended")
	}

	g.DealerIndex = (g.DealerIndex + 1) % len(g.Players)
	g.Round++

	if g.Deck.Count() < reshuffleThreshold && len(g.DiscardPile) > 0 {
		g.Deck.Cards = append(g.Deck.Cards, g.DiscardPile...)
		g.DiscardPile = make([]game.Card, 0)
		g.Deck.Shuffle()
	}

	return g.StartRound()
}

// Hit draws for the player: three forced cards if they hold an unresolved
// Flip Three (which is consumed), otherwise one. The turn advances unless
// the draw ended the round or parked a new pending action card.
func (g *Game) Hit(playerID string) error {
	p, err := g.requireActionablePlayer(playerID)
	if err != nil {
		return err
	}

	pendingBefore := g.PendingActionCard

	if ft, ok := p.heldFlipThree(); ok {
		p.removeCard(ft.ID)
		g.DiscardPile = append(g.DiscardPile, ft)
		if err := g.resolveFlipThree(p); err != nil {
			return err
		}
	} else {
		card, err := g.drawCard()
		if err != nil {
			return err
		}
		if err := g.dealTo(p, card, false, false); err != nil {
			return err
		}
	}

	if g.GameStatus == StatusPlaying && g.PendingActionCard == pendingBefore {
		g.advanceTurn()
	}
	return nil
}

// Stay banks the player's current hand score and takes them out of the round.
func (g *Game) Stay(playerID string) error {
	p, err := g.requireActionablePlayer(playerID)
	if err != nil {
		return err
	}

	g.RoundScores[p.ID] = CalculateScore(p)
	p.IsActive = false
	g.advanceTurn()
	return nil
}

// PlayActionCard resolves a pending or voluntarily-held action card against
// a target. An omitted target defaults to self only when no other active
// player remains; otherwise the caller has to choose.
func (g *Game) PlayActionCard(playerID string, cardID int, targetPlayerID string) error {
	if g.GameStatus != StatusPlaying {
		return errors.New("GAME_NOT_PLAYING: No round in progress")
	}
	p := g.findPlayer(playerID)
	if p == nil {
		return fmt.Errorf("PLAYER_NOT_FOUND: No player %q", playerID)
	}
	card, ok := p.findActionCard(cardID)
	if !ok {
		return errors.New("ACTION_CARD_NOT_FOUND: Player does not hold that action card")
	}

	var target *Player
	if targetPlayerID != "" {
		target = g.findPlayer(targetPlayerID)
		if target == nil || !target.IsActive || target.HasBusted {
			return errors.New("TARGET_NOT_ACTIVE: Target player not found or not active")
		}
	} else {
		if len(g.activePlayers(p.ID)) > 0 {
			return errors.New("TARGET_REQUIRED: Must specify target player")
		}
		target = p
	}

	if g.PendingActionCard != nil && g.PendingActionCard.PlayerID == p.ID && g.PendingActionCard.CardID == cardID {
		g.PendingActionCard = nil
	}

	p.removeCard(card.ID)

	switch card.ActionKind {
	case game.Freeze:
		g.freezePlayer(target, p.ID)
		// The spent Freeze stays in the frozen player's hand as a visible marker.
		target.addCard(card)
	case game.FlipThree:
		g.DiscardPile = append(g.DiscardPile, card)
		if err := g.resolveFlipThree(target); err != nil {
			return err
		}
	default:
		if err := g.dealTo(target, card, false, false); err != nil {
			return err
		}
	}

	if g.GameStatus != StatusPlaying {
		return nil
	}
	if !g.currentPlayer().IsActive {
		g.advanceTurn()
		return nil
	}
	// Keep the turn parked on the current player if the effect just handed
	// them a new pending action card to resolve.
	if g.PendingActionCard != nil && target == g.currentPlayer() && g.PendingActionCard.PlayerID == target.ID {
		return nil
	}
	g.advanceTurn()
	return nil
}

// dealTo is the single rule-resolution path for one card. Initial deals are
// appended as-is. Later draws resolve action cards first, then run the bust
// check, then watch for Flip 7. resolvingFlipThree marks forced draws so a
// Flip Three drawn inside a Flip Three cannot park the turn again; it joins
// the hand for a later voluntary play instead.
func (g *Game) dealTo(p *Player, card game.Card, isInitialDeal, resolvingFlipThree bool) error {
	if !isInitialDeal && card.Kind == game.Action {
		switch card.ActionKind {
		case game.FlipThree:
			others := g.activePlayers(p.ID)
			if len(others) > 0 && !resolvingFlipThree {
				g.PendingActionCard = &PendingActionCard{PlayerID: p.ID, CardID: card.ID, ActionKind: game.FlipThree}
				p.addCard(card)
				return nil
			}
			if len(others) == 0 {
				// Nobody else to target: resolve on self immediately. The
				// Flip Three card itself never reaches the hand.
				g.DiscardPile = append(g.DiscardPile, card)
				return g.resolveFlipThree(p)
			}

		case game.Freeze:
			others := g.activePlayers(p.ID)
			if len(others) > 0 {
				g.PendingActionCard = &PendingActionCard{PlayerID: p.ID, CardID: card.ID, ActionKind: game.Freeze}
				p.addCard(card)
				return nil
			}
			// Last player standing freezes themselves: banked and out.
			g.freezePlayer(p, p.ID)
			g.DiscardPile = append(g.DiscardPile, card)
			return nil

		case game.SecondChance:
			if consumed := g.handleSecondChance(p, card); consumed {
				return nil
			}
		}
	}

	if !isInitialDeal && CheckBust(p, card) {
		if p.hasSecondChanceProtection() {
			use := SecondChanceUse{TriggeringCardID: card.ID}
			if sc := p.unusedSecondChanceCard(); sc != nil {
				use.SecondChanceCardID = sc.ID
			}
			p.SecondChanceUsedBy = append(p.SecondChanceUsedBy, use)
			g.DiscardPile = append(g.DiscardPile, card)
			if p.unusedSecondChanceCard() == nil {
				p.HasSecondChance = false
			}
			return nil
		}

		p.HasBusted = true
		p.IsActive = false
		// The busting card stays visible in the hand.
		p.addCard(card)
		return nil
	}

	p.addCard(card)
	if HasFlip7(p) {
		g.endRound()
	}
	return nil
}

// handleSecondChance grants protection, passes a surplus copy to another
// unprotected active player, or discards it when nobody qualifies. Returns
// true when the card must not stay with the drawing player.
func (g *Game) handleSecondChance(p *Player, card game.Card) bool {
	if !p.hasSecondChanceProtection() {
		p.HasSecondChance = true
		return false
	}
	for _, q := range g.activePlayers(p.ID) {
		if !q.hasSecondChanceProtection() {
			q.addCard(card)
			q.HasSecondChance = true
			return true
		}
	}
	g.DiscardPile = append(g.DiscardPile, card)
	return true
}

// freezePlayer banks the target's current score and takes them out of the round.
func (g *Game) freezePlayer(target *Player, frozenByID string) {
	g.RoundScores[target.ID] = CalculateScore(target)
	target.IsActive = false
	target.FrozenBy = frozenByID
}

// resolveFlipThree deals up to three forced cards to the target, stopping
// early if they bust, leave the round or hit Flip 7. An explicit bounded
// loop, not recursion: a chain of lucky Flip Threes can't grow the stack.
func (g *Game) resolveFlipThree(target *Player) error {
	for range 3 {
		if g.GameStatus != StatusPlaying || !target.IsActive {
			break
		}
		card, err := g.drawCard()
		if err != nil {
			return err
		}
		if err := g.dealTo(target, card, false, true); err != nil {
			return err
		}
	}
	return nil
}

// endRound settles the round: per-player scores recomputed from the cards
// (busted players score zero regardless of what they hold), cumulative
// totals, a deep-copied history entry, and the Second Chance sweep.
// Idempotent — a second call while already settled changes nothing, so a
// double-processed bust can never double-score.
func (g *Game) endRound() {
	if g.GameStatus == StatusRoundEnd || g.GameStatus == StatusGameEnd {
		return
	}

	results := make([]PlayerRoundResult, 0, len(g.Players))
	topScore := 0
	for _, p := range g.Players {
		score := 0
		if !p.HasBusted {
			score = CalculateScore(p)
		}
		g.RoundScores[p.ID] = score
		p.Score += score
		if score > topScore {
			topScore = score
		}

		// Deep-copy the cards: hands are swept to the discard pile at the
		// next round start, the history entry must not alias them.
		cards := make([]game.Card, len(p.Cards))
		copy(cards, p.Cards)
		results = append(results, PlayerRoundResult{
			PlayerID: p.ID,
			Name:     p.Name,
			Score:    score,
			Busted:   p.HasBusted,
			Cards:    cards,
		})
		p.IsActive = false
	}
	g.RoundHistory = append(g.RoundHistory, RoundRecord{Round: g.Round, Results: results})
	if topScore > g.LargestRound {
		g.LargestRound = topScore
	}

	// Second Chance cards never carry over between rounds.
	for _, p := range g.Players {
		held := make([]game.Card, len(p.ActionCards))
		copy(held, p.ActionCards)
		for _, c := range held {
			if c.IsAction(game.SecondChance) {
				p.removeCard(c.ID)
				g.DiscardPile = append(g.DiscardPile, c)
			}
		}
		p.HasSecondChance = false
		p.SecondChanceUsedBy = nil
	}

	g.PendingActionCard = nil
	g.GameStatus = StatusRoundEnd
	for _, p := range g.Players {
		if p.Score >= TargetScore {
			g.GameStatus = StatusGameEnd
			break
		}
	}
}

// drawCard takes the top card, folding the discard pile back into the deck
// first when the deck is out. Both piles empty should be unreachable under
// card conservation but is reported rather than hung on.
func (g *Game) drawCard() (game.Card, error) {
	if g.Deck.Count() == 0 {
		if len(g.DiscardPile) == 0 {
			return game.Card{}, errors.New("NO_CARDS: Deck and discard pile are both empty")
		}
		g.Deck.Cards = append(g.Deck.Cards, g.DiscardPile...)
		g.DiscardPile = make([]game.Card, 0)
		g.Deck.Shuffle()
	}
	return g.Deck.Draw(), nil
}

// advanceTurn moves to the next active player. The scan is bounded by the
// player count; if nobody is left active the round ends instead of looping.
func (g *Game) advanceTurn() {
	n := len(g.Players)
	for offset := 1; offset <= n; offset++ {
		idx := (g.CurrentPlayerIndex + offset) % n
		if g.Players[idx].IsActive {
			g.CurrentPlayerIndex = idx
			return
		}
	}
	g.endRound()
}

// firstActiveAfter finds the first active player strictly after start,
// wrapping once around the table.
func (g *Game) firstActiveAfter(start int) (int, bool) {
	n := len(g.Players)
	for offset := 1; offset <= n; offset++ {
		idx := (start + offset) % n
		if g.Players[idx].IsActive {
			return idx, true
		}
	}
	return 0, false
}

func (g *Game) requireActionablePlayer(playerID string) (*Player, error) {
	if g.GameStatus != StatusPlaying {
		return nil, errors.New("GAME_NOT_PLAYING: No round in progress")
	}
	p := g.findPlayer(playerID)
	if p == nil {
		return nil, fmt.Errorf("PLAYER_NOT_FOUND: No player %q", playerID)
	}
	if !p.IsActive || p.HasBusted {
		return nil, fmt.Errorf("PLAYER_NOT_ACTIVE: %s is out of the round", p.Name)
	}
	if g.PendingActionCard != nil && g.PendingActionCard.PlayerID == p.ID {
		return nil, errors.New("PENDING_ACTION: Player must resolve their pending action card first")
	}
	return p, nil
}
