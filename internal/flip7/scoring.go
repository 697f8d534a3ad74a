package flip7

import "flip7-server/internal/game"

// HasFlip7 reports whether the player holds seven or more distinct number
// values, which ends the round immediately and earns the bonus.
func HasFlip7(p *Player) bool {
	return p.uniqueNumberCount() >= Flip7Count
}

// CalculateScore computes the player's current hand value: the number-card
// sum, doubled if an x2 modifier is held, then all + modifiers, then the
// Flip 7 bonus. The multiplier never applies to the bonuses.
func CalculateScore(p *Player) int {
	total := 0
	for _, c := range p.NumberCards {
		total += c.Value
	}

	for _, c := range p.ModifierCards {
		if c.ModifierKind == game.Multiply {
			total *= c.ModifierValue
		}
	}
	for _, c := range p.ModifierCards {
		if c.ModifierKind == game.Add {
			total += c.ModifierValue
		}
	}

	if HasFlip7(p) {
		total += Flip7Bonus
	}
	return total
}

// CheckBust reports whether drawing newCard would bust the player: the card
// is a number the player already holds. The candidate card is checked
// against the hand as-is, before being added.
func CheckBust(p *Player, newCard game.Card) bool {
	if newCard.Kind != game.Number {
		return false
	}
	return p.holdsValue(newCard.Value)
}
