package combat

import (
	"fmt"

	"github.com/cory-johannsen/corsair/internal/game/character"
	"github.com/cory-johannsen/corsair/internal/game/skill"
)

// ApplyVictory grants the experience, level-ups, skill unlocks and loot of a won battle.
// Each log line is passed to emit in order.
//
// Precondition: ch must be a working copy owned by the caller; rules must pass Validate.
// Postcondition: ch.Experience < ch.Level*rules.XPPerLevel; every skill unlocked at the final
// level is learned exactly once; the loot table has been granted.
func ApplyVictory(ch *character.Character, catalog skill.Catalog, rules Rules, emit func(string)) error {
	if rules.XPPerLevel <= 0 {
		return fmt.Errorf("xp per level must be > 0, got %d", rules.XPPerLevel)
	}
	ch.Experience += rules.VictoryXP
	emit(fmt.Sprintf("You gain %d experience.", rules.VictoryXP))

	for ch.Experience >= ch.Level*rules.XPPerLevel {
		ch.Experience -= ch.Level * rules.XPPerLevel
		ch.Level++
		ch.SkillPoints += rules.PointsPerLevel
		ch.MaxHP += rules.MaxHPPerLevel
		ch.HP = ch.MaxHP
		emit(fmt.Sprintf("Level up! You are now level %d.", ch.Level))
		emit(fmt.Sprintf("You gain %d skill points.", rules.PointsPerLevel))
	}

	for _, sk := range catalog.FindUnlocksForLevel(ch.Class, ch.Level, ch.LearnedSkills) {
		if ch.LearnSkill(sk.ID) {
			emit(fmt.Sprintf("New skill learned: %s.", sk.Name))
		}
	}

	if ch.Inventory == nil {
		ch.Inventory = make(map[string]int)
	}
	gold, err := rules.Loot.Grant(ch.Inventory)
	if err != nil {
		return err
	}
	ch.Gold += gold
	for _, it := range rules.Loot.Items {
		emit(fmt.Sprintf("You found %d x %s.", it.Quantity, it.Item))
	}
	if gold > 0 {
		emit(fmt.Sprintf("You found %d gold.", gold))
	}
	return nil
}
