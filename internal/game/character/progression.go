package character

import (
	"fmt"
	"strings"

	"github.com/cory-johannsen/corsair/internal/game/condition"
)

// AllocatableStats lists the stats skill points can be spent on.
var AllocatableStats = []condition.Stat{
	condition.StatAttack, condition.StatDefense, condition.StatAgility, condition.StatCritical,
}

// AllocatePoints spends points unallocated skill points on stat.
//
// Precondition: none; all input is validated.
// Postcondition: on success stat grows by points and SkillPoints shrinks by points;
// on error (ErrInvalidStat, ErrInsufficientPoints) c is unchanged.
func (c *Character) AllocatePoints(stat string, points int) error {
	s := condition.Stat(strings.ToLower(strings.TrimSpace(stat)))
	field := c.Stats.field(s)
	if field == nil {
		return fmt.Errorf("%w: %q", ErrInvalidStat, stat)
	}
	if points < 1 {
		return fmt.Errorf("%w: must spend at least one point, got %d", ErrInsufficientPoints, points)
	}
	if points > c.SkillPoints {
		return fmt.Errorf("%w: requested %d, have %d", ErrInsufficientPoints, points, c.SkillPoints)
	}
	*field += points
	c.SkillPoints -= points
	return nil
}

// EquipSkill places id into slot, replacing whatever was there. If id already occupies
// the other slot, that slot is emptied so a skill is never equipped twice.
//
// Postcondition: ActiveSkills[slot] == id, or an error (ErrInvalidSlot, ErrSkillNotLearned)
// is returned and c is unchanged.
func (c *Character) EquipSkill(slot int, id string) error {
	if slot < 0 || slot >= SlotCount {
		return fmt.Errorf("%w: %d", ErrInvalidSlot, slot)
	}
	if !c.Knows(id) {
		return fmt.Errorf("%w: %q", ErrSkillNotLearned, id)
	}
	for i := range c.ActiveSkills {
		if i != slot && c.ActiveSkills[i] == id {
			c.ActiveSkills[i] = ""
		}
	}
	c.ActiveSkills[slot] = id
	return nil
}

// ClearSlot empties slot.
//
// Postcondition: ActiveSkills[slot] == "", or ErrInvalidSlot is returned.
func (c *Character) ClearSlot(slot int) error {
	if slot < 0 || slot >= SlotCount {
		return fmt.Errorf("%w: %d", ErrInvalidSlot, slot)
	}
	c.ActiveSkills[slot] = ""
	return nil
}
