package character

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/cory-johannsen/corsair/internal/game/inventory"
	"github.com/cory-johannsen/corsair/internal/game/ruleset"
)

const (
	// DefaultStat is the starting value of every combat stat.
	DefaultStat = 10
	// DefaultMaxHP is a new character's max hp.
	DefaultMaxHP = 100
	minNameLen   = 3
	maxNameLen   = 50
)

// Build constructs a new level-1 Character with default stats. The starting skills are
// learned and equipped into the slots in the given order; extras beyond SlotCount are
// learned but left unequipped.
//
// Postcondition: Returns a Character ready for persistence, or a non-nil error.
func Build(accountID int64, name string, faction ruleset.Faction, gender ruleset.Gender, class ruleset.Class, starting []string) (*Character, error) {
	name = strings.TrimSpace(name)
	if n := utf8.RuneCountInString(name); n < minNameLen || n > maxNameLen {
		return nil, fmt.Errorf("%w: must be %d-%d characters, got %d", ErrInvalidName, minNameLen, maxNameLen, n)
	}
	faction, err := ruleset.ParseFaction(string(faction))
	if err != nil {
		return nil, err
	}
	gender, err = ruleset.ParseGender(string(gender))
	if err != nil {
		return nil, err
	}
	class, err = ruleset.ParseClass(string(class))
	if err != nil {
		return nil, err
	}

	c := &Character{
		AccountID: accountID,
		Name:      name,
		Faction:   faction,
		Gender:    gender,
		Class:     class,
		Level:     1,
		HP:        DefaultMaxHP,
		MaxHP:     DefaultMaxHP,
		Stats: Stats{
			Attack: DefaultStat, Defense: DefaultStat,
			Agility: DefaultStat, Critical: DefaultStat,
		},
		LearnedSkills: []string{},
		Cooldowns:     Cooldowns{},
		Inventory:     inventory.Inventory{},
	}
	slot := 0
	for _, id := range starting {
		if !c.LearnSkill(id) {
			continue
		}
		if slot < SlotCount {
			c.ActiveSkills[slot] = id
			slot++
		}
	}
	return c, nil
}
