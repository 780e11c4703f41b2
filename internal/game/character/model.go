// Package character defines the character domain model and the pure operations a player
// performs on it outside of combat.
package character

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/cory-johannsen/corsair/internal/game/condition"
	"github.com/cory-johannsen/corsair/internal/game/inventory"
	"github.com/cory-johannsen/corsair/internal/game/ruleset"
)

// MaxPerAccount is the number of characters one account may own.
const MaxPerAccount = 2

// SlotCount is the number of active skill slots.
const SlotCount = 2

var (
	// ErrInvalidStat is returned when a stat name is not one of the combat stats.
	ErrInvalidStat = errors.New("invalid stat")
	// ErrInsufficientPoints is returned when a point allocation is non-positive or exceeds
	// the unallocated skill points.
	ErrInsufficientPoints = errors.New("insufficient skill points")
	// ErrSkillNotLearned is returned when equipping a skill the character does not know.
	ErrSkillNotLearned = errors.New("skill not learned")
	// ErrInvalidSlot is returned for a slot index outside [0, SlotCount).
	ErrInvalidSlot = errors.New("invalid skill slot")
	// ErrInvalidName is returned when a character name is outside the allowed length.
	ErrInvalidName = errors.New("invalid character name")
	// ErrCorrupt is returned by Validate when stored state violates a model invariant.
	ErrCorrupt = errors.New("corrupt character state")
)

// Stats holds the four combat stats. All values are non-negative.
type Stats struct {
	Attack   int `json:"attack"`
	Defense  int `json:"defense"`
	Agility  int `json:"agility"`
	Critical int `json:"critical"`
}

// Get returns the value of stat.
func (s Stats) Get(stat condition.Stat) (int, bool) {
	p := (&s).field(stat)
	if p == nil {
		return 0, false
	}
	return *p, true
}

func (s *Stats) field(stat condition.Stat) *int {
	switch stat {
	case condition.StatAttack:
		return &s.Attack
	case condition.StatDefense:
		return &s.Defense
	case condition.StatAgility:
		return &s.Agility
	case condition.StatCritical:
		return &s.Critical
	}
	return nil
}

// SkillSlots is the fixed array of skills usable in battle. An empty string is a free slot.
type SkillSlots [SlotCount]string

// Contains reports whether id occupies any slot.
func (s SkillSlots) Contains(id string) bool {
	if id == "" {
		return false
	}
	for _, v := range s {
		if v == id {
			return true
		}
	}
	return false
}

// IDs returns the occupied slots in slot order.
func (s SkillSlots) IDs() []string {
	out := make([]string, 0, SlotCount)
	for _, v := range s {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// Cooldowns maps a skill id to the turns remaining before it can be used again.
//
// Invariant: every stored value is > 0; ready skills have no entry.
type Cooldowns map[string]int

// Remaining returns the turns left on id, 0 when ready.
func (c Cooldowns) Remaining(id string) int {
	return c[id]
}

// Set starts a cooldown of turns on id. Non-positive turns leave id ready.
func (c Cooldowns) Set(id string, turns int) {
	if turns <= 0 {
		delete(c, id)
		return
	}
	c[id] = turns
}

// Tick decrements every cooldown and removes those that reach zero.
//
// Postcondition: Returns the ids that became ready, sorted; no entry is left at <= 0.
func (c Cooldowns) Tick() []string {
	var ready []string
	for id, turns := range c {
		turns--
		if turns <= 0 {
			ready = append(ready, id)
			delete(c, id)
			continue
		}
		c[id] = turns
	}
	sort.Strings(ready)
	return ready
}

// Clone returns an independent copy. A nil map clones to an empty one.
func (c Cooldowns) Clone() Cooldowns {
	out := make(Cooldowns, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Character represents a player character's persistent state.
//
// ID, AccountID, Version and the timestamps are set by the persistence layer; zero values
// indicate an unsaved character.
type Character struct {
	ID        int64  `json:"id"`
	AccountID int64  `json:"ownerId"`
	Name      string `json:"name"`

	Faction ruleset.Faction `json:"faction"`
	Gender  ruleset.Gender  `json:"gender"`
	Class   ruleset.Class   `json:"class"`

	Level       int `json:"level"`
	Experience  int `json:"experience"`
	SkillPoints int `json:"skillPoints"`

	HP    int   `json:"hp"`
	MaxHP int   `json:"maxHp"`
	Stats Stats `json:"stats"`

	LearnedSkills []string            `json:"learnedSkills"`
	ActiveSkills  SkillSlots          `json:"activeSkills"`
	Cooldowns     Cooldowns           `json:"skillCooldowns"`
	Buffs         condition.Set       `json:"activeBuffs"`
	Inventory     inventory.Inventory `json:"inventory"`
	Gold          int                 `json:"gold"`

	// Version is bumped on every successful save and guards against concurrent writers.
	Version int64 `json:"version"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Clone returns a deep copy that shares no mutable state with c.
func (c *Character) Clone() *Character {
	out := *c
	out.LearnedSkills = slices.Clone(c.LearnedSkills)
	out.Cooldowns = c.Cooldowns.Clone()
	out.Buffs = c.Buffs.Clone()
	out.Inventory = c.Inventory.Clone()
	return &out
}

// Normalize replaces nil collections with empty ones so a loaded record is safe to mutate.
func (c *Character) Normalize() {
	if c.LearnedSkills == nil {
		c.LearnedSkills = []string{}
	}
	if c.Cooldowns == nil {
		c.Cooldowns = Cooldowns{}
	}
	if c.Inventory == nil {
		c.Inventory = inventory.Inventory{}
	}
}

// ClampHP bounds HP to [0, MaxHP].
//
// Postcondition: 0 <= HP <= MaxHP.
func (c *Character) ClampHP() {
	if c.HP > c.MaxHP {
		c.HP = c.MaxHP
	}
	if c.HP < 0 {
		c.HP = 0
	}
}

// Knows reports whether id is in LearnedSkills.
func (c *Character) Knows(id string) bool {
	for _, v := range c.LearnedSkills {
		if v == id {
			return true
		}
	}
	return false
}

// LearnSkill adds id to LearnedSkills. Learning a known skill is a no-op.
//
// Postcondition: Knows(id) is true; LearnedSkills has no duplicates. Returns true if id is new.
func (c *Character) LearnSkill(id string) bool {
	if c.Knows(id) {
		return false
	}
	c.LearnedSkills = append(c.LearnedSkills, id)
	return true
}

// EffectiveStat returns the base stat plus every active buff bonus on it.
func (c *Character) EffectiveStat(stat condition.Stat) float64 {
	base, _ := c.Stats.Get(stat)
	return c.Buffs.Effective(stat, base)
}

// Validate reports whether the character satisfies every model invariant.
// Loaded records that fail are treated as corrupt and never fed to the combat engine.
//
// Postcondition: Returns nil, or an error wrapping ErrCorrupt naming the first violation.
func (c *Character) Validate() error {
	switch {
	case c.Level < 1:
		return fmt.Errorf("%w: level %d < 1", ErrCorrupt, c.Level)
	case c.Experience < 0:
		return fmt.Errorf("%w: experience %d < 0", ErrCorrupt, c.Experience)
	case c.SkillPoints < 0:
		return fmt.Errorf("%w: skill points %d < 0", ErrCorrupt, c.SkillPoints)
	case c.MaxHP < 1:
		return fmt.Errorf("%w: max hp %d < 1", ErrCorrupt, c.MaxHP)
	case c.HP < 0 || c.HP > c.MaxHP:
		return fmt.Errorf("%w: hp %d outside [0, %d]", ErrCorrupt, c.HP, c.MaxHP)
	case c.Gold < 0:
		return fmt.Errorf("%w: gold %d < 0", ErrCorrupt, c.Gold)
	case c.Stats.Attack < 0 || c.Stats.Defense < 0 || c.Stats.Agility < 0 || c.Stats.Critical < 0:
		return fmt.Errorf("%w: negative stat in %+v", ErrCorrupt, c.Stats)
	}
	for _, id := range c.ActiveSkills.IDs() {
		if !c.Knows(id) {
			return fmt.Errorf("%w: active skill %q is not learned", ErrCorrupt, id)
		}
	}
	for id, turns := range c.Cooldowns {
		if turns <= 0 {
			return fmt.Errorf("%w: cooldown %q at %d", ErrCorrupt, id, turns)
		}
	}
	for _, b := range c.Buffs {
		if b.TurnsRemaining <= 0 {
			return fmt.Errorf("%w: buff %q at %d turns", ErrCorrupt, b.Name, b.TurnsRemaining)
		}
	}
	return nil
}
