// Package condition tracks temporary stat modifiers (buffs) applied to a character.
package condition

import "fmt"

// Stat names a combat stat a buff can modify.
type Stat string

const (
	StatAttack   Stat = "attack"
	StatDefense  Stat = "defense"
	StatAgility  Stat = "agility"
	StatCritical Stat = "critical"
)

// Valid reports whether s is a recognised combat stat.
func (s Stat) Valid() bool {
	switch s {
	case StatAttack, StatDefense, StatAgility, StatCritical:
		return true
	}
	return false
}

// Buff is one active stat modifier on a character.
// Magnitude is a fractional bonus of the base stat (0.20 = +20%).
type Buff struct {
	Name           string  `json:"name"`
	Stat           Stat    `json:"stat"`
	Magnitude      float64 `json:"magnitude"`
	TurnsRemaining int     `json:"turnsRemaining"`
}

// Set is an ordered list of buffs.
//
// Invariant: no two entries share the same (Name, Stat) pair.
type Set []Buff

// Apply adds b to the set, or refreshes the existing entry with the same (Name, Stat).
// A refresh replaces TurnsRemaining and Magnitude; it never stacks.
//
// Precondition: b.Name must be non-empty; b.TurnsRemaining must be > 0.
// Postcondition: exactly one entry with (b.Name, b.Stat) exists. Returns true on refresh.
func (s *Set) Apply(b Buff) (bool, error) {
	if b.Name == "" {
		return false, fmt.Errorf("Apply: buff name must not be empty")
	}
	if !b.Stat.Valid() {
		return false, fmt.Errorf("Apply: unknown stat %q", b.Stat)
	}
	if b.TurnsRemaining <= 0 {
		return false, fmt.Errorf("Apply: buff %q must last at least one turn, got %d", b.Name, b.TurnsRemaining)
	}
	for i := range *s {
		cur := &(*s)[i]
		if cur.Name == b.Name && cur.Stat == b.Stat {
			cur.TurnsRemaining = b.TurnsRemaining
			cur.Magnitude = b.Magnitude
			return true, nil
		}
	}
	*s = append(*s, b)
	return false, nil
}

// Tick decrements TurnsRemaining on every buff and removes those that reach zero.
// Order of the surviving buffs is preserved.
//
// Postcondition: every remaining buff has TurnsRemaining > 0; the returned slice holds
// the expired buffs in their original order.
func (s *Set) Tick() []Buff {
	var expired []Buff
	kept := (*s)[:0]
	for _, b := range *s {
		b.TurnsRemaining--
		if b.TurnsRemaining <= 0 {
			expired = append(expired, b)
			continue
		}
		kept = append(kept, b)
	}
	*s = kept
	return expired
}

// Has reports whether a buff with the given name and stat is active.
func (s Set) Has(name string, stat Stat) bool {
	for _, b := range s {
		if b.Name == name && b.Stat == stat {
			return true
		}
	}
	return false
}

// Bonus returns the total additive bonus the set grants to stat for a base value.
//
// Postcondition: Returns sum(base * Magnitude) over buffs on stat.
func (s Set) Bonus(stat Stat, base int) float64 {
	total := 0.0
	for _, b := range s {
		if b.Stat == stat {
			total += float64(base) * b.Magnitude
		}
	}
	return total
}

// Effective returns base plus every bonus on stat.
func (s Set) Effective(stat Stat, base int) float64 {
	return float64(base) + s.Bonus(stat, base)
}

// Clone returns an independent copy of the set.
func (s Set) Clone() Set {
	if s == nil {
		return nil
	}
	out := make(Set, len(s))
	copy(out, s)
	return out
}
