// Package skill holds the static skill catalog: what each skill does, who may learn it
// and how long it takes to recover.
package skill

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cory-johannsen/corsair/internal/game/condition"
	"github.com/cory-johannsen/corsair/internal/game/ruleset"
)

// ErrSkillNotFound is returned when a skill id is not present in the catalog.
var ErrSkillNotFound = errors.New("skill not found")

// EffectKind is the wire/content tag of an Effect.
type EffectKind string

const (
	KindDamage EffectKind = "damage"
	KindBuff   EffectKind = "buff"
	KindHeal   EffectKind = "heal"
)

// Effect is what a skill does when used. The set of implementations is closed:
// Damage, Buff and Heal. Consumers dispatch with a type switch.
type Effect interface {
	Kind() EffectKind
	// Flavor is the line appended to the battle log when the effect resolves.
	Flavor() string
	sealed()
}

// Damage hits the enemy for Amount plus half the user's attack.
type Damage struct {
	Amount  int
	Message string
}

// Buff grants a fractional bonus to Stat for Duration turns.
type Buff struct {
	Stat     condition.Stat
	Bonus    float64
	Duration int
	Message  string
}

// Heal restores Amount hit points, capped at max hp.
type Heal struct {
	Amount  int
	Message string
}

func (Damage) Kind() EffectKind { return KindDamage }
func (Buff) Kind() EffectKind   { return KindBuff }
func (Heal) Kind() EffectKind   { return KindHeal }

func (d Damage) Flavor() string { return d.Message }
func (b Buff) Flavor() string   { return b.Message }
func (h Heal) Flavor() string   { return h.Message }

func (Damage) sealed() {}
func (Buff) sealed()   {}
func (Heal) sealed()   {}

// Skill is an immutable catalog entry.
type Skill struct {
	ID            string
	Name          string
	Description   string
	RequiredLevel int
	Classes       []ruleset.Class
	Cooldown      int
	Effect        Effect
}

// EligibleFor reports whether class may learn the skill.
func (s *Skill) EligibleFor(class ruleset.Class) bool {
	for _, c := range s.Classes {
		if c == class {
			return true
		}
	}
	return false
}

// Validate checks the skill's invariants.
//
// Postcondition: Returns nil iff the skill is usable by the combat engine.
func (s *Skill) Validate() error {
	if s.ID == "" {
		return errors.New("skill id must not be empty")
	}
	if s.Name == "" {
		return fmt.Errorf("skill %q: name must not be empty", s.ID)
	}
	if s.RequiredLevel < 1 {
		return fmt.Errorf("skill %q: required_level must be >= 1, got %d", s.ID, s.RequiredLevel)
	}
	if len(s.Classes) == 0 {
		return fmt.Errorf("skill %q: at least one class is required", s.ID)
	}
	for _, c := range s.Classes {
		if _, err := ruleset.ParseClass(string(c)); err != nil {
			return fmt.Errorf("skill %q: %w", s.ID, err)
		}
	}
	if s.Cooldown < 0 {
		return fmt.Errorf("skill %q: cooldown must be >= 0, got %d", s.ID, s.Cooldown)
	}
	switch e := s.Effect.(type) {
	case Damage:
		if e.Amount < 0 {
			return fmt.Errorf("skill %q: damage amount must be >= 0, got %d", s.ID, e.Amount)
		}
	case Buff:
		if !e.Stat.Valid() {
			return fmt.Errorf("skill %q: unknown buff stat %q", s.ID, e.Stat)
		}
		if e.Bonus <= 0 {
			return fmt.Errorf("skill %q: buff bonus must be > 0, got %v", s.ID, e.Bonus)
		}
		if e.Duration < 1 {
			return fmt.Errorf("skill %q: buff duration must be >= 1, got %d", s.ID, e.Duration)
		}
	case Heal:
		if e.Amount < 1 {
			return fmt.Errorf("skill %q: heal amount must be >= 1, got %d", s.ID, e.Amount)
		}
	case nil:
		return fmt.Errorf("skill %q: effect is required", s.ID)
	default:
		return fmt.Errorf("skill %q: unsupported effect %T", s.ID, e)
	}
	return nil
}

// effectDoc is the flat representation of an Effect used in YAML content and JSON responses.
type effectDoc struct {
	Kind     EffectKind `yaml:"kind" json:"kind"`
	Amount   int        `yaml:"amount,omitempty" json:"amount,omitempty"`
	Stat     string     `yaml:"stat,omitempty" json:"stat,omitempty"`
	Bonus    float64    `yaml:"bonus,omitempty" json:"bonus,omitempty"`
	Duration int        `yaml:"duration,omitempty" json:"duration,omitempty"`
	Message  string     `yaml:"message" json:"message"`
}

func (d effectDoc) toEffect() (Effect, error) {
	switch d.Kind {
	case KindDamage:
		return Damage{Amount: d.Amount, Message: d.Message}, nil
	case KindBuff:
		return Buff{Stat: condition.Stat(d.Stat), Bonus: d.Bonus, Duration: d.Duration, Message: d.Message}, nil
	case KindHeal:
		return Heal{Amount: d.Amount, Message: d.Message}, nil
	}
	return nil, fmt.Errorf("unknown effect kind %q", d.Kind)
}

func docFor(e Effect) effectDoc {
	switch e := e.(type) {
	case Damage:
		return effectDoc{Kind: KindDamage, Amount: e.Amount, Message: e.Message}
	case Buff:
		return effectDoc{Kind: KindBuff, Stat: string(e.Stat), Bonus: e.Bonus, Duration: e.Duration, Message: e.Message}
	case Heal:
		return effectDoc{Kind: KindHeal, Amount: e.Amount, Message: e.Message}
	}
	return effectDoc{}
}

// MarshalJSON renders the skill for the skill UI.
func (s *Skill) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID            string          `json:"id"`
		Name          string          `json:"name"`
		Description   string          `json:"description"`
		RequiredLevel int             `json:"requiredLevel"`
		Classes       []ruleset.Class `json:"classes"`
		Cooldown      int             `json:"cooldown"`
		Effect        effectDoc       `json:"effect"`
	}{s.ID, s.Name, s.Description, s.RequiredLevel, s.Classes, s.Cooldown, docFor(s.Effect)})
}
