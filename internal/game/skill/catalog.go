package skill

import (
	"fmt"

	"github.com/cory-johannsen/corsair/internal/game/ruleset"
)

// Catalog is the read-only skill lookup the combat engine depends on.
type Catalog interface {
	// FindByID returns the skill with id, or ErrSkillNotFound.
	FindByID(id string) (*Skill, error)
	// FindUnlocksForLevel returns, in catalog order, the skills whose RequiredLevel equals
	// level, that class may learn, and whose ids are not in excluding.
	FindUnlocksForLevel(class ruleset.Class, level int, excluding []string) []*Skill
}

// Registry is an in-memory Catalog. It is immutable once loading completes and is then
// safe for concurrent reads.
type Registry struct {
	byID  map[string]*Skill
	order []*Skill
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]*Skill)}
}

// Register validates s and adds it to the registry.
//
// Precondition: s must not be nil.
// Postcondition: FindByID(s.ID) returns s, or an error is returned and the registry is unchanged.
func (r *Registry) Register(s *Skill) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if _, dup := r.byID[s.ID]; dup {
		return fmt.Errorf("skill %q registered twice", s.ID)
	}
	r.byID[s.ID] = s
	r.order = append(r.order, s)
	return nil
}

// FindByID implements Catalog.
func (r *Registry) FindByID(id string) (*Skill, error) {
	s, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrSkillNotFound, id)
	}
	return s, nil
}

// FindUnlocksForLevel implements Catalog.
func (r *Registry) FindUnlocksForLevel(class ruleset.Class, level int, excluding []string) []*Skill {
	skip := make(map[string]bool, len(excluding))
	for _, id := range excluding {
		skip[id] = true
	}
	var out []*Skill
	for _, s := range r.order {
		if s.RequiredLevel == level && s.EligibleFor(class) && !skip[s.ID] {
			out = append(out, s)
		}
	}
	return out
}

// StartingSkills returns the level-1 skills class begins with, in catalog order.
func (r *Registry) StartingSkills(class ruleset.Class) []*Skill {
	return r.FindUnlocksForLevel(class, 1, nil)
}

// ForClass returns every skill class may eventually learn, in catalog order.
func (r *Registry) ForClass(class ruleset.Class) []*Skill {
	var out []*Skill
	for _, s := range r.order {
		if s.EligibleFor(class) {
			out = append(out, s)
		}
	}
	return out
}

// Len returns the number of registered skills.
func (r *Registry) Len() int { return len(r.order) }
