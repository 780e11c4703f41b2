// Package combat implements the deterministic turn-based battle engine for Corsair.
package combat

import (
	"errors"
	"fmt"
	"slices"

	"github.com/cory-johannsen/corsair/internal/game/character"
)

// ErrInvalidEnemy is returned when an enemy profile or battle session violates its invariants.
var ErrInvalidEnemy = errors.New("invalid enemy")

// Status is the lifecycle stage of a battle session.
type Status string

const (
	StatusActive Status = "active"
	StatusWin    Status = "win"
	StatusLose   Status = "lose"
)

// Terminal reports whether no further turns may be resolved.
func (s Status) Terminal() bool { return s == StatusWin || s == StatusLose }

// EnemyProfile describes the fixed opponent a battle is started against.
type EnemyProfile struct {
	Name  string `json:"name"`
	Level int    `json:"level"`
	MaxHP int    `json:"maxHp"`
}

// DefaultEnemy is the opponent every battle uses unless configured otherwise.
var DefaultEnemy = EnemyProfile{Name: "Pirate Orc", Level: 1, MaxHP: 50}

// Validate checks the profile.
//
// Postcondition: Returns nil iff Name is non-empty, Level >= 1 and MaxHP >= 1.
func (e EnemyProfile) Validate() error {
	switch {
	case e.Name == "":
		return fmt.Errorf("%w: name must not be empty", ErrInvalidEnemy)
	case e.Level < 1:
		return fmt.Errorf("%w: level must be >= 1, got %d", ErrInvalidEnemy, e.Level)
	case e.MaxHP < 1:
		return fmt.Errorf("%w: max hp must be >= 1, got %d", ErrInvalidEnemy, e.MaxHP)
	}
	return nil
}

// Session is the ephemeral state of one encounter. It belongs to a single authenticated
// session and is discarded once Status is terminal.
type Session struct {
	EnemyName  string `json:"enemyName"`
	EnemyLevel int    `json:"enemyLevel"`
	EnemyHP    int    `json:"enemyHp"`
	EnemyMaxHP int    `json:"enemyMaxHp"`
	// PlayerHP mirrors the character's hp after every turn. The character is authoritative.
	PlayerHP int      `json:"playerHp"`
	Status   Status   `json:"status"`
	Log      []string `json:"battleLog"`
}

// Clone returns a copy whose log does not alias s.Log.
func (s *Session) Clone() *Session {
	out := *s
	out.Log = slices.Clone(s.Log)
	return &out
}

// Validate reports whether the session can be fed to the resolver.
func (s *Session) Validate() error {
	switch {
	case s.EnemyLevel < 1:
		return fmt.Errorf("%w: session enemy level %d < 1", ErrInvalidEnemy, s.EnemyLevel)
	case s.EnemyHP < 0:
		return fmt.Errorf("%w: session enemy hp %d < 0", ErrInvalidEnemy, s.EnemyHP)
	}
	return nil
}

func (s *Session) logf(delta *[]string, format string, args ...any) {
	line := fmt.Sprintf(format, args...)
	s.Log = append(s.Log, line)
	*delta = append(*delta, line)
}

// Start begins a fresh encounter against enemy.
//
// Precondition: ch must not be nil.
// Postcondition: Returns a new active Session and a copy of ch with hp restored to max and
// every buff and cooldown cleared; ch itself is not modified.
func Start(ch *character.Character, enemy EnemyProfile) (*Session, *character.Character, error) {
	if err := enemy.Validate(); err != nil {
		return nil, nil, err
	}
	next := ch.Clone()
	if err := next.Validate(); err != nil {
		return nil, nil, err
	}
	next.HP = next.MaxHP
	next.Buffs = nil
	next.Cooldowns = character.Cooldowns{}

	sess := &Session{
		EnemyName:  enemy.Name,
		EnemyLevel: enemy.Level,
		EnemyHP:    enemy.MaxHP,
		EnemyMaxHP: enemy.MaxHP,
		PlayerHP:   next.HP,
		Status:     StatusActive,
		Log: []string{
			fmt.Sprintf("A level %d %s blocks the way!", enemy.Level, enemy.Name),
		},
	}
	return sess, next, nil
}
