// Package gameserver exposes the caller-facing game operations (accounts, characters,
// battles and chat) and serves them over HTTP, a chat websocket and a gRPC health endpoint.
package gameserver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cory-johannsen/corsair/internal/game/character"
	"github.com/cory-johannsen/corsair/internal/game/chat"
	"github.com/cory-johannsen/corsair/internal/game/combat"
	"github.com/cory-johannsen/corsair/internal/game/ruleset"
	"github.com/cory-johannsen/corsair/internal/game/skill"
	"github.com/cory-johannsen/corsair/internal/storage"
)

// AccountStore persists accounts. Implemented by the postgres and sqlite repositories.
type AccountStore interface {
	Create(ctx context.Context, username, password string) (storage.Account, error)
	Authenticate(ctx context.Context, username, password string) (storage.Account, error)
	GetByID(ctx context.Context, id int64) (storage.Account, error)
}

// CharacterStore persists characters. Save must reject stale versions with
// storage.ErrConcurrentModification.
type CharacterStore interface {
	Create(ctx context.Context, c *character.Character) (*character.Character, error)
	ListByAccount(ctx context.Context, accountID int64) ([]*character.Character, error)
	CountByAccount(ctx context.Context, accountID int64) (int, error)
	GetByID(ctx context.Context, id int64) (*character.Character, error)
	Save(ctx context.Context, c *character.Character) error
}

// ChatStore persists chat history.
type ChatStore interface {
	Append(ctx context.Context, m chat.Message) (chat.Message, error)
	Recent(ctx context.Context, limit int) ([]chat.Message, error)
}

// BattleStore holds the live battle of each authenticated session.
type BattleStore interface {
	Battle(sid string) (*combat.Session, error)
	SetBattle(sid string, battle *combat.Session) error
}

// SkillCatalog is the skill lookup the services need: the resolver's Catalog plus the
// class starting kit used at character creation.
type SkillCatalog interface {
	skill.Catalog
	StartingSkills(class ruleset.Class) []*skill.Skill
	ForClass(class ruleset.Class) []*skill.Skill
}

var (
	// ErrCharacterLimit is returned when an account already owns character.MaxPerAccount characters.
	ErrCharacterLimit = errors.New("character limit reached")
	// ErrNoCharacterSelected is returned by character operations before a character is selected.
	ErrNoCharacterSelected = errors.New("no character selected")
	// ErrInvalidUsername is returned by Signup for a malformed username.
	ErrInvalidUsername = errors.New("invalid username")
	// ErrInvalidPassword is returned by Signup for a password outside the accepted length.
	ErrInvalidPassword = errors.New("invalid password")
	// ErrTurnAborted wraps a fault raised while resolving a turn, such as corrupt stored
	// state or a skill missing from the catalog. Nothing was persisted.
	ErrTurnAborted = errors.New("turn aborted")
	// ErrRateLimited is matched by every RateLimitError.
	ErrRateLimited = errors.New("rate limited")
)

// RateLimitError reports a throttled request and when it may be retried.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited, retry in %s", e.RetryAfter.Round(time.Second))
}

// Is makes errors.Is(err, ErrRateLimited) match.
func (e *RateLimitError) Is(target error) bool { return target == ErrRateLimited }
