package gameserver

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/corsair/internal/game/character"
	"github.com/cory-johannsen/corsair/internal/game/inventory"
	"github.com/cory-johannsen/corsair/internal/game/ruleset"
	"github.com/cory-johannsen/corsair/internal/game/session"
	"github.com/cory-johannsen/corsair/internal/ratelimit"
	"github.com/cory-johannsen/corsair/internal/storage"
)

const (
	minPasswordLen = 8
	// bcrypt ignores input past 72 bytes.
	maxPasswordLen = 72
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]{3,32}$`)

// CharacterRequest carries the choices made at character creation.
type CharacterRequest struct {
	Name    string `json:"name"`
	Faction string `json:"faction"`
	Gender  string `json:"gender"`
	Class   string `json:"class"`
}

// AccountService handles signup, login and character management.
type AccountService struct {
	accounts   AccountStore
	characters CharacterStore
	sessions   *session.Manager
	catalog    SkillCatalog
	logins     *ratelimit.Limiter
	sessionTTL time.Duration
	locks      *keyedLock
	logger     *zap.Logger
}

// NewAccountService creates an AccountService.
//
// Precondition: every dependency must be non-nil; sessionTTL must be > 0.
func NewAccountService(accounts AccountStore, characters CharacterStore, sessions *session.Manager, catalog SkillCatalog, logins *ratelimit.Limiter, sessionTTL time.Duration, logger *zap.Logger) *AccountService {
	return &AccountService{
		accounts:   accounts,
		characters: characters,
		sessions:   sessions,
		catalog:    catalog,
		logins:     logins,
		sessionTTL: sessionTTL,
		locks:      newKeyedLock(),
		logger:     logger,
	}
}

// Signup registers a new account.
//
// Postcondition: Returns the account, ErrInvalidUsername, ErrInvalidPassword or
// storage.ErrAccountExists.
func (s *AccountService) Signup(ctx context.Context, username, password string) (storage.Account, error) {
	if !usernamePattern.MatchString(username) {
		return storage.Account{}, fmt.Errorf("%w: use 3-32 letters, digits or underscores", ErrInvalidUsername)
	}
	if n := len(password); n < minPasswordLen || n > maxPasswordLen {
		return storage.Account{}, fmt.Errorf("%w: must be %d-%d bytes", ErrInvalidPassword, minPasswordLen, maxPasswordLen)
	}
	acct, err := s.accounts.Create(ctx, username, password)
	if err != nil {
		return storage.Account{}, err
	}
	s.logger.Info("account created", zap.Int64("account_id", acct.ID), zap.String("username", acct.Username))
	return acct, nil
}

// Login authenticates username and opens a session. Attempts are throttled per clientKey.
//
// Postcondition: Returns the new session, a *RateLimitError, or storage.ErrInvalidCredentials
// for both unknown users and wrong passwords.
func (s *AccountService) Login(ctx context.Context, clientKey, username, password string) (session.Info, error) {
	if ok, retry := s.logins.Allow(clientKey); !ok {
		s.logger.Warn("login throttled", zap.String("client", clientKey), zap.Duration("retry_after", retry))
		return session.Info{}, &RateLimitError{RetryAfter: retry}
	}
	acct, err := s.accounts.Authenticate(ctx, username, password)
	if err != nil {
		if errors.Is(err, storage.ErrAccountNotFound) || errors.Is(err, storage.ErrInvalidCredentials) {
			return session.Info{}, storage.ErrInvalidCredentials
		}
		return session.Info{}, err
	}
	s.logins.Reset(clientKey)
	info := s.sessions.Create(acct.ID, acct.Username, s.sessionTTL)
	s.logger.Info("login", zap.Int64("account_id", acct.ID), zap.String("session_id", info.ID))
	return info, nil
}

// Logout ends the session sid.
func (s *AccountService) Logout(sid string) error {
	return s.sessions.Remove(sid)
}

// CreateCharacter builds and stores a new character for the session's account with its
// class's starting skills equipped.
//
// Postcondition: Returns the stored character, ErrCharacterLimit, a validation error or
// storage.ErrCharacterNameTaken.
func (s *AccountService) CreateCharacter(ctx context.Context, sess session.Info, req CharacterRequest) (*character.Character, error) {
	release, ok := s.locks.TryLock(fmt.Sprintf("account:%d", sess.AccountID))
	if !ok {
		return nil, fmt.Errorf("%w: account %d is busy", storage.ErrConcurrentModification, sess.AccountID)
	}
	defer release()

	n, err := s.characters.CountByAccount(ctx, sess.AccountID)
	if err != nil {
		return nil, err
	}
	if n >= character.MaxPerAccount {
		return nil, fmt.Errorf("%w: %d of %d", ErrCharacterLimit, n, character.MaxPerAccount)
	}
	class, err := ruleset.ParseClass(req.Class)
	if err != nil {
		return nil, err
	}
	var starting []string
	for _, sk := range s.catalog.StartingSkills(class) {
		starting = append(starting, sk.ID)
	}
	ch, err := character.Build(sess.AccountID, req.Name, ruleset.Faction(req.Faction), ruleset.Gender(req.Gender), class, starting)
	if err != nil {
		return nil, err
	}
	created, err := s.characters.Create(ctx, ch)
	if err != nil {
		return nil, err
	}
	s.logger.Info("character created",
		zap.Int64("account_id", sess.AccountID),
		zap.Int64("character_id", created.ID),
		zap.String("class", string(created.Class)),
	)
	return created, nil
}

// ListCharacters returns the account's characters in creation order.
func (s *AccountService) ListCharacters(ctx context.Context, sess session.Info) ([]*character.Character, error) {
	return s.characters.ListByAccount(ctx, sess.AccountID)
}

// SelectCharacter makes characterID the session's active character, discarding any battle.
//
// Postcondition: Returns storage.ErrCharacterNotFound when the account does not own it.
func (s *AccountService) SelectCharacter(ctx context.Context, sess session.Info, characterID int64) (session.Info, *character.Character, error) {
	ch, err := s.owned(ctx, sess, characterID)
	if err != nil {
		return session.Info{}, nil, err
	}
	info, err := s.sessions.SelectCharacter(sess.ID, ch.ID, ch.Name)
	if err != nil {
		return session.Info{}, nil, err
	}
	return info, ch, nil
}

// ActiveCharacter returns the session's selected character.
func (s *AccountService) ActiveCharacter(ctx context.Context, sess session.Info) (*character.Character, error) {
	if !sess.HasCharacter() {
		return nil, ErrNoCharacterSelected
	}
	return s.owned(ctx, sess, sess.CharacterID)
}

// UpdateInventory replaces the active character's inventory with entries.
//
// Postcondition: every entry is validated before anything is saved.
func (s *AccountService) UpdateInventory(ctx context.Context, sess session.Info, entries []inventory.Entry) (*character.Character, error) {
	if !sess.HasCharacter() {
		return nil, ErrNoCharacterSelected
	}
	release, ok := s.locks.TryLock(characterKey(sess.CharacterID))
	if !ok {
		return nil, fmt.Errorf("%w: character %d is busy", storage.ErrConcurrentModification, sess.CharacterID)
	}
	defer release()

	ch, err := s.owned(ctx, sess, sess.CharacterID)
	if err != nil {
		return nil, err
	}
	next := ch.Clone()
	if err := next.Inventory.Replace(entries); err != nil {
		return nil, err
	}
	if err := s.characters.Save(ctx, next); err != nil {
		return nil, fmt.Errorf("saving character: %w", err)
	}
	return next, nil
}

func (s *AccountService) owned(ctx context.Context, sess session.Info, characterID int64) (*character.Character, error) {
	ch, err := s.characters.GetByID(ctx, characterID)
	if err != nil {
		return nil, err
	}
	if ch.AccountID != sess.AccountID {
		return nil, storage.ErrCharacterNotFound
	}
	return ch, nil
}
