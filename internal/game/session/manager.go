package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cory-johannsen/corsair/internal/game/combat"
)

// ErrSessionNotFound is returned for unknown or expired session ids.
var ErrSessionNotFound = errors.New("session not found")

// Info is a read-only snapshot of an authenticated session.
type Info struct {
	ID            string
	AccountID     int64
	Username      string
	CharacterID   int64
	CharacterName string
	ExpiresAt     time.Time
}

// HasCharacter reports whether a character has been selected.
func (i Info) HasCharacter() bool { return i.CharacterID != 0 }

type entry struct {
	info     Info
	battle   *combat.Session
	outboxes map[string]*Outbox
}

// Manager tracks all authenticated sessions. It is also the battle session store: each
// session owns at most one live battle.
// All methods are safe for concurrent use.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*entry
	now      func() time.Time
}

// NewManager creates an empty Manager. A nil clock selects time.Now.
func NewManager(clock func() time.Time) *Manager {
	if clock == nil {
		clock = time.Now
	}
	return &Manager{sessions: make(map[string]*entry), now: clock}
}

// Create registers a new session for an authenticated account.
//
// Precondition: ttl must be > 0.
// Postcondition: Returns the new session with a random id and no character selected.
func (m *Manager) Create(accountID int64, username string, ttl time.Duration) Info {
	info := Info{
		ID:        uuid.NewString(),
		AccountID: accountID,
		Username:  username,
		ExpiresAt: m.now().Add(ttl),
	}
	m.mu.Lock()
	m.sessions[info.ID] = &entry{info: info, outboxes: make(map[string]*Outbox)}
	m.mu.Unlock()
	return info
}

// lookup returns the live entry for sid. Callers hold m.mu.
func (m *Manager) lookup(sid string) (*entry, error) {
	e, ok := m.sessions[sid]
	if !ok || !m.now().Before(e.info.ExpiresAt) {
		return nil, fmt.Errorf("%w: %q", ErrSessionNotFound, sid)
	}
	return e, nil
}

// Get returns the session with id sid.
//
// Postcondition: Returns the snapshot, or ErrSessionNotFound if sid is unknown or expired.
func (m *Manager) Get(sid string) (Info, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, err := m.lookup(sid)
	if err != nil {
		return Info{}, err
	}
	return e.info, nil
}

// SelectCharacter makes characterID the active character of sid and discards any battle.
//
// Precondition: the caller has verified the account owns characterID.
func (m *Manager) SelectCharacter(sid string, characterID int64, name string) (Info, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, err := m.lookup(sid)
	if err != nil {
		return Info{}, err
	}
	e.info.CharacterID = characterID
	e.info.CharacterName = name
	e.battle = nil
	return e.info, nil
}

// Battle returns a copy of the live battle of sid, or nil when there is none.
func (m *Manager) Battle(sid string) (*combat.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, err := m.lookup(sid)
	if err != nil {
		return nil, err
	}
	if e.battle == nil {
		return nil, nil
	}
	return e.battle.Clone(), nil
}

// SetBattle stores a copy of battle for sid. A nil battle discards the current one.
func (m *Manager) SetBattle(sid string, battle *combat.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, err := m.lookup(sid)
	if err != nil {
		return err
	}
	if battle == nil {
		e.battle = nil
		return nil
	}
	e.battle = battle.Clone()
	return nil
}

// Attach registers a chat connection's outbox on sid.
func (m *Manager) Attach(sid string, o *Outbox) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, err := m.lookup(sid)
	if err != nil {
		return err
	}
	e.outboxes[o.ConnID()] = o
	return nil
}

// Detach removes and closes the outbox connID from sid. Unknown ids are ignored.
func (m *Manager) Detach(sid, connID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[sid]
	if !ok {
		return
	}
	if o, ok := e.outboxes[connID]; ok {
		o.Close()
		delete(e.outboxes, connID)
	}
}

// Outboxes returns every attached chat outbox across all live sessions.
func (m *Manager) Outboxes() []*Outbox {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Outbox
	for _, e := range m.sessions {
		for _, o := range e.outboxes {
			out = append(out, o)
		}
	}
	return out
}

// ChatPresence returns the character names of sessions with at least one chat connection.
func (m *Manager) ChatPresence() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.sessions))
	for _, e := range m.sessions {
		if len(e.outboxes) > 0 && e.info.CharacterName != "" {
			names = append(names, e.info.CharacterName)
		}
	}
	return names
}

// Remove ends sid, closing its chat outboxes.
//
// Postcondition: Get(sid) returns ErrSessionNotFound. Returns ErrSessionNotFound if sid was unknown.
func (m *Manager) Remove(sid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[sid]
	if !ok {
		return fmt.Errorf("%w: %q", ErrSessionNotFound, sid)
	}
	for _, o := range e.outboxes {
		o.Close()
	}
	delete(m.sessions, sid)
	return nil
}

// Sweep removes every expired session and returns how many were removed.
func (m *Manager) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	n := 0
	for sid, e := range m.sessions {
		if now.Before(e.info.ExpiresAt) {
			continue
		}
		for _, o := range e.outboxes {
			o.Close()
		}
		delete(m.sessions, sid)
		n++
	}
	return n
}

// Count returns the number of tracked sessions, expired ones included until swept.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
