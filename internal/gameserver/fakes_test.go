package gameserver

import (
	"context"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/cory-johannsen/corsair/internal/game/character"
	"github.com/cory-johannsen/corsair/internal/game/chat"
	"github.com/cory-johannsen/corsair/internal/game/combat"
	"github.com/cory-johannsen/corsair/internal/game/condition"
	"github.com/cory-johannsen/corsair/internal/game/ruleset"
	"github.com/cory-johannsen/corsair/internal/game/session"
	"github.com/cory-johannsen/corsair/internal/game/skill"
	"github.com/cory-johannsen/corsair/internal/ratelimit"
	"github.com/cory-johannsen/corsair/internal/storage"
)

// memAccounts is an in-memory AccountStore.
type memAccounts struct {
	mu     sync.Mutex
	nextID int64
	byName map[string]storage.Account
}

func newMemAccounts() *memAccounts {
	return &memAccounts{byName: make(map[string]storage.Account)}
}

func (m *memAccounts) Create(_ context.Context, username, password string) (storage.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byName[username]; ok {
		return storage.Account{}, storage.ErrAccountExists
	}
	m.nextID++
	// plaintext is fine for a fake; bcrypt is covered by the storage tests
	acct := storage.Account{ID: m.nextID, Username: username, PasswordHash: password, CreatedAt: time.Now()}
	m.byName[username] = acct
	return acct, nil
}

func (m *memAccounts) Authenticate(_ context.Context, username, password string) (storage.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acct, ok := m.byName[username]
	if !ok {
		return storage.Account{}, storage.ErrAccountNotFound
	}
	if acct.PasswordHash != password {
		return storage.Account{}, storage.ErrInvalidCredentials
	}
	return acct, nil
}

func (m *memAccounts) GetByID(_ context.Context, id int64) (storage.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.byName {
		if a.ID == id {
			return a, nil
		}
	}
	return storage.Account{}, storage.ErrAccountNotFound
}

// memCharacters is an in-memory CharacterStore with the same version guard as the SQL stores.
type memCharacters struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]*character.Character
	saves  int
	// beforeSave, when set, runs inside Save before the version check.
	beforeSave func(c *character.Character)
}

func newMemCharacters() *memCharacters {
	return &memCharacters{rows: make(map[int64]*character.Character)}
}

func (m *memCharacters) Create(_ context.Context, c *character.Character) (*character.Character, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.AccountID == c.AccountID && row.Name == c.Name {
			return nil, storage.ErrCharacterNameTaken
		}
	}
	m.nextID++
	stored := c.Clone()
	stored.ID = m.nextID
	stored.Version = 1
	stored.Normalize()
	m.rows[stored.ID] = stored
	return stored.Clone(), nil
}

func (m *memCharacters) ListByAccount(_ context.Context, accountID int64) ([]*character.Character, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*character.Character
	for _, row := range m.rows {
		if row.AccountID == accountID {
			out = append(out, row.Clone())
		}
	}
	slices.SortFunc(out, func(a, b *character.Character) int { return int(a.ID - b.ID) })
	return out, nil
}

func (m *memCharacters) CountByAccount(ctx context.Context, accountID int64) (int, error) {
	list, err := m.ListByAccount(ctx, accountID)
	return len(list), err
}

func (m *memCharacters) GetByID(_ context.Context, id int64) (*character.Character, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok {
		return nil, storage.ErrCharacterNotFound
	}
	return row.Clone(), nil
}

func (m *memCharacters) Save(_ context.Context, c *character.Character) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.beforeSave != nil {
		m.beforeSave(m.rows[c.ID])
	}
	row, ok := m.rows[c.ID]
	if !ok {
		return storage.ErrCharacterNotFound
	}
	if row.Version != c.Version {
		return storage.ErrConcurrentModification
	}
	c.Version++
	m.rows[c.ID] = c.Clone()
	m.saves++
	return nil
}

func (m *memCharacters) get(t *testing.T, id int64) *character.Character {
	t.Helper()
	c, err := m.GetByID(context.Background(), id)
	require.NoError(t, err)
	return c
}

// memChat is an in-memory ChatStore.
type memChat struct {
	mu   sync.Mutex
	msgs []chat.Message
}

func (m *memChat) Append(_ context.Context, msg chat.Message) (chat.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg.ID = int64(len(m.msgs) + 1)
	m.msgs = append(m.msgs, msg)
	return msg, nil
}

func (m *memChat) Recent(_ context.Context, limit int) ([]chat.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	start := max(0, len(m.msgs)-limit)
	return slices.Clone(m.msgs[start:]), nil
}

func testCatalog(t *testing.T) *skill.Registry {
	t.Helper()
	reg := skill.NewRegistry()
	all := []ruleset.Class{ruleset.ClassStriker, ruleset.ClassDuelist, ruleset.ClassBrawler}
	for _, s := range []*skill.Skill{
		{ID: "strike", Name: "Strike", RequiredLevel: 1, Classes: all, Effect: skill.Damage{Amount: 10, Message: "Whack!"}},
		{ID: "guard", Name: "Guard", RequiredLevel: 1, Classes: all, Effect: skill.Buff{Stat: condition.StatDefense, Bonus: 0.5, Duration: 2, Message: "Brace!"}},
		{ID: "blast", Name: "Blast", RequiredLevel: 1, Classes: all, Cooldown: 3, Effect: skill.Damage{Amount: 20, Message: "Boom!"}},
		{ID: "volley", Name: "Volley", RequiredLevel: 2, Classes: []ruleset.Class{ruleset.ClassStriker}, Cooldown: 2, Effect: skill.Damage{Amount: 15, Message: "Fire!"}},
	} {
		require.NoError(t, reg.Register(s))
	}
	return reg
}

// fixture wires the services over in-memory stores.
type fixture struct {
	accounts   *memAccounts
	characters *memCharacters
	chatStore  *memChat
	sessions   *session.Manager
	catalog    *skill.Registry
	battles    *BattleService
	account    *AccountService
	hub        *ChatHub
	tokens     *TokenIssuer
	now        time.Time
	logger     *zap.Logger
}

const testSecret = "0123456789abcdef0123456789abcdef"

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		accounts:   newMemAccounts(),
		characters: newMemCharacters(),
		chatStore:  &memChat{},
		catalog:    testCatalog(t),
		now:        time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
		logger:     zaptest.NewLogger(t),
	}
	clock := func() time.Time { return f.now }
	f.sessions = session.NewManager(clock)

	var err error
	f.battles, err = NewBattleService(f.characters, f.sessions, f.catalog, combat.DefaultRules(), combat.DefaultEnemy, f.logger)
	require.NoError(t, err)
	logins := ratelimit.New(ratelimit.Policy{MaxEvents: 3, Window: time.Minute, BlockFor: 2 * time.Minute}, clock)
	f.account = NewAccountService(f.accounts, f.characters, f.sessions, f.catalog, logins, time.Hour, f.logger)
	chatLimit := ratelimit.New(ratelimit.Policy{MaxEvents: 2, Window: 10 * time.Second, BlockFor: 30 * time.Second}, clock)
	f.hub = NewChatHub(f.chatStore, f.sessions, chatLimit, 3, 16, clock, f.logger)
	f.tokens = NewTokenIssuer(testSecret, clock)
	return f
}

// player signs up, logs in, creates a striker and selects it.
func (f *fixture) player(t *testing.T, username string) (session.Info, *character.Character) {
	t.Helper()
	ctx := context.Background()
	_, err := f.account.Signup(ctx, username, "password123")
	require.NoError(t, err)
	info, err := f.account.Login(ctx, "10.0.0.1", username, "password123")
	require.NoError(t, err)
	ch, err := f.account.CreateCharacter(ctx, info, CharacterRequest{Name: username + "-hero", Faction: "pirate", Gender: "other", Class: "striker"})
	require.NoError(t, err)
	info, _, err = f.account.SelectCharacter(ctx, info, ch.ID)
	require.NoError(t, err)
	return info, ch
}
