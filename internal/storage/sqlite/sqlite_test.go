package sqlite_test

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/corsair/internal/game/character"
	"github.com/cory-johannsen/corsair/internal/game/chat"
	"github.com/cory-johannsen/corsair/internal/game/condition"
	"github.com/cory-johannsen/corsair/internal/game/ruleset"
	"github.com/cory-johannsen/corsair/internal/storage"
	"github.com/cory-johannsen/corsair/internal/storage/sqlite"
)

func openDB(t *testing.T) *sqlite.DB {
	t.Helper()
	db, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "corsair.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newCharacter(t *testing.T, accountID int64, name string) *character.Character {
	t.Helper()
	c, err := character.Build(accountID, name, ruleset.FactionMarine, ruleset.GenderMale, ruleset.ClassBrawler, []string{"strike", "guard"})
	require.NoError(t, err)
	return c
}

func TestOpen_ReappliesMigrationsIdempotently(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corsair.db")
	ctx := context.Background()

	first, err := sqlite.Open(ctx, path)
	require.NoError(t, err)
	_, err = sqlite.NewAccountRepository(first.SQL()).Create(ctx, "zoro", "password123")
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := sqlite.Open(ctx, path)
	require.NoError(t, err)
	defer second.Close()
	require.NoError(t, second.Health(ctx, time.Second))

	acct, err := sqlite.NewAccountRepository(second.SQL()).Authenticate(ctx, "zoro", "password123")
	require.NoError(t, err)
	assert.Equal(t, "zoro", acct.Username)
}

func TestOpen_RejectsEmptyPath(t *testing.T) {
	_, err := sqlite.Open(context.Background(), "  ")
	assert.Error(t, err)
}

func TestAccountRepository(t *testing.T) {
	db := openDB(t)
	repo := sqlite.NewAccountRepository(db.SQL())
	ctx := context.Background()

	acct, err := repo.Create(ctx, "nami", "password123")
	require.NoError(t, err)
	assert.Greater(t, acct.ID, int64(0))
	assert.False(t, acct.CreatedAt.IsZero())

	_, err = repo.Create(ctx, "nami", "other")
	assert.ErrorIs(t, err, storage.ErrAccountExists)

	_, err = repo.Authenticate(ctx, "nami", "wrong")
	assert.ErrorIs(t, err, storage.ErrInvalidCredentials)
	_, err = repo.Authenticate(ctx, "ghost", "password123")
	assert.ErrorIs(t, err, storage.ErrAccountNotFound)

	got, err := repo.GetByID(ctx, acct.ID)
	require.NoError(t, err)
	assert.Equal(t, acct.Username, got.Username)
	assert.WithinDuration(t, acct.CreatedAt, got.CreatedAt, time.Millisecond)
}

func TestCharacterRepository(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()
	acct, err := sqlite.NewAccountRepository(db.SQL()).Create(ctx, "luffy", "password123")
	require.NoError(t, err)
	repo := sqlite.NewCharacterRepository(db.SQL())

	created, err := repo.Create(ctx, newCharacter(t, acct.ID, "Sanji"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), created.Version)
	assert.Equal(t, ruleset.FactionMarine, created.Faction)
	assert.Equal(t, []string{"strike", "guard"}, created.LearnedSkills)
	assert.Equal(t, character.SkillSlots{"strike", "guard"}, created.ActiveSkills)
	assert.Empty(t, created.Buffs)
	assert.NotNil(t, created.Cooldowns)

	_, err = repo.Create(ctx, newCharacter(t, acct.ID, "Sanji"))
	assert.ErrorIs(t, err, storage.ErrCharacterNameTaken)

	_, err = repo.Create(ctx, newCharacter(t, acct.ID, "Brook"))
	require.NoError(t, err)
	n, err := repo.CountByAccount(ctx, acct.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	list, err := repo.ListByAccount(ctx, acct.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Sanji", list[0].Name)
	assert.Equal(t, "Brook", list[1].Name)

	created.Experience = 70
	created.Cooldowns["guard"] = 1
	_, err = created.Buffs.Apply(condition.Buff{Name: "Guard", Stat: condition.StatDefense, Magnitude: 0.5, TurnsRemaining: 2})
	require.NoError(t, err)
	require.NoError(t, created.Inventory.Add("Health Potion", 1))
	created.Gold = 10
	require.NoError(t, repo.Save(ctx, created))
	assert.Equal(t, int64(2), created.Version)

	loaded, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 70, loaded.Experience)
	assert.Equal(t, 1, loaded.Cooldowns.Remaining("guard"))
	assert.True(t, loaded.Buffs.Has("Guard", condition.StatDefense))
	assert.Equal(t, 1, loaded.Inventory["Health Potion"])
	assert.Equal(t, 10, loaded.Gold)
	assert.Equal(t, int64(2), loaded.Version)

	_, err = repo.GetByID(ctx, 9999)
	assert.ErrorIs(t, err, storage.ErrCharacterNotFound)
}

func TestCharacterRepository_OptimisticVersion(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()
	acct, err := sqlite.NewAccountRepository(db.SQL()).Create(ctx, "chopper", "password123")
	require.NoError(t, err)
	repo := sqlite.NewCharacterRepository(db.SQL())
	created, err := repo.Create(ctx, newCharacter(t, acct.ID, "Robin"))
	require.NoError(t, err)

	stale := created.Clone()
	created.Gold = 5
	require.NoError(t, repo.Save(ctx, created))
	stale.Gold = 50
	assert.ErrorIs(t, repo.Save(ctx, stale), storage.ErrConcurrentModification)

	ghost := created.Clone()
	ghost.ID = 4242
	assert.ErrorIs(t, repo.Save(ctx, ghost), storage.ErrCharacterNotFound)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := created.Clone()
			c.Gold = i
			err := repo.Save(ctx, c)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				wins++
				return
			}
			assert.ErrorIs(t, err, storage.ErrConcurrentModification)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestChatRepository_RecentOldestFirst(t *testing.T) {
	db := openDB(t)
	repo := sqlite.NewChatRepository(db.SQL())
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 4; i++ {
		m, err := chat.New("Franky", fmt.Sprintf("line %d", i), base.Add(time.Duration(i)*time.Second))
		require.NoError(t, err)
		_, err = repo.Append(ctx, m)
		require.NoError(t, err)
	}
	recent, err := repo.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "line 2", recent[0].Body)
	assert.Equal(t, "line 3", recent[1].Body)
	assert.True(t, recent[1].SentAt.Equal(base.Add(3*time.Second)))

	empty, err := sqlite.NewChatRepository(openDB(t).SQL()).Recent(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
