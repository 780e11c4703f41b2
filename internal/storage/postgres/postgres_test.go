package postgres_test

import (
	"context"
	"fmt"
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
	"github.com/cory-johannsen/corsair/internal/storage/postgres"
	"github.com/cory-johannsen/corsair/internal/testutil"
)

func uniqueName(prefix string) string {
	return fmt.Sprintf("%s_%d", prefix, time.Now().UnixNano())
}

type repos struct {
	accounts   *postgres.AccountRepository
	characters *postgres.CharacterRepository
	chat       *postgres.ChatRepository
}

func setup(t *testing.T) repos {
	t.Helper()
	pool := testutil.NewPool(t)
	return repos{
		accounts:   postgres.NewAccountRepository(pool),
		characters: postgres.NewCharacterRepository(pool),
		chat:       postgres.NewChatRepository(pool),
	}
}

func newCharacter(t *testing.T, accountID int64, name string) *character.Character {
	t.Helper()
	c, err := character.Build(accountID, name, ruleset.FactionPirate, ruleset.GenderFemale, ruleset.ClassDuelist, []string{"strike", "guard"})
	require.NoError(t, err)
	return c
}

func TestRepositories(t *testing.T) {
	r := setup(t)
	ctx := context.Background()

	t.Run("accounts", func(t *testing.T) {
		name := uniqueName("user")
		acct, err := r.accounts.Create(ctx, name, "password123")
		require.NoError(t, err)
		assert.Greater(t, acct.ID, int64(0))

		_, err = r.accounts.Create(ctx, name, "other")
		assert.ErrorIs(t, err, storage.ErrAccountExists)

		got, err := r.accounts.Authenticate(ctx, name, "password123")
		require.NoError(t, err)
		assert.Equal(t, acct.ID, got.ID)

		_, err = r.accounts.Authenticate(ctx, name, "wrong")
		assert.ErrorIs(t, err, storage.ErrInvalidCredentials)
		_, err = r.accounts.Authenticate(ctx, uniqueName("ghost"), "x")
		assert.ErrorIs(t, err, storage.ErrAccountNotFound)

		byID, err := r.accounts.GetByID(ctx, acct.ID)
		require.NoError(t, err)
		assert.Equal(t, name, byID.Username)
		_, err = r.accounts.GetByID(ctx, -1)
		assert.ErrorIs(t, err, storage.ErrAccountNotFound)
	})

	t.Run("characters", func(t *testing.T) {
		acct, err := r.accounts.Create(ctx, uniqueName("user"), "password123")
		require.NoError(t, err)

		created, err := r.characters.Create(ctx, newCharacter(t, acct.ID, "Robin"))
		require.NoError(t, err)
		assert.Greater(t, created.ID, int64(0))
		assert.Equal(t, int64(1), created.Version)
		assert.Equal(t, ruleset.ClassDuelist, created.Class)
		assert.Equal(t, character.SkillSlots{"strike", "guard"}, created.ActiveSkills)
		assert.NotNil(t, created.Inventory)

		_, err = r.characters.Create(ctx, newCharacter(t, acct.ID, "Robin"))
		assert.ErrorIs(t, err, storage.ErrCharacterNameTaken)

		_, err = r.characters.Create(ctx, newCharacter(t, acct.ID, "Franky"))
		require.NoError(t, err)
		n, err := r.characters.CountByAccount(ctx, acct.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		list, err := r.characters.ListByAccount(ctx, acct.ID)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "Robin", list[0].Name)

		created.Level = 4
		created.HP = 55
		created.Cooldowns["strike"] = 2
		_, err = created.Buffs.Apply(condition.Buff{Name: "Guard", Stat: condition.StatDefense, Magnitude: 0.5, TurnsRemaining: 1})
		require.NoError(t, err)
		require.NoError(t, created.Inventory.Add("Health Potion", 3))
		require.NoError(t, r.characters.Save(ctx, created))
		assert.Equal(t, int64(2), created.Version)

		loaded, err := r.characters.GetByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, 4, loaded.Level)
		assert.Equal(t, 55, loaded.HP)
		assert.Equal(t, 2, loaded.Cooldowns.Remaining("strike"))
		assert.True(t, loaded.Buffs.Has("Guard", condition.StatDefense))
		assert.Equal(t, 3, loaded.Inventory["Health Potion"])
		assert.Equal(t, int64(2), loaded.Version)

		_, err = r.characters.GetByID(ctx, -1)
		assert.ErrorIs(t, err, storage.ErrCharacterNotFound)
	})

	t.Run("optimistic version", func(t *testing.T) {
		acct, err := r.accounts.Create(ctx, uniqueName("user"), "password123")
		require.NoError(t, err)
		created, err := r.characters.Create(ctx, newCharacter(t, acct.ID, "Usopp"))
		require.NoError(t, err)

		a, err := r.characters.GetByID(ctx, created.ID)
		require.NoError(t, err)
		b, err := r.characters.GetByID(ctx, created.ID)
		require.NoError(t, err)

		a.Gold = 10
		require.NoError(t, r.characters.Save(ctx, a))
		b.Gold = 99
		assert.ErrorIs(t, r.characters.Save(ctx, b), storage.ErrConcurrentModification)

		missing := a.Clone()
		missing.ID = -5
		assert.ErrorIs(t, r.characters.Save(ctx, missing), storage.ErrCharacterNotFound)

		// concurrent writers from the same version: exactly one wins
		base, err := r.characters.GetByID(ctx, created.ID)
		require.NoError(t, err)
		var (
			wg     sync.WaitGroup
			mu     sync.Mutex
			wins   int
			losses int
		)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				c := base.Clone()
				c.Gold = i
				err := r.characters.Save(ctx, c)
				mu.Lock()
				defer mu.Unlock()
				if err == nil {
					wins++
				} else if assert.ErrorIs(t, err, storage.ErrConcurrentModification) {
					losses++
				}
			}(i)
		}
		wg.Wait()
		assert.Equal(t, 1, wins)
		assert.Equal(t, 7, losses)
	})

	t.Run("chat", func(t *testing.T) {
		for i := 0; i < 5; i++ {
			m, err := chat.New("Nami", fmt.Sprintf("msg %d", i), time.Now())
			require.NoError(t, err)
			saved, err := r.chat.Append(ctx, m)
			require.NoError(t, err)
			assert.Greater(t, saved.ID, int64(0))
		}
		recent, err := r.chat.Recent(ctx, 3)
		require.NoError(t, err)
		require.Len(t, recent, 3)
		assert.Equal(t, "msg 2", recent[0].Body)
		assert.Equal(t, "msg 4", recent[2].Body)
	})
}
