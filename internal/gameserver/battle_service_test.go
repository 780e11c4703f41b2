package gameserver

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/corsair/internal/game/character"
	"github.com/cory-johannsen/corsair/internal/game/combat"
	"github.com/cory-johannsen/corsair/internal/game/session"
	"github.com/cory-johannsen/corsair/internal/storage"
)

func TestStartBattle_ResetsAndStores(t *testing.T) {
	f := newFixture(t)
	info, ch := f.player(t, "nami")
	ctx := context.Background()

	stored := f.characters.get(t, ch.ID)
	stored.HP = 40
	stored.Cooldowns["blast"] = 2
	require.NoError(t, f.characters.Save(ctx, stored))

	out, err := f.battles.StartBattle(ctx, info)
	require.NoError(t, err)
	require.NotNil(t, out.Battle)
	assert.Equal(t, combat.StatusActive, out.Battle.Status)
	assert.Equal(t, 50, out.Battle.EnemyHP)
	assert.Equal(t, 100, out.Character.HP)
	assert.Contains(t, out.Message, "Pirate Orc")

	saved := f.characters.get(t, ch.ID)
	assert.Equal(t, 100, saved.HP)
	assert.Empty(t, saved.Cooldowns)

	live, err := f.sessions.Battle(info.ID)
	require.NoError(t, err)
	assert.Equal(t, out.Battle, live)
}

func TestAttack_ResolvesAndPersists(t *testing.T) {
	f := newFixture(t)
	info, ch := f.player(t, "zoro")
	ctx := context.Background()
	_, err := f.battles.StartBattle(ctx, info)
	require.NoError(t, err)

	out, err := f.battles.Attack(ctx, info)
	require.NoError(t, err)
	assert.False(t, out.Rejected())
	assert.Equal(t, 42, out.Battle.EnemyHP)
	assert.Equal(t, 99, out.Character.HP)
	assert.Contains(t, out.Log, "You attack the Pirate Orc for 8 damage.")
	assert.Equal(t, out.Character.HP, out.Battle.PlayerHP)

	saved := f.characters.get(t, ch.ID)
	assert.Equal(t, 99, saved.HP)
	assert.Equal(t, out.Character.Version, saved.Version)

	live, err := f.sessions.Battle(info.ID)
	require.NoError(t, err)
	assert.Equal(t, 42, live.EnemyHP)
}

func TestAttack_WithoutBattleIsRejectedNotPersisted(t *testing.T) {
	f := newFixture(t)
	info, ch := f.player(t, "usopp")
	before := f.characters.get(t, ch.ID)

	out, err := f.battles.Attack(context.Background(), info)
	require.NoError(t, err)
	require.True(t, out.Rejected())
	assert.Equal(t, combat.NoActiveBattle, out.Rejection.Kind)
	assert.Equal(t, "no active battle", out.Message)
	assert.Nil(t, out.Battle)
	assert.Equal(t, before.Version, f.characters.get(t, ch.ID).Version)
}

func TestUseSkill_CooldownRejectionLeavesStateUntouched(t *testing.T) {
	f := newFixture(t)
	info, ch := f.player(t, "sanji")
	ctx := context.Background()
	_, err := f.battles.StartBattle(ctx, info)
	require.NoError(t, err)
	_, err = f.battles.EquipSkill(ctx, info, 1, "blast")
	require.NoError(t, err)

	first, err := f.battles.UseSkill(ctx, info, "blast")
	require.NoError(t, err)
	require.False(t, first.Rejected())
	// 20 + 10*0.5 = 25
	assert.Equal(t, 25, first.Battle.EnemyHP)
	assert.Equal(t, 2, first.Character.Cooldowns.Remaining("blast"))
	version := f.characters.get(t, ch.ID).Version

	second, err := f.battles.UseSkill(ctx, info, "blast")
	require.NoError(t, err)
	require.True(t, second.Rejected())
	assert.Equal(t, combat.SkillOnCooldown, second.Rejection.Kind)
	assert.Equal(t, 2, second.Rejection.Remaining)
	assert.Equal(t, 25, second.Battle.EnemyHP)
	assert.Equal(t, version, f.characters.get(t, ch.ID).Version)

	live, err := f.sessions.Battle(info.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Battle, live)
}

func TestUseSkill_NotEquipped(t *testing.T) {
	f := newFixture(t)
	info, _ := f.player(t, "robin")
	ctx := context.Background()
	_, err := f.battles.StartBattle(ctx, info)
	require.NoError(t, err)

	out, err := f.battles.UseSkill(ctx, info, "volley")
	require.NoError(t, err)
	require.True(t, out.Rejected())
	assert.Equal(t, combat.SkillNotActive, out.Rejection.Kind)
}

func TestAttack_VictoryClearsStoredBattle(t *testing.T) {
	f := newFixture(t)
	info, ch := f.player(t, "franky")
	ctx := context.Background()
	_, err := f.battles.StartBattle(ctx, info)
	require.NoError(t, err)

	var out Outcome
	for i := 0; i < 20; i++ {
		out, err = f.battles.Attack(ctx, info)
		require.NoError(t, err)
		if out.Battle.Status != combat.StatusActive {
			break
		}
	}
	require.Equal(t, combat.StatusWin, out.Battle.Status)
	assert.Equal(t, 0, out.Battle.EnemyHP)
	assert.Contains(t, out.Log, "The Pirate Orc is defeated!")
	assert.Contains(t, out.Log, "You gain 50 experience.")

	live, err := f.sessions.Battle(info.ID)
	require.NoError(t, err)
	assert.Nil(t, live)

	saved := f.characters.get(t, ch.ID)
	assert.Equal(t, 50, saved.Experience)
	assert.Equal(t, 1, saved.Inventory["Health Potion"])
	assert.Equal(t, 10, saved.Gold)

	next, err := f.battles.Attack(ctx, info)
	require.NoError(t, err)
	assert.True(t, next.Rejected())
}

func TestTurn_BusyCharacterFailsFast(t *testing.T) {
	f := newFixture(t)
	info, _ := f.player(t, "brook")
	ctx := context.Background()
	_, err := f.battles.StartBattle(ctx, info)
	require.NoError(t, err)

	release, ok := f.battles.locks.TryLock(characterKey(info.CharacterID))
	require.True(t, ok)
	_, err = f.battles.Attack(ctx, info)
	assert.ErrorIs(t, err, storage.ErrConcurrentModification)
	release()

	_, err = f.battles.Attack(ctx, info)
	assert.NoError(t, err)
}

func TestTurn_LostVersionRaceKeepsBattle(t *testing.T) {
	f := newFixture(t)
	info, ch := f.player(t, "jinbe")
	ctx := context.Background()
	_, err := f.battles.StartBattle(ctx, info)
	require.NoError(t, err)
	before, err := f.sessions.Battle(info.ID)
	require.NoError(t, err)

	// another writer bumps the stored version between load and save
	f.characters.beforeSave = func(row *character.Character) { row.Version++ }
	_, err = f.battles.Attack(ctx, info)
	assert.ErrorIs(t, err, storage.ErrConcurrentModification)
	f.characters.beforeSave = nil

	after, err := f.sessions.Battle(info.ID)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, 100, f.characters.get(t, ch.ID).HP)
}

func TestTurn_SavedTurnSurvivesExpiredSession(t *testing.T) {
	f := newFixture(t)
	info, ch := f.player(t, "brulee")
	ctx := context.Background()
	_, err := f.battles.StartBattle(ctx, info)
	require.NoError(t, err)

	// the session expires while the turn is being saved
	f.characters.beforeSave = func(*character.Character) { _ = f.sessions.Remove(info.ID) }
	out, err := f.battles.Attack(ctx, info)
	f.characters.beforeSave = nil
	require.NoError(t, err)
	assert.False(t, out.Rejected())
	require.NotNil(t, out.Character)
	assert.Equal(t, 99, out.Character.HP)
	assert.Equal(t, 99, f.characters.get(t, ch.ID).HP)
}

func TestTurn_ConcurrentRequestsNeverInterleave(t *testing.T) {
	f := newFixture(t)
	info, ch := f.player(t, "chopper")
	ctx := context.Background()
	_, err := f.battles.StartBattle(ctx, info)
	require.NoError(t, err)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		resolved int
	)
	// five turns cannot finish a 50 hp enemy, so the battle stays live
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := f.battles.Attack(ctx, info)
			if err != nil {
				assert.ErrorIs(t, err, storage.ErrConcurrentModification)
				return
			}
			if !out.Rejected() {
				mu.Lock()
				resolved++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.GreaterOrEqual(t, resolved, 1)

	live, err := f.sessions.Battle(info.ID)
	require.NoError(t, err)
	saved := f.characters.get(t, ch.ID)
	// every resolved turn dealt 8 and took 1
	assert.Equal(t, 50-8*resolved, live.EnemyHP)
	assert.Equal(t, 100-resolved, saved.HP)
	assert.Equal(t, saved.HP, live.PlayerHP)
}

func TestFlee(t *testing.T) {
	f := newFixture(t)
	info, ch := f.player(t, "vivi")
	ctx := context.Background()

	out, err := f.battles.Flee(ctx, info)
	require.NoError(t, err)
	assert.True(t, out.Rejected())

	_, err = f.battles.StartBattle(ctx, info)
	require.NoError(t, err)
	_, err = f.battles.Attack(ctx, info)
	require.NoError(t, err)
	version := f.characters.get(t, ch.ID).Version

	out, err = f.battles.Flee(ctx, info)
	require.NoError(t, err)
	assert.False(t, out.Rejected())
	assert.Equal(t, "You fled from the Pirate Orc.", out.Message)
	live, err := f.sessions.Battle(info.ID)
	require.NoError(t, err)
	assert.Nil(t, live)
	assert.Equal(t, version, f.characters.get(t, ch.ID).Version)

	got, err := f.battles.GetBattle(ctx, info)
	require.NoError(t, err)
	assert.Nil(t, got.Battle)
}

func TestDistributePoints(t *testing.T) {
	f := newFixture(t)
	info, ch := f.player(t, "carrot")
	ctx := context.Background()

	stored := f.characters.get(t, ch.ID)
	stored.SkillPoints = 4
	require.NoError(t, f.characters.Save(ctx, stored))

	out, err := f.battles.DistributePoints(ctx, info, "Defense", 3)
	require.NoError(t, err)
	assert.Equal(t, "Allocated 3 point(s) to defense.", out.Message)
	assert.Equal(t, 13, out.Character.Stats.Defense)
	assert.Equal(t, 1, out.Character.SkillPoints)

	_, err = f.battles.DistributePoints(ctx, info, "defense", 2)
	assert.ErrorIs(t, err, character.ErrInsufficientPoints)
	_, err = f.battles.DistributePoints(ctx, info, "luck", 1)
	assert.ErrorIs(t, err, character.ErrInvalidStat)

	saved := f.characters.get(t, ch.ID)
	assert.Equal(t, 13, saved.Stats.Defense)
	assert.Equal(t, 1, saved.SkillPoints)
}

func TestEquipSkill(t *testing.T) {
	f := newFixture(t)
	info, ch := f.player(t, "yamato")
	ctx := context.Background()
	assert.Equal(t, character.SkillSlots{"strike", "guard"}, ch.ActiveSkills)

	out, err := f.battles.EquipSkill(ctx, info, 0, "blast")
	require.NoError(t, err)
	assert.Equal(t, "Blast equipped in slot 1.", out.Message)
	assert.Equal(t, character.SkillSlots{"blast", "guard"}, out.Character.ActiveSkills)

	_, err = f.battles.EquipSkill(ctx, info, 1, "volley")
	assert.ErrorIs(t, err, character.ErrSkillNotLearned)
	_, err = f.battles.EquipSkill(ctx, info, 2, "strike")
	assert.ErrorIs(t, err, character.ErrInvalidSlot)

	out, err = f.battles.EquipSkill(ctx, info, 1, "")
	require.NoError(t, err)
	assert.Equal(t, character.SkillSlots{"blast", ""}, out.Character.ActiveSkills)
}

func TestFlee_BusyCharacterKeepsBattle(t *testing.T) {
	f := newFixture(t)
	info, _ := f.player(t, "pekoms")
	ctx := context.Background()
	_, err := f.battles.StartBattle(ctx, info)
	require.NoError(t, err)

	release, ok := f.battles.locks.TryLock(characterKey(info.CharacterID))
	require.True(t, ok)
	_, err = f.battles.Flee(ctx, info)
	assert.ErrorIs(t, err, storage.ErrConcurrentModification)
	live, err := f.sessions.Battle(info.ID)
	require.NoError(t, err)
	assert.NotNil(t, live)
	release()

	out, err := f.battles.Flee(ctx, info)
	require.NoError(t, err)
	assert.False(t, out.Rejected())
	live, err = f.sessions.Battle(info.ID)
	require.NoError(t, err)
	assert.Nil(t, live)
}

func TestBattleService_RequiresOwnedSelectedCharacter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, ch := f.player(t, "kaido")

	noChar := f.sessions.Create(99, "nobody", 0)
	_, err := f.battles.StartBattle(ctx, noChar)
	assert.ErrorIs(t, err, ErrNoCharacterSelected)
	_, err = f.battles.Flee(ctx, noChar)
	assert.ErrorIs(t, err, ErrNoCharacterSelected)

	intruder := session.Info{ID: "x", AccountID: 99, CharacterID: ch.ID}
	_, err = f.battles.StartBattle(ctx, intruder)
	assert.ErrorIs(t, err, storage.ErrCharacterNotFound)
}
