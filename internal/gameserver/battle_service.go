package gameserver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/cory-johannsen/corsair/internal/game/character"
	"github.com/cory-johannsen/corsair/internal/game/combat"
	"github.com/cory-johannsen/corsair/internal/game/session"
	"github.com/cory-johannsen/corsair/internal/storage"
)

// BattleService runs battles and the out-of-battle character operations for the active
// character of a session. Work on one character is serialized: a second request while one
// is in flight fails fast with storage.ErrConcurrentModification, and every write is
// guarded by the stored version.
type BattleService struct {
	characters CharacterStore
	battles    BattleStore
	catalog    SkillCatalog
	rules      combat.Rules
	enemy      combat.EnemyProfile
	locks      *keyedLock
	logger     *zap.Logger
}

// NewBattleService creates a BattleService.
//
// Precondition: every dependency must be non-nil; rules and enemy must be valid.
func NewBattleService(characters CharacterStore, battles BattleStore, catalog SkillCatalog, rules combat.Rules, enemy combat.EnemyProfile, logger *zap.Logger) (*BattleService, error) {
	if err := rules.Validate(); err != nil {
		return nil, fmt.Errorf("battle rules: %w", err)
	}
	if err := enemy.Validate(); err != nil {
		return nil, err
	}
	return &BattleService{
		characters: characters,
		battles:    battles,
		catalog:    catalog,
		rules:      rules,
		enemy:      enemy,
		locks:      newKeyedLock(),
		logger:     logger,
	}, nil
}

// acquire locks the session's active character and loads it.
//
// Postcondition: on success the caller must call release.
func (s *BattleService) acquire(ctx context.Context, sess session.Info) (*character.Character, func(), error) {
	if !sess.HasCharacter() {
		return nil, nil, ErrNoCharacterSelected
	}
	release, ok := s.locks.TryLock(characterKey(sess.CharacterID))
	if !ok {
		return nil, nil, fmt.Errorf("%w: character %d is busy", storage.ErrConcurrentModification, sess.CharacterID)
	}
	ch, err := s.characters.GetByID(ctx, sess.CharacterID)
	if err != nil {
		release()
		return nil, nil, err
	}
	if ch.AccountID != sess.AccountID {
		release()
		return nil, nil, storage.ErrCharacterNotFound
	}
	return ch, release, nil
}

func characterKey(id int64) string { return fmt.Sprintf("character:%d", id) }

// StartBattle begins a fresh encounter against the configured enemy, replacing any battle
// already in progress.
//
// Postcondition: the character is saved with full hp and no buffs or cooldowns, and the new
// active battle is stored for the session.
func (s *BattleService) StartBattle(ctx context.Context, sess session.Info) (Outcome, error) {
	ch, release, err := s.acquire(ctx, sess)
	if err != nil {
		return Outcome{}, err
	}
	defer release()

	battle, next, err := combat.Start(ch, s.enemy)
	if err != nil {
		return Outcome{}, err
	}
	if err := s.characters.Save(ctx, next); err != nil {
		return Outcome{}, fmt.Errorf("saving character: %w", err)
	}
	if err := s.battles.SetBattle(sess.ID, battle); err != nil {
		return Outcome{}, err
	}
	s.logger.Info("battle started",
		zap.Int64("character_id", next.ID),
		zap.String("enemy", battle.EnemyName),
		zap.Int("enemy_level", battle.EnemyLevel),
	)
	return Outcome{Message: summarize(battle.Log), Log: battle.Log, Battle: battle, Character: next}, nil
}

// Attack resolves a basic attack turn.
func (s *BattleService) Attack(ctx context.Context, sess session.Info) (Outcome, error) {
	return s.turn(ctx, sess, combat.BasicAttack{})
}

// UseSkill resolves a turn using the equipped skill skillID.
func (s *BattleService) UseSkill(ctx context.Context, sess session.Info, skillID string) (Outcome, error) {
	return s.turn(ctx, sess, combat.UseSkill{SkillID: strings.TrimSpace(skillID)})
}

// turn loads, resolves, saves and stores one battle turn.
//
// Postcondition: a rejected action persists nothing. A resolved turn saves the character
// before storing the battle, so a lost version race leaves the stored battle untouched.
// Once the save succeeds the outcome is returned even if the battle can no longer be
// stored (e.g. the session expired mid-turn); the failure is only logged.
func (s *BattleService) turn(ctx context.Context, sess session.Info, act combat.Action) (Outcome, error) {
	ch, release, err := s.acquire(ctx, sess)
	if err != nil {
		return Outcome{}, err
	}
	defer release()

	battle, err := s.battles.Battle(sess.ID)
	if err != nil {
		return Outcome{}, err
	}
	res, err := combat.ResolveTurn(battle, ch, act, s.catalog, s.rules)
	if err != nil {
		s.logger.Error("turn aborted",
			zap.Int64("character_id", ch.ID),
			zap.String("action", act.Name()),
			zap.Error(err),
		)
		return Outcome{}, fmt.Errorf("%w: %s: %w", ErrTurnAborted, act.Name(), err)
	}
	if res.Rejected() {
		return Outcome{
			Message:   res.Rejection.Message,
			Battle:    res.Session,
			Character: res.Character,
			Rejection: res.Rejection,
		}, nil
	}

	if err := s.characters.Save(ctx, res.Character); err != nil {
		if errors.Is(err, storage.ErrConcurrentModification) {
			s.logger.Warn("turn lost version race", zap.Int64("character_id", ch.ID))
		}
		return Outcome{}, fmt.Errorf("saving character: %w", err)
	}
	stored := res.Session
	if res.Ended() {
		stored = nil
		s.logger.Info("battle ended",
			zap.Int64("character_id", ch.ID),
			zap.String("status", string(res.Session.Status)),
			zap.Int("level", res.Character.Level),
		)
	}
	if err := s.battles.SetBattle(sess.ID, stored); err != nil {
		s.logger.Warn("storing battle after saved turn",
			zap.Int64("character_id", ch.ID),
			zap.String("session_id", sess.ID),
			zap.Error(err),
		)
	}
	return Outcome{
		Message:   summarize(res.Log),
		Log:       res.Log,
		Battle:    res.Session,
		Character: res.Character,
	}, nil
}

// Flee discards the session's battle without touching the character. It holds the
// character lock so an in-flight turn cannot store the battle back afterwards.
func (s *BattleService) Flee(ctx context.Context, sess session.Info) (Outcome, error) {
	_, release, err := s.acquire(ctx, sess)
	if err != nil {
		return Outcome{}, err
	}
	defer release()

	battle, err := s.battles.Battle(sess.ID)
	if err != nil {
		return Outcome{}, err
	}
	if battle == nil || battle.Status.Terminal() {
		rej := &combat.Rejection{Kind: combat.NoActiveBattle, Message: "no active battle"}
		return Outcome{Message: rej.Message, Rejection: rej}, nil
	}
	if err := s.battles.SetBattle(sess.ID, nil); err != nil {
		return Outcome{}, err
	}
	return Outcome{Message: fmt.Sprintf("You fled from the %s.", battle.EnemyName)}, nil
}

// GetBattle returns the session's live battle, if any.
func (s *BattleService) GetBattle(ctx context.Context, sess session.Info) (Outcome, error) {
	battle, err := s.battles.Battle(sess.ID)
	if err != nil {
		return Outcome{}, err
	}
	if battle == nil {
		return Outcome{Message: "no active battle"}, nil
	}
	return Outcome{Message: fmt.Sprintf("Fighting a level %d %s.", battle.EnemyLevel, battle.EnemyName), Battle: battle}, nil
}

// DistributePoints spends points unallocated skill points on stat.
//
// Postcondition: the stat rises and the pool shrinks by exactly points, or nothing is saved.
func (s *BattleService) DistributePoints(ctx context.Context, sess session.Info, stat string, points int) (Outcome, error) {
	return s.mutate(ctx, sess, func(ch *character.Character) (string, error) {
		if err := ch.AllocatePoints(stat, points); err != nil {
			return "", err
		}
		return fmt.Sprintf("Allocated %d point(s) to %s.", points, strings.ToLower(strings.TrimSpace(stat))), nil
	})
}

// EquipSkill places a learned skill into slot. An empty skillID clears the slot.
func (s *BattleService) EquipSkill(ctx context.Context, sess session.Info, slot int, skillID string) (Outcome, error) {
	skillID = strings.TrimSpace(skillID)
	return s.mutate(ctx, sess, func(ch *character.Character) (string, error) {
		if skillID == "" {
			if err := ch.ClearSlot(slot); err != nil {
				return "", err
			}
			return fmt.Sprintf("Slot %d cleared.", slot+1), nil
		}
		sk, err := s.catalog.FindByID(skillID)
		if err != nil {
			return "", err
		}
		if err := ch.EquipSkill(slot, skillID); err != nil {
			return "", err
		}
		return fmt.Sprintf("%s equipped in slot %d.", sk.Name, slot+1), nil
	})
}

// mutate applies fn to a copy of the active character and saves it.
func (s *BattleService) mutate(ctx context.Context, sess session.Info, fn func(ch *character.Character) (string, error)) (Outcome, error) {
	ch, release, err := s.acquire(ctx, sess)
	if err != nil {
		return Outcome{}, err
	}
	defer release()

	next := ch.Clone()
	msg, err := fn(next)
	if err != nil {
		return Outcome{}, err
	}
	if err := s.characters.Save(ctx, next); err != nil {
		return Outcome{}, fmt.Errorf("saving character: %w", err)
	}
	return Outcome{Message: msg, Character: next}, nil
}
