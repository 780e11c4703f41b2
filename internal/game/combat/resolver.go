package combat

import (
	"fmt"

	"github.com/cory-johannsen/corsair/internal/game/character"
	"github.com/cory-johannsen/corsair/internal/game/condition"
	"github.com/cory-johannsen/corsair/internal/game/skill"
)

// Result is the outcome of one resolved turn.
type Result struct {
	// Session is the next battle state. It is nil only when the input session was nil.
	Session *Session
	// Character is the next character state.
	Character *character.Character
	// Log holds the lines appended during this turn, in order.
	Log []string
	// Rejection is set when a game rule refused the action; Session and Character are then
	// unchanged copies of the inputs.
	Rejection *Rejection
}

// Rejected reports whether the action was refused.
func (r Result) Rejected() bool { return r.Rejection != nil }

// Ended reports whether this turn moved the battle into a terminal status.
func (r Result) Ended() bool {
	return r.Rejection == nil && r.Session != nil && r.Session.Status.Terminal()
}

// ResolveTurn applies one player action and, unless it wins the battle, the decay phase and
// exactly one enemy counter-attack.
//
// Precondition: ch must not be nil; catalog must not be nil; rules must pass Validate.
// Postcondition: sess and ch are never modified. Game-rule violations produce a Result with
// a Rejection and a nil error. A non-nil error means the stored state or catalog is corrupt
// and no part of the turn should be persisted.
func ResolveTurn(sess *Session, ch *character.Character, act Action, catalog skill.Catalog, rules Rules) (Result, error) {
	if err := ch.Validate(); err != nil {
		return Result{}, err
	}
	nextCh := ch.Clone()
	if sess == nil || sess.Status != StatusActive {
		var nextSess *Session
		if sess != nil {
			nextSess = sess.Clone()
		}
		return reject(nextSess, nextCh, Rejection{Kind: NoActiveBattle, Message: "no active battle"}), nil
	}
	if err := sess.Validate(); err != nil {
		return Result{}, err
	}
	next := sess.Clone()
	t := &turn{sess: next, ch: nextCh, catalog: catalog, rules: rules}

	switch a := act.(type) {
	case BasicAttack:
		t.basicAttack()
	case UseSkill:
		rej, err := t.useSkill(a.SkillID)
		if err != nil {
			return Result{}, err
		}
		if rej != nil {
			return reject(sess.Clone(), ch.Clone(), *rej), nil
		}
	default:
		return Result{}, fmt.Errorf("unsupported action %T", act)
	}

	if next.EnemyHP <= 0 {
		next.EnemyHP = 0
		next.Status = StatusWin
		next.logf(&t.delta, "The %s is defeated!", next.EnemyName)
		if err := ApplyVictory(nextCh, catalog, rules, func(line string) { next.logf(&t.delta, "%s", line) }); err != nil {
			return Result{}, err
		}
		// a level-up heals, so mirror hp only once victory is applied
		next.PlayerHP = nextCh.HP
		return Result{Session: next, Character: nextCh, Log: t.delta}, nil
	}

	t.decay()
	t.enemyAttack()

	if nextCh.HP <= 0 {
		nextCh.HP = 0
		next.PlayerHP = 0
		next.Status = StatusLose
		next.logf(&t.delta, "You have been defeated by the %s.", next.EnemyName)
	} else {
		next.PlayerHP = nextCh.HP
	}
	return Result{Session: next, Character: nextCh, Log: t.delta}, nil
}

func reject(sess *Session, ch *character.Character, rej Rejection) Result {
	return Result{Session: sess, Character: ch, Log: []string{rej.Message}, Rejection: &rej}
}

// turn carries the working copies through one resolution.
type turn struct {
	sess    *Session
	ch      *character.Character
	catalog skill.Catalog
	rules   Rules
	delta   []string
}

func (t *turn) basicAttack() {
	dmg := t.rules.PlayerAttackDamage(t.ch.EffectiveStat(condition.StatAttack), t.sess.EnemyLevel)
	t.sess.EnemyHP -= dmg
	t.sess.logf(&t.delta, "You attack the %s for %d damage.", t.sess.EnemyName, dmg)
}

// useSkill returns a Rejection for rule violations and an error for catalog faults.
func (t *turn) useSkill(id string) (*Rejection, error) {
	if !t.ch.ActiveSkills.Contains(id) {
		return &Rejection{
			Kind:    SkillNotActive,
			SkillID: id,
			Message: fmt.Sprintf("skill %q is not equipped", id),
		}, nil
	}
	if left := t.ch.Cooldowns.Remaining(id); left > 0 {
		return &Rejection{
			Kind:      SkillOnCooldown,
			SkillID:   id,
			Remaining: left,
			Message:   fmt.Sprintf("skill %q is on cooldown for %d more turn(s)", id, left),
		}, nil
	}
	sk, err := t.catalog.FindByID(id)
	if err != nil {
		return nil, fmt.Errorf("resolving equipped skill: %w", err)
	}

	switch eff := sk.Effect.(type) {
	case skill.Damage:
		dmg := t.rules.SkillDamage(eff.Amount, t.ch.Stats.Attack)
		t.sess.EnemyHP -= dmg
		t.logEffect(eff, "%s deals %d damage to the %s.", sk.Name, dmg, t.sess.EnemyName)
	case skill.Buff:
		refreshed, err := t.ch.Buffs.Apply(condition.Buff{
			Name:           sk.Name,
			Stat:           eff.Stat,
			Magnitude:      eff.Bonus,
			TurnsRemaining: eff.Duration,
		})
		if err != nil {
			return nil, fmt.Errorf("applying buff from skill %q: %w", id, err)
		}
		verb := "rises"
		if refreshed {
			verb = "is renewed"
		}
		t.logEffect(eff, "Your %s %s by %.0f%% for %d turn(s).", eff.Stat, verb, eff.Bonus*100, eff.Duration)
	case skill.Heal:
		before := t.ch.HP
		t.ch.HP += eff.Amount
		t.ch.ClampHP()
		t.logEffect(eff, "You recover %d hp.", t.ch.HP-before)
	default:
		return nil, fmt.Errorf("skill %q has unsupported effect %T", id, sk.Effect)
	}
	t.ch.Cooldowns.Set(id, sk.Cooldown)
	return nil, nil
}

// logEffect prefixes the effect's flavor message, when it has one, to the outcome line.
func (t *turn) logEffect(eff skill.Effect, format string, args ...any) {
	if f := eff.Flavor(); f != "" {
		format = "%s " + format
		args = append([]any{f}, args...)
	}
	t.sess.logf(&t.delta, format, args...)
}

// decay ticks buffs then cooldowns. It runs before every enemy counter-attack.
func (t *turn) decay() {
	for _, b := range t.ch.Buffs.Tick() {
		t.sess.logf(&t.delta, "%s (%s) has worn off.", b.Name, b.Stat)
	}
	for _, id := range t.ch.Cooldowns.Tick() {
		name := id
		if sk, err := t.catalog.FindByID(id); err == nil {
			name = sk.Name
		}
		t.sess.logf(&t.delta, "%s is ready.", name)
	}
}

func (t *turn) enemyAttack() {
	dmg := t.rules.EnemyDamage(t.sess.EnemyLevel, t.ch.EffectiveStat(condition.StatDefense))
	t.ch.HP -= dmg
	t.ch.ClampHP()
	t.sess.logf(&t.delta, "The %s hits you for %d damage.", t.sess.EnemyName, dmg)
}
