package combat

import (
	"errors"
	"fmt"
	"math"

	"github.com/cory-johannsen/corsair/internal/game/inventory"
)

// Rules holds every tunable constant of the battle and progression formulas.
type Rules struct {
	// AttackPenaltyPerLevel is subtracted from the player's effective attack per enemy level.
	AttackPenaltyPerLevel float64
	// EnemyAttackPerLevel is the enemy's raw attack per enemy level.
	EnemyAttackPerLevel float64
	// DefenseDivisor scales down the player's effective defense against enemy attacks.
	DefenseDivisor float64
	// SkillAttackScale is the share of base attack added to damage skills.
	SkillAttackScale float64

	VictoryXP      int
	XPPerLevel     int
	PointsPerLevel int
	MaxHPPerLevel  int
	Loot           inventory.LootTable
}

// DefaultRules returns the standard rules.
func DefaultRules() Rules {
	return Rules{
		AttackPenaltyPerLevel: 2,
		EnemyAttackPerLevel:   5,
		DefenseDivisor:        2,
		SkillAttackScale:      0.5,
		VictoryXP:             50,
		XPPerLevel:            100,
		PointsPerLevel:        4,
		MaxHPPerLevel:         20,
		Loot:                  inventory.DefaultLoot,
	}
}

// Validate checks that the rules keep the engine total.
//
// Postcondition: Returns nil iff every multiplier is non-negative, DefenseDivisor > 0 and
// XPPerLevel > 0 (so the level-up loop terminates) and the loot table is valid.
func (r Rules) Validate() error {
	var errs []error
	if r.AttackPenaltyPerLevel < 0 || r.EnemyAttackPerLevel < 0 || r.SkillAttackScale < 0 {
		errs = append(errs, fmt.Errorf("damage multipliers must be >= 0"))
	}
	if !(r.DefenseDivisor > 0) {
		errs = append(errs, fmt.Errorf("defense divisor must be > 0, got %v", r.DefenseDivisor))
	}
	if r.XPPerLevel <= 0 {
		errs = append(errs, fmt.Errorf("xp per level must be > 0, got %d", r.XPPerLevel))
	}
	if r.VictoryXP < 0 || r.PointsPerLevel < 0 || r.MaxHPPerLevel < 0 {
		errs = append(errs, fmt.Errorf("victory xp, points and max hp growth must be >= 0"))
	}
	if err := r.Loot.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// floorDamage truncates toward negative infinity and enforces the one-point minimum.
//
// Postcondition: Returns >= 1.
func floorDamage(raw float64) int {
	if math.IsNaN(raw) || raw < 1 {
		return 1
	}
	if raw > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(math.Floor(raw))
}

// PlayerAttackDamage is the damage a basic attack deals.
//
// Postcondition: Returns max(1, floor(effectiveAttack - enemyLevel*AttackPenaltyPerLevel)).
func (r Rules) PlayerAttackDamage(effectiveAttack float64, enemyLevel int) int {
	return floorDamage(effectiveAttack - float64(enemyLevel)*r.AttackPenaltyPerLevel)
}

// SkillDamage is the damage a damage skill deals.
//
// Postcondition: Returns max(1, floor(amount + baseAttack*SkillAttackScale)).
func (r Rules) SkillDamage(amount, baseAttack int) int {
	return floorDamage(float64(amount) + float64(baseAttack)*r.SkillAttackScale)
}

// EnemyDamage is the damage of the enemy's counter-attack.
//
// Postcondition: Returns max(1, floor(enemyLevel*EnemyAttackPerLevel - effectiveDefense/DefenseDivisor)).
func (r Rules) EnemyDamage(enemyLevel int, effectiveDefense float64) int {
	return floorDamage(float64(enemyLevel)*r.EnemyAttackPerLevel - effectiveDefense/r.DefenseDivisor)
}
