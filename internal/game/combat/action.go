package combat

// Action is what the player does on their turn. It is a closed set: BasicAttack or UseSkill.
type Action interface {
	// Name is a short label used in logs.
	Name() string
	action()
}

// BasicAttack strikes the enemy with the character's effective attack.
type BasicAttack struct{}

// UseSkill activates an equipped skill that is off cooldown.
type UseSkill struct {
	SkillID string
}

func (BasicAttack) Name() string { return "attack" }
func (UseSkill) Name() string    { return "skill" }

func (BasicAttack) action() {}
func (UseSkill) action()    {}

// RejectionKind classifies a game-rule violation.
type RejectionKind int

const (
	// NoActiveBattle means there is no session or the session is terminal.
	NoActiveBattle RejectionKind = iota + 1
	// SkillNotActive means the skill is not in one of the character's slots.
	SkillNotActive
	// SkillOnCooldown means the skill still has turns remaining on its cooldown.
	SkillOnCooldown
)

// String returns a stable identifier for the rejection kind.
func (k RejectionKind) String() string {
	switch k {
	case NoActiveBattle:
		return "no_active_battle"
	case SkillNotActive:
		return "skill_not_active"
	case SkillOnCooldown:
		return "skill_on_cooldown"
	default:
		return "unknown"
	}
}

// Rejection is a recoverable, user-correctable refusal to resolve a turn. It is a value,
// not an error: nothing was mutated and the caller should render Message to the user.
type Rejection struct {
	Kind    RejectionKind
	SkillID string
	// Remaining is the cooldown left when Kind is SkillOnCooldown.
	Remaining int
	Message   string
}
