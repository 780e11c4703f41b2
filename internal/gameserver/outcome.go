package gameserver

import (
	"strings"

	"github.com/cory-johannsen/corsair/internal/game/character"
	"github.com/cory-johannsen/corsair/internal/game/combat"
)

// Outcome is the response of every battle and character operation.
type Outcome struct {
	// Message summarizes what happened for display.
	Message string `json:"message"`
	// Log holds the battle log lines added by this operation.
	Log []string `json:"log,omitempty"`
	// Battle is the battle after the operation; nil when there is none. A battle that just
	// ended is returned once with its terminal status and is no longer stored.
	Battle *combat.Session `json:"battleState"`
	// Character is the character after the operation, when one is involved.
	Character *character.Character `json:"character"`
	// Rejection is set when a game rule refused a battle action.
	Rejection *combat.Rejection `json:"-"`
}

// Rejected reports whether a game rule refused the action.
func (o Outcome) Rejected() bool { return o.Rejection != nil }

func summarize(lines []string) string {
	return strings.Join(lines, " ")
}
