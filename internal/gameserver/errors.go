package gameserver

import (
	"errors"
	"net/http"

	"github.com/cory-johannsen/corsair/internal/game/character"
	"github.com/cory-johannsen/corsair/internal/game/chat"
	"github.com/cory-johannsen/corsair/internal/game/combat"
	"github.com/cory-johannsen/corsair/internal/game/inventory"
	"github.com/cory-johannsen/corsair/internal/game/ruleset"
	"github.com/cory-johannsen/corsair/internal/game/session"
	"github.com/cory-johannsen/corsair/internal/game/skill"
	"github.com/cory-johannsen/corsair/internal/storage"
)

var errorStatus = []struct {
	err    error
	status int
}{
	// Faults first: they may wrap a user-facing sentinel such as skill.ErrSkillNotFound.
	{ErrTurnAborted, http.StatusInternalServerError},
	{character.ErrCorrupt, http.StatusInternalServerError},

	{ErrRateLimited, http.StatusTooManyRequests},

	{storage.ErrInvalidCredentials, http.StatusUnauthorized},
	{ErrInvalidToken, http.StatusUnauthorized},
	{session.ErrSessionNotFound, http.StatusUnauthorized},

	{storage.ErrAccountNotFound, http.StatusNotFound},
	{storage.ErrCharacterNotFound, http.StatusNotFound},
	{skill.ErrSkillNotFound, http.StatusNotFound},

	{storage.ErrAccountExists, http.StatusConflict},
	{storage.ErrCharacterNameTaken, http.StatusConflict},
	{storage.ErrConcurrentModification, http.StatusConflict},
	{ErrCharacterLimit, http.StatusConflict},

	{ErrInvalidUsername, http.StatusBadRequest},
	{ErrInvalidPassword, http.StatusBadRequest},
	{ErrNoCharacterSelected, http.StatusBadRequest},
	{character.ErrInvalidName, http.StatusBadRequest},
	{character.ErrInvalidStat, http.StatusBadRequest},
	{character.ErrInsufficientPoints, http.StatusBadRequest},
	{character.ErrSkillNotLearned, http.StatusBadRequest},
	{character.ErrInvalidSlot, http.StatusBadRequest},
	{ruleset.ErrUnknownOption, http.StatusBadRequest},
	{inventory.ErrInvalidEntry, http.StatusBadRequest},
	{chat.ErrEmptyMessage, http.StatusBadRequest},
	{chat.ErrMessageTooLong, http.StatusBadRequest},
}

// statusFor maps a service error to its HTTP status. Unknown errors are faults.
func statusFor(err error) int {
	for _, e := range errorStatus {
		if errors.Is(err, e.err) {
			return e.status
		}
	}
	return http.StatusInternalServerError
}

// errorText is the client-visible text of err. Faults are not described.
func errorText(err error) string {
	if statusFor(err) == http.StatusInternalServerError {
		return "internal error"
	}
	return err.Error()
}

// rejectionStatus maps a game-rule refusal to its HTTP status.
func rejectionStatus(r *combat.Rejection) int {
	if r.Kind == combat.SkillNotActive {
		return http.StatusBadRequest
	}
	return http.StatusConflict
}
