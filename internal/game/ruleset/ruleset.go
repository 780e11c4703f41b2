// Package ruleset defines the fixed character options: combat class, faction and gender.
package ruleset

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownOption is returned when a class, faction or gender name is not recognized.
var ErrUnknownOption = errors.New("unknown option")

// Class is a combat class. It gates which skills a character can learn.
type Class string

const (
	ClassStriker Class = "striker" // gunslinger
	ClassDuelist Class = "duelist" // swordsman
	ClassBrawler Class = "brawler" // fist fighter
)

// Classes lists every playable class in display order.
var Classes = []Class{ClassStriker, ClassDuelist, ClassBrawler}

// Faction is the side of the sea a character sails for.
type Faction string

const (
	FactionMarine Faction = "marine"
	FactionPirate Faction = "pirate"
)

// Gender is a cosmetic character attribute.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

// ParseClass converts s (case-insensitive) into a Class.
//
// Postcondition: Returns a valid Class or a non-nil error.
func ParseClass(s string) (Class, error) {
	c := Class(strings.ToLower(strings.TrimSpace(s)))
	switch c {
	case ClassStriker, ClassDuelist, ClassBrawler:
		return c, nil
	}
	return "", fmt.Errorf("%w: class must be one of [striker, duelist, brawler], got %q", ErrUnknownOption, s)
}

// ParseFaction converts s (case-insensitive) into a Faction.
//
// Postcondition: Returns a valid Faction or a non-nil error.
func ParseFaction(s string) (Faction, error) {
	f := Faction(strings.ToLower(strings.TrimSpace(s)))
	switch f {
	case FactionMarine, FactionPirate:
		return f, nil
	}
	return "", fmt.Errorf("%w: faction must be one of [marine, pirate], got %q", ErrUnknownOption, s)
}

// ParseGender converts s (case-insensitive) into a Gender.
//
// Postcondition: Returns a valid Gender or a non-nil error.
func ParseGender(s string) (Gender, error) {
	g := Gender(strings.ToLower(strings.TrimSpace(s)))
	switch g {
	case GenderMale, GenderFemale, GenderOther:
		return g, nil
	}
	return "", fmt.Errorf("%w: gender must be one of [male, female, other], got %q", ErrUnknownOption, s)
}
