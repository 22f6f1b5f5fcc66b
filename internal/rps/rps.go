// Package rps is the rock-paper-scissors rule table.
package rps

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/thoas/go-funk"
)

type Selection int

const (
	Rock Selection = iota
	Paper
	Scissors
)

// Selections lists every selection in button order.
var Selections = []Selection{Rock, Paper, Scissors}

var names = []string{"rock", "paper", "scissors"}

var ErrUnknownSelection = errors.New("unknown selection")

func (s Selection) String() string {
	if s < Rock || s > Scissors {
		return fmt.Sprintf("Selection(%d)", int(s))
	}

	return names[s]
}

// Beats reports whether s wins against other.
func (s Selection) Beats(other Selection) bool {
	switch s {
	case Rock:
		return other == Scissors
	case Paper:
		return other == Rock
	case Scissors:
		return other == Paper
	}

	return false
}

func (s Selection) Ties(other Selection) bool {
	return s == other
}

// ParseSelection is the inverse of String.
func ParseSelection(name string) (Selection, error) {
	i := funk.IndexOfString(names, name)
	if i < 0 {
		return 0, fmt.Errorf("%w: %q", ErrUnknownSelection, name)
	}

	return Selection(i), nil
}

// Random draws a selection uniformly from src.
func Random(src *rand.Rand) Selection {
	return Selections[src.Intn(len(Selections))]
}

type Outcome int

const (
	Lose Outcome = iota
	Tie
	Win
)

// Play returns the outcome from the player's side.
func Play(player, computer Selection) Outcome {
	switch {
	case player.Beats(computer):
		return Win
	case player.Ties(computer):
		return Tie
	default:
		return Lose
	}
}

func (o Outcome) Message() string {
	switch o {
	case Win:
		return "You win!"
	case Tie:
		return "You tie."
	default:
		return "You lose."
	}
}

// Result renders the reply sent after a round.
func Result(playerName string, player, computer Selection) string {
	return fmt.Sprintf(
		"%s chose %s and the computer chose %s. \n%s",
		playerName,
		player,
		computer,
		Play(player, computer).Message(),
	)
}
