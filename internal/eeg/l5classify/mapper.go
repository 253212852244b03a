package l5classify

import "github.com/synapse-data/gaze.report/internal/eeg"

// Mapper translates a movement class into the command vocabulary a
// downstream consumer understands. Mappers are pure and total.
type Mapper func(eeg.Movement) eeg.Command

// MapMinimal serves three-command consumers: horizontal movement steers,
// everything else is idle.
func MapMinimal(m eeg.Movement) eeg.Command {
	switch m {
	case eeg.MovementLeft:
		return eeg.CommandLeft
	case eeg.MovementRight:
		return eeg.CommandRight
	default:
		return eeg.CommandIdle
	}
}

// MapFull passes every class through, keeping blink distinct for consumers
// with a discrete fire action.
func MapFull(m eeg.Movement) eeg.Command {
	switch m {
	case eeg.MovementLeft:
		return eeg.CommandLeft
	case eeg.MovementRight:
		return eeg.CommandRight
	case eeg.MovementUp:
		return eeg.CommandUp
	case eeg.MovementDown:
		return eeg.CommandDown
	case eeg.MovementBlink:
		return eeg.CommandBlink
	default:
		return eeg.CommandIdle
	}
}
