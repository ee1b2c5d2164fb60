package installer

import "fmt"

// State is a step of the install state machine.
type State int

const (
	Initializing State = iota
	ValidatingPath
	CreatingDirectories
	InstallingPackages
	ConfiguringPackages
	CleaningUp
	ValidatingInstallation
	Completed
	Cancelled
	Failed
)

// weightedPhases are the states that carry a share of the overall progress,
// in run order.
var weightedPhases = []State{
	ValidatingPath,
	CreatingDirectories,
	InstallingPackages,
	ConfiguringPackages,
	CleaningUp,
	ValidatingInstallation,
}

func (s State) String() string {
	switch s {
	case Initializing:
		return "Initializing"
	case ValidatingPath:
		return "ValidatingPath"
	case CreatingDirectories:
		return "CreatingDirectories"
	case InstallingPackages:
		return "InstallingPackages"
	case ConfiguringPackages:
		return "ConfiguringPackages"
	case CleaningUp:
		return "CleaningUp"
	case ValidatingInstallation:
		return "ValidatingInstallation"
	case Completed:
		return "Completed"
	case Cancelled:
		return "Cancelled"
	case Failed:
		return "Failed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == Completed || s == Cancelled || s == Failed
}

func phaseIndex(s State) int {
	for i, p := range weightedPhases {
		if p == s {
			return i
		}
	}
	return -1
}
