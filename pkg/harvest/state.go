package harvest

// State is a step of the pagination driver
type State int

const (
	StateInit State = iota
	StateLoadingCheckpoint
	StateFetching
	StateMerging
	StateCheckpointing
	StateDone
	StateStoppedOnError
)

var stateNames = [...]string{
	StateInit:              "INIT",
	StateLoadingCheckpoint: "LOADING_CHECKPOINT",
	StateFetching:          "FETCHING",
	StateMerging:           "MERGING",
	StateCheckpointing:     "CHECKPOINTING",
	StateDone:              "DONE",
	StateStoppedOnError:    "STOPPED_ON_ERROR",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "UNKNOWN"
	}
	return stateNames[s]
}

// Terminal reports whether the driver stops in this state
func (s State) Terminal() bool {
	return s == StateDone || s == StateStoppedOnError
}
