package task

// State is the auto-link lifecycle of one document.
//
//	unlinked -> queued -> processing -> linked
//	linked -> unlinked (reset)
type State string

// Document link states.
const (
	StateUnlinked   State = "unlinked"
	StateQueued     State = "queued"
	StateProcessing State = "processing"
	StateLinked     State = "linked"
)

// Pending reports whether an auto-link task is outstanding for the document.
func (s State) Pending() bool { return s == StateQueued || s == StateProcessing }
