package domain

// ResolutionState is the state of one avatar's fallback walk.
type ResolutionState string

const (
	StateIdle      ResolutionState = "idle"
	StateWalking   ResolutionState = "walking"
	StateResolved  ResolutionState = "resolved"
	StateExhausted ResolutionState = "exhausted"
)

// Settled reports whether the walk has stopped and the view is final
// until the next event.
func (s ResolutionState) Settled() bool {
	return s != StateWalking
}
