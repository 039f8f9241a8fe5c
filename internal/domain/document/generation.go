package document

import "time"

// GenerationState is the lifecycle state of one generation request.
type GenerationState string

const (
	StateRequested  GenerationState = "REQUESTED"
	StateAssembling GenerationState = "ASSEMBLING"
	StateRendering  GenerationState = "RENDERING"
	StateFinalizing GenerationState = "FINALIZING"
	StateDone       GenerationState = "DONE"
	StateFailed     GenerationState = "FAILED"
)

// String returns the string representation of GenerationState
func (s GenerationState) String() string {
	return string(s)
}

// IsTerminal returns true if no further transitions are possible
func (s GenerationState) IsTerminal() bool {
	return s == StateDone || s == StateFailed
}

// CanTransitionTo checks if the state can move to target
func (s GenerationState) CanTransitionTo(target GenerationState) bool {
	if target == StateFailed {
		return !s.IsTerminal()
	}
	switch s {
	case StateRequested:
		return target == StateAssembling
	case StateAssembling:
		return target == StateRendering
	case StateRendering:
		return target == StateFinalizing
	case StateFinalizing:
		return target == StateDone
	}
	return false
}

// Transition records one state change.
type Transition struct {
	From GenerationState
	To   GenerationState
	At   time.Time
}

// Generation tracks a single request through its state machine. It is
// owned by one goroutine and is not safe for concurrent use.
type Generation struct {
	RequestID    string
	DocumentType string
	State        GenerationState
	StartedAt    time.Time
	UpdatedAt    time.Time
	Err          error

	transitions []Transition
	now         func() time.Time
}

// NewGeneration starts a generation in the Requested state.
func NewGeneration(requestID, documentType string) *Generation {
	return newGenerationAt(requestID, documentType, time.Now)
}

func newGenerationAt(requestID, documentType string, now func() time.Time) *Generation {
	t := now()
	return &Generation{
		RequestID:    requestID,
		DocumentType: documentType,
		State:        StateRequested,
		StartedAt:    t,
		UpdatedAt:    t,
		now:          now,
	}
}

// Advance moves the generation to the next state.
func (g *Generation) Advance(to GenerationState) error {
	if to == StateFailed {
		return NewDocumentError(ErrCodeInvalidState, "use Fail to mark a generation as failed", nil)
	}
	return g.transition(to)
}

// Fail marks the generation as failed and keeps the cause.
func (g *Generation) Fail(cause error) error {
	if err := g.transition(StateFailed); err != nil {
		return err
	}
	g.Err = cause
	return nil
}

func (g *Generation) transition(to GenerationState) error {
	if !g.State.CanTransitionTo(to) {
		return NewDocumentError(ErrCodeInvalidState,
			"cannot move generation from "+g.State.String()+" to "+to.String(), nil)
	}
	t := g.now()
	g.transitions = append(g.transitions, Transition{From: g.State, To: to, At: t})
	g.State = to
	g.UpdatedAt = t
	return nil
}

// Transitions returns a copy of the recorded transitions
func (g *Generation) Transitions() []Transition {
	out := make([]Transition, len(g.transitions))
	copy(out, g.transitions)
	return out
}

// Elapsed returns the time between the request and the last transition.
func (g *Generation) Elapsed() time.Duration {
	return g.UpdatedAt.Sub(g.StartedAt)
}

// IsDone returns true if the generation completed successfully
func (g *Generation) IsDone() bool {
	return g.State == StateDone
}
