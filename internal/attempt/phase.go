package attempt

import "fmt"

// Phase is the lifecycle stage of one attempt.
type Phase int

const (
	PhaseLoading Phase = iota
	PhaseVerificationRequired
	PhaseInProgress
	PhaseSubmitting
	PhaseCompleted
	PhaseError
)

var phaseNames = map[Phase]string{
	PhaseLoading:              "loading",
	PhaseVerificationRequired: "verification_required",
	PhaseInProgress:           "in_progress",
	PhaseSubmitting:           "submitting",
	PhaseCompleted:            "completed",
	PhaseError:                "error",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Terminal reports whether no further transition is possible for the attempt.
func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseError || p == PhaseVerificationRequired
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Phase) UnmarshalText(text []byte) error {
	for phase, name := range phaseNames {
		if name == string(text) {
			*p = phase
			return nil
		}
	}
	return fmt.Errorf("unknown phase %q", text)
}
