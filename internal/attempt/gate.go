package attempt

import "quiz-attempt-service/internal/domain"

// Decision is the outcome of a verification check.
type Decision struct {
	Pass   bool
	Reason string
}

// VerificationGate decides whether a session may take or submit a quiz.
type VerificationGate struct{}

func (VerificationGate) Check(status domain.SessionStatus) Decision {
	if !status.IsVerified {
		return Decision{Reason: "email address is not verified"}
	}
	return Decision{Pass: true}
}

// Block is the decision used when the result sink reports stale verification.
func (VerificationGate) Block(err error) Decision {
	return Decision{Reason: err.Error()}
}
