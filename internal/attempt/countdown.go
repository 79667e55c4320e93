package attempt

// Countdown holds the remaining time budget of an attempt in whole seconds.
// It reports expiry exactly once and ignores ticks afterwards.
type Countdown struct {
	remaining int
	expired   bool
}

func NewCountdown(budgetSeconds int) Countdown {
	if budgetSeconds < 0 {
		budgetSeconds = 0
	}
	return Countdown{remaining: budgetSeconds}
}

// Budget returns the total seconds for questionCount questions.
func Budget(questionCount, secondsPerQuestion int) int {
	return questionCount * secondsPerQuestion
}

func (c Countdown) Remaining() int { return c.remaining }

func (c Countdown) Expired() bool { return c.expired }

// Tick consumes one second. expired is true only on the tick that reaches zero.
func (c *Countdown) Tick() (expired bool) {
	if c.expired {
		return false
	}
	if c.remaining > 0 {
		c.remaining--
	}
	if c.remaining == 0 {
		c.expired = true
		return true
	}
	return false
}
