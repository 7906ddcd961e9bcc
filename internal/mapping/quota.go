package mapping

import (
	"errors"
	"fmt"
)

// DefaultMaxSteps bounds the callback invocations of one Apply.
// Callbacks that keep adding matching elements would otherwise never end.
const DefaultMaxSteps = 100_000

// QuotaEnforcer counts callback invocations during one Apply.
type QuotaEnforcer struct {
	maxSteps int
	current  int
}

// NewQuotaEnforcer creates an enforcer with the given limit. A limit of
// zero or less disables the check.
func NewQuotaEnforcer(maxSteps int) *QuotaEnforcer {
	return &QuotaEnforcer{maxSteps: maxSteps}
}

// Check counts one invocation by mapper and fails once the limit is passed.
func (q *QuotaEnforcer) Check(mapper string) error {
	q.current++
	if q.maxSteps > 0 && q.current > q.maxSteps {
		return &StepsExceededError{Mapper: mapper, Steps: q.current, Limit: q.maxSteps}
	}
	return nil
}

// Reset sets the count back to zero.
func (q *QuotaEnforcer) Reset() { q.current = 0 }

// Current returns the invocations counted so far.
func (q *QuotaEnforcer) Current() int { return q.current }

// MaxSteps returns the limit.
func (q *QuotaEnforcer) MaxSteps() int { return q.maxSteps }

// StepsExceededError terminates an Apply that ran past its quota.
type StepsExceededError struct {
	Mapper string
	Steps  int
	Limit  int
}

func (e *StepsExceededError) Error() string {
	return fmt.Sprintf("mapper %s exceeded max steps quota: %d steps > %d limit",
		e.Mapper, e.Steps, e.Limit)
}

// IsStepsExceededError reports whether err is a StepsExceededError.
func IsStepsExceededError(err error) bool {
	var se *StepsExceededError
	return errors.As(err, &se)
}
