// Package errs collects the small set of sentinel and typed errors used for
// control flow across the adaptation loop, instead of exceptions.
package errs

import "fmt"

// ErrNoSolution marks a cycle where the CSP solver found no assignment
// satisfying all constraints within the allotted time.
var ErrNoSolution = fmt.Errorf("csp: no solution found within time limit")

// ContractViolationError marks a hard error: the caller referenced a probe,
// component, or application id that the receiving service does not know
// about. It is never retried.
type ContractViolationError struct {
	Subject string
	Reason  string
}

func (e *ContractViolationError) Error() string {
	return fmt.Sprintf("contract violation: %s: %s", e.Subject, e.Reason)
}

// NewContractViolation builds a ContractViolationError.
func NewContractViolation(subject, reason string) error {
	return &ContractViolationError{Subject: subject, Reason: reason}
}
