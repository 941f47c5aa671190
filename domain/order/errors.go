package order

import (
	"errors"
	"strings"
)

var (
	ErrValidation         = errors.New("validation failed")
	ErrOrderNotFound      = errors.New("order not found")
	ErrAlreadyPaid        = errors.New("order already paid")
	ErrInvalidInstallment = errors.New("invalid installment index")
)

// ValidationError lists the problems found in a submission.
// It matches ErrValidation with errors.Is.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid submission: " + strings.Join(e.Problems, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
