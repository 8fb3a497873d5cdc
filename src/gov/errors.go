package gov

import (
	"errors"
	"fmt"
)

var (
	ErrValidation        = errors.New("validation error")
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrDuplicateVote     = errors.New("duplicate vote")
	ErrCollaborator      = errors.New("collaborator error")
)

func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

func InvalidTransitionf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidTransition, fmt.Sprintf(format, args...))
}

func DuplicateVotef(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrDuplicateVote, fmt.Sprintf(format, args...))
}

// Collaborator wraps a failure reported by storage, cache or chain collaborators.
// A nil err stays nil.
func Collaborator(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrCollaborator) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrCollaborator, op, err)
}
