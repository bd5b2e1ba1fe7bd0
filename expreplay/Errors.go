package expreplay

import (
	"errors"
	"fmt"
)

var (
	errEmptyBuffer         = errors.New("cannot sample empty buffer")
	errInsufficientSamples = errors.New("buffer holds insufficient samples")
)

// ExpReplayError denotes an error that occurred in an experience
// replay buffer operation
type ExpReplayError struct {
	Op  string
	Err error
}

func (e *ExpReplayError) Error() string {
	return fmt.Sprintf("%v: %v", e.Op, e.Err)
}

func (e *ExpReplayError) Unwrap() error {
	return e.Err
}

// IsEmptyBuffer returns whether err says the buffer held no samples
func IsEmptyBuffer(err error) bool {
	return errors.Is(err, errEmptyBuffer)
}

// IsInsufficientSamples returns whether err says the buffer held fewer
// samples than a batch requires. Callers should treat this as an
// expected condition and simply skip the training step.
func IsInsufficientSamples(err error) bool {
	return errors.Is(err, errInsufficientSamples)
}
