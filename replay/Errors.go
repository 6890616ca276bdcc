package replay

import "errors"

// MemoryError implements errors unique to transition storage.
type MemoryError struct {
	Op  string
	Err error
}

// Error satisfies the error interface
func (e *MemoryError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

var errEmptyMemory error = errors.New("memory empty")

var errInsufficientSamples = errors.New("too few transitions for combined " +
	"sampling")

var errIndexOutOfRange = errors.New("index outside logical buffer range")

// IsEmptyMemory returns whether or not an error reports that a replay
// memory is empty.
func IsEmptyMemory(err error) bool {
	if memErr, ok := err.(*MemoryError); ok {
		err = memErr.Err
	}
	return err == errEmptyMemory
}

// IsInsufficientSamples returns whether or not an error reports that
// there are too few transitions in the memory to sample from it.
//
// Combined sampling needs at least two stored transitions: one
// guaranteed newest member plus a population to draw the rest from.
func IsInsufficientSamples(err error) bool {
	if memErr, ok := err.(*MemoryError); ok {
		err = memErr.Err
	}
	return err == errInsufficientSamples
}

// IsIndexOutOfRange returns whether or not an error reports an index
// outside the logical ordering [0, size) of a RingBuffer.
func IsIndexOutOfRange(err error) bool {
	if memErr, ok := err.(*MemoryError); ok {
		err = memErr.Err
	}
	return err == errIndexOutOfRange
}
