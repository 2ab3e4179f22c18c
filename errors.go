package zcore

import (
	"errors"
	"fmt"
)

// BadAllocation reports that a MemoryResource failed to satisfy an
// allocation request, either because the request itself was out of bounds
// for the resource (e.g. a FixedPool asked for more bytes than its element
// size) or because the resource was exhausted.
type BadAllocation struct {
	Size      uintptr
	Alignment uintptr
	Reason    string
	Cause     error
}

// Error implements the error interface.
func (e *BadAllocation) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("zcore: bad allocation (size=%d, alignment=%d)", e.Size, e.Alignment)
	}
	return fmt.Sprintf("zcore: bad allocation (size=%d, alignment=%d): %s", e.Size, e.Alignment, e.Reason)
}

// Unwrap returns the underlying cause, if any, for use with [errors.Is] and
// [errors.As].
func (e *BadAllocation) Unwrap() error {
	return e.Cause
}

// Is reports whether target is also a *BadAllocation, regardless of its
// fields. Use the exported fields directly to compare size/alignment/reason.
func (e *BadAllocation) Is(target error) bool {
	var other *BadAllocation
	return errors.As(target, &other)
}

// ContainerOverflow reports that a bounded container (the ThreadManager's
// task queue) was full at enqueue time. Data carries whatever state the
// caller needs to finish the unqueued remainder, e.g. [TaskExceptionData]
// for a loop enqueue.
type ContainerOverflow[Data any] struct {
	Reason string
	Data   Data
}

// Error implements the error interface.
func (e *ContainerOverflow[Data]) Error() string {
	if e.Reason == "" {
		return "zcore: container overflow"
	}
	return "zcore: container overflow: " + e.Reason
}

// Is reports whether target is also a *ContainerOverflow[Data].
func (e *ContainerOverflow[Data]) Is(target error) bool {
	var other *ContainerOverflow[Data]
	return errors.As(target, &other)
}

// wrapError wraps cause with a message, preserving the chain for
// [errors.Is]/[errors.As].
func wrapError(message string, cause error) error {
	return fmt.Errorf("%s: %w", message, cause)
}
