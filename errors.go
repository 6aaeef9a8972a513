package swarm

import "errors"

// Standard errors
var (
	// ErrKeyNotFound is returned when reading knowledge that was never put
	ErrKeyNotFound = errors.New("knowledge key not found")

	// ErrCapabilityNotFound is returned when a capability is not registered
	ErrCapabilityNotFound = errors.New("capability not found")

	// ErrCapabilityAlreadyRegistered is returned when registering a duplicate capability name
	ErrCapabilityAlreadyRegistered = errors.New("capability already registered")

	// ErrLibraryNotFound is returned when a dotted library path does not resolve
	ErrLibraryNotFound = errors.New("library member not found")

	// ErrNotCallable is returned when a library constant is invoked like a function
	ErrNotCallable = errors.New("library member is not callable")

	// ErrVehicleNotFound is returned when a capability targets an unknown vehicle
	ErrVehicleNotFound = errors.New("vehicle not found")

	// ErrProviderMismatch is returned when a capability receives a provider it cannot drive
	ErrProviderMismatch = errors.New("provider does not support capability")

	// ErrBadArgument is returned when a capability or library receives unusable arguments
	ErrBadArgument = errors.New("invalid argument")

	// ErrDivisionByZero is returned by integer and float division or modulo by zero
	ErrDivisionByZero = errors.New("division by zero")

	// ErrTypeMismatch is returned when an operator is applied to incompatible operands
	ErrTypeMismatch = errors.New("operand type mismatch")

	// ErrQueueClosed is returned when popping from a closed knowledge queue
	ErrQueueClosed = errors.New("knowledge queue closed")
)

// CapabilityError wraps errors with capability context.
type CapabilityError struct {
	Name    string
	Vehicle string
	Err     error
}

func (e *CapabilityError) Error() string {
	if e.Vehicle != "" {
		return "capability " + e.Name + " (" + e.Vehicle + "): " + e.Err.Error()
	}
	return "capability " + e.Name + ": " + e.Err.Error()
}

func (e *CapabilityError) Unwrap() error {
	return e.Err
}
