package avatar

import (
	"errors"
	"fmt"
)

var (
	// ErrBusy rejects a state-changing call while another session operation
	// owns the controller. There is no queueing: the caller retries.
	ErrBusy = errors.New("avatar: another session operation is in progress")

	// ErrNotActive rejects conversation calls outside an active session.
	ErrNotActive = errors.New("avatar: no active session")
)

// ConfigError reports missing client configuration, detected before any
// network call is made.
type ConfigError struct {
	Field string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("avatar: %s is not configured", e.Field)
}

// ProvisionError reports that the relay or provider rejected session
// creation. A fresh Start may succeed.
type ProvisionError struct {
	Err error
}

func (e *ProvisionError) Error() string { return "avatar: provisioning failed: " + e.Err.Error() }
func (e *ProvisionError) Unwrap() error { return e.Err }

// JoinError reports a failure after provisioning succeeded: the room connect
// or the microphone acquisition. The provider-side session is not released;
// Stop clears local resources so Start can be retried.
type JoinError struct {
	Err error
}

func (e *JoinError) Error() string { return "avatar: joining the session failed: " + e.Err.Error() }
func (e *JoinError) Unwrap() error { return e.Err }
