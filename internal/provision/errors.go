package provision

import (
	"fmt"
	"time"
)

// ProvisioningTimeoutError is returned by EnsurePresent when the configured
// attempt or duration ceiling is reached before the pull reports success.
type ProvisioningTimeoutError struct {
	Model      string
	Attempts   int
	Elapsed    time.Duration
	LastStatus string
	// Err is the error of the last failed pull, if the last attempt failed.
	Err error
}

func (e *ProvisioningTimeoutError) Error() string {
	msg := fmt.Sprintf("model '%s' not ready after %d attempts (%s), last status %q",
		e.Model, e.Attempts, e.Elapsed.Round(time.Millisecond), e.LastStatus)
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *ProvisioningTimeoutError) Unwrap() error {
	return e.Err
}
