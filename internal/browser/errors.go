package browser

import (
	"fmt"
	"time"
)

// ElementNotFoundError is returned when a locator matches nothing.
type ElementNotFoundError struct {
	Locator string
	Op      string
}

func (e *ElementNotFoundError) Error() string {
	return fmt.Sprintf("%s: element not found: %s", e.Op, e.Locator)
}

// TimeoutError is returned when the page did not become ready in time.
type TimeoutError struct {
	Op      string
	Locator string
	After   time.Duration
	Err     error
}

func (e *TimeoutError) Error() string {
	if e.Locator == "" {
		return fmt.Sprintf("%s: timed out after %s", e.Op, e.After)
	}
	return fmt.Sprintf("%s %s: timed out after %s", e.Op, e.Locator, e.After)
}

func (e *TimeoutError) Unwrap() error {
	return e.Err
}

// LoginError is returned when the login form is still shown after
// submitting credentials.
type LoginError struct {
	User string
}

func (e *LoginError) Error() string {
	return fmt.Sprintf("login as %q failed", e.User)
}
