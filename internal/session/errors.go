package session

import (
	"fmt"
	"time"
)

// LaunchError reports that the browser binary could not be found or started
type LaunchError struct {
	Err error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("failed to launch browser: %v", e.Err)
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}

// NavigationTimeout reports that a page never produced a body element within
// the navigation window
type NavigationTimeout struct {
	URL     string
	Timeout time.Duration
	Err     error
}

func (e *NavigationTimeout) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("page did not load within %s", e.Timeout)
	}
	return fmt.Sprintf("%s did not load within %s", e.URL, e.Timeout)
}

func (e *NavigationTimeout) Unwrap() error {
	return e.Err
}
