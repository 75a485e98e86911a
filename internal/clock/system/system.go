// Package system implements lead.Clock with the wall clock.
package system

import "time"

// Clock reports real time in UTC.
type Clock struct{}

// New returns a wall clock.
func New() *Clock { return &Clock{} }

// Now returns the current UTC time.
func (Clock) Now() time.Time { return time.Now().UTC() }
