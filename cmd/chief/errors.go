package main

import (
	"errors"
	"fmt"

	"github.com/trainshed/chief/internal/gatt"
	"github.com/trainshed/chief/internal/gattsession"
)

// FormatUserError turns internal errors into messages that make sense to
// someone standing next to a train, not reading the source.
func FormatUserError(err error) string {
	switch {
	case errors.Is(err, gatt.ErrNotConnected):
		return fmt.Sprintf("not connected to the locomotive - is it powered on and in range? (%v)", err)
	case errors.Is(err, gatt.ErrNoResponse):
		return fmt.Sprintf("the locomotive did not acknowledge the command (%v)", err)
	case errors.Is(err, gatt.ErrTimeout), errors.Is(err, gattsession.ErrTimeout):
		return fmt.Sprintf("timed out waiting for the locomotive (%v)", err)
	case errors.Is(err, gattsession.ErrStreamClosed), errors.Is(err, gattsession.ErrSessionClosed):
		return fmt.Sprintf("lost the gatttool session (%v)", err)
	case errors.Is(err, gatt.ErrInvalidArgument):
		return err.Error()
	default:
		return err.Error()
	}
}
