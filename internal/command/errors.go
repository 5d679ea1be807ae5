package command

import (
	"errors"
	"fmt"
)

// MaxCapture bounds a single argument capture, in runes.
const MaxCapture = 255

var (
	// ErrNotCommand is returned for input that starts with neither the command sigil nor an alias.
	ErrNotCommand = errors.New("not a command")
	// ErrNoSuchCommand is returned when no grammar phrase matches.
	ErrNoSuchCommand = errors.New("no such command")
	// ErrCaptureTooLong is returned when one argument run exceeds MaxCapture.
	ErrCaptureTooLong = errors.New("argument too long")
)

// ArityError reports a wrong number of arguments.
type ArityError struct {
	Command string
	Have    int
	Want    int
}

func (e *ArityError) Error() string {
	return fmt.Sprintf("wrong argument number: have %d, want %d", e.Have, e.Want)
}
