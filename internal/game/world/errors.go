package world

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures of world operations.
type ErrorKind int

const (
	// KindSystem is an internal failure; the actor sees a generic notice.
	KindSystem ErrorKind = iota
	// KindUser is a mistake by the actor; the message is shown verbatim.
	KindUser
	// KindFatal means the world cannot continue; the process exits.
	KindFatal
)

func (k ErrorKind) String() string {
	switch k {
	case KindUser:
		return "user"
	case KindFatal:
		return "fatal"
	default:
		return "system"
	}
}

// SystemMessage is what an actor sees when a command fails internally.
const SystemMessage = "Something went wrong!"

var (
	// ErrCharacterNotFound is returned by a CharacterRepository for an unknown character.
	ErrCharacterNotFound = errors.New("character not found")
	// ErrUnauthenticated is returned when a credential does not resolve to a character.
	ErrUnauthenticated = errors.New("unauthenticated")
)

// Error is a classified world failure.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil && e.Message != "":
		return fmt.Sprintf("%s error: %s: %v", e.Kind, e.Message, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
	}
}

func (e *Error) Unwrap() error { return e.Err }

func userError(msg string) error {
	return &Error{Kind: KindUser, Message: msg}
}

func systemError(err error) error {
	return &Error{Kind: KindSystem, Err: err}
}

func systemErrorf(format string, args ...any) error {
	return systemError(fmt.Errorf(format, args...))
}

func fatalError(err error) error {
	return &Error{Kind: KindFatal, Err: err}
}

// KindOf classifies err. Errors that are not an *Error are System errors.
func KindOf(err error) ErrorKind {
	var we *Error
	if errors.As(err, &we) {
		return we.Kind
	}
	return KindSystem
}

// IsUserError reports whether err is a User error.
func IsUserError(err error) bool { return KindOf(err) == KindUser }
