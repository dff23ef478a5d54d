package lexer

import "fmt"

// Error represents an error while scanning.
//
// Err is the underlying cause, if any.
type Error struct {
	Message string
	Pos     Position
	Err     error
}

// Errorf creates a new Error at the given position.
func Errorf(pos Position, format string, args ...interface{}) *Error {
	return &Error{
		Message: fmt.Sprintf(format, args...),
		Pos:     pos,
	}
}

// Wrapf wraps err in an Error at the given position.
//
// The message is of the form "<message>: <err>".
func Wrapf(pos Position, err error, format string, args ...interface{}) *Error {
	return &Error{
		Message: fmt.Sprintf(format, args...) + ": " + err.Error(),
		Pos:     pos,
		Err:     err,
	}
}

func (e *Error) Error() string {
	return FormatError(e.Pos, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// FormatError formats an error in the form "[<filename>:][<line>:<pos>:] <message>"
func FormatError(pos Position, message string) string {
	msg := ""
	if pos.Filename != "" {
		msg += pos.Filename + ":"
	}
	if pos.Line != 0 || pos.Column != 0 {
		msg += fmt.Sprintf("%d:%d:", pos.Line, pos.Column)
	}
	if msg != "" {
		msg += " " + message
	} else {
		msg = message
	}
	return msg
}
