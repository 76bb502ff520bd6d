package errors

import (
	stderrors "errors"
	"fmt"
	"os"

	"github.com/julianstephens/tally/internal/constants"
	"github.com/julianstephens/tally/internal/dashboard"
	"github.com/julianstephens/tally/internal/logger"
	"github.com/julianstephens/tally/internal/session"
)

// userError overrides the text shown for the error it wraps.
type userError struct {
	msg string
	err error
}

func (e *userError) Error() string { return e.msg + ": " + e.err.Error() }
func (e *userError) Unwrap() error { return e.err }

// WithMessage wraps err so that Message reports msg instead of the default
// text. The wrapped chain is still visible to errors.Is and in logs.
func WithMessage(err error, msg string) error {
	if err == nil {
		return nil
	}
	return &userError{msg: msg, err: err}
}

// Message returns the text shown to the user for err. Known failures get a
// fixed message; anything else falls back to err.Error().
func Message(err error) string {
	var ue *userError
	switch {
	case err == nil:
		return ""
	case stderrors.As(err, &ue):
		return ue.msg
	case stderrors.Is(err, session.ErrAuthenticationFailed):
		return constants.MsgAuthFailed
	case stderrors.Is(err, dashboard.ErrToggleInFlight):
		return constants.MsgToggleBusy
	case stderrors.Is(err, dashboard.ErrStale):
		return constants.MsgStale
	}
	return err.Error()
}

// Format formats an error message with a consistent "Error: " prefix
func Format(err error) string {
	if err == nil {
		return ""
	}
	return "Error: " + Message(err)
}

// Formatf formats a message with the same prefix as Format
func Formatf(format string, args ...any) string {
	return fmt.Sprintf("Error: "+format, args...)
}

// Fatal logs err with its full chain, prints the user message and exits 1.
func Fatal(err error) {
	if err == nil {
		return
	}
	logger.Error("command failed", "error", err)
	_ = logger.Close()
	fmt.Fprintln(os.Stderr, Format(err))
	os.Exit(1)
}

// Fatalf is Fatal for a formatted message
func Fatalf(format string, args ...any) {
	logger.Error("command failed", "error", fmt.Sprintf(format, args...))
	_ = logger.Close()
	fmt.Fprintln(os.Stderr, Formatf(format, args...))
	os.Exit(1)
}
