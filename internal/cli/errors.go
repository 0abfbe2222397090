package cli

import (
	"errors"

	"github.com/JonMunkholm/tplimport/internal/core"
)

// ErrorMessage renders a command error for the terminal. Aborted imports
// with a known cause print the user message and code; unknown causes keep
// the technical text so the operator has something to act on.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}

	var userErr *core.UserError
	if !errors.As(err, &userErr) {
		return err.Error()
	}
	if core.IsUserFacing(userErr.Technical) {
		return "import aborted: " + core.FormatUserError(userErr.Technical)
	}
	return "import aborted: " + userErr.Technical.Error()
}
