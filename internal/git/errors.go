package git

import (
	"errors"
	"strings"
)

// ErrNotARepository is returned by callers that need an error value for a
// workspace without git metadata. Status itself reports this as ok == false.
var ErrNotARepository = errors.New("not a git repository")

// Diagnostic returns the tool's diagnostic text for err, or err.Error() when
// err did not come from a git subcommand.
func Diagnostic(err error) string {
	if err == nil {
		return ""
	}
	var cerr *CommandError
	if errors.As(err, &cerr) {
		return cerr.Diagnostic
	}
	return err.Error()
}

// diagnosticContains reports whether the diagnostic or captured stdout of err
// mentions any of the given fragments.
func diagnosticContains(err error, fragments ...string) bool {
	if err == nil {
		return false
	}
	text := Diagnostic(err)
	var cerr *CommandError
	if errors.As(err, &cerr) {
		text += "\n" + cerr.Output
	}
	for _, f := range fragments {
		if strings.Contains(text, f) {
			return true
		}
	}
	return false
}

// IsConflict reports whether a pull failed because of a rebase conflict.
func IsConflict(err error) bool {
	return diagnosticContains(err, "conflict", "CONFLICT")
}

// IsRejected reports whether a push was refused by the remote.
func IsRejected(err error) bool {
	return diagnosticContains(err, "rejected")
}
