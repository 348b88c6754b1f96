package engine

import (
	"errors"
	"fmt"
	"strings"

	"sql-console/internal/driver"
	"sql-console/internal/profile"
	"sql-console/internal/resultstore"
	"sql-console/internal/security"
)

// Kind is the stable category of a failed operation.
type Kind string

const (
	KindValidation      Kind = "ValidationError"
	KindSafety          Kind = "SafetyRejected"
	KindUnsupportedType Kind = "UnsupportedDatabaseType"
	KindNoDatabase      Kind = "NoDatabaseConfigured"
	KindConnection      Kind = "ConnectionError"
	KindSyntax          Kind = "SyntaxError"
	KindPermission      Kind = "PermissionDenied"
	KindTimeout         Kind = "Timeout"
	KindExecution       Kind = "ExecutionError"
	KindNotFound        Kind = "NotFound"
)

// messageLimit bounds how much driver text reaches the caller.
const messageLimit = 200

// Error is the failure of one engine operation. Message is safe to show to
// the user; Cause keeps the full driver error for logs.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func newError(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// KindOf returns the Kind of err, or KindExecution when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindExecution
}

// clip cuts s to n runes without adding an ellipsis.
func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// classifyFailure maps a driver failure after dispatch to a Kind. Structured
// driver codes win; the error text decides otherwise.
func classifyFailure(err error) *Error {
	switch driver.Categorize(err) {
	case driver.CategorySyntax:
		return syntaxError(err)
	case driver.CategoryPermission:
		return permissionError(err)
	case driver.CategoryTimeout:
		return timeoutError(err)
	}

	text := strings.ToLower(err.Error())
	switch {
	case strings.Contains(text, "syntax error") || strings.Contains(text, "parser"):
		return syntaxError(err)
	case strings.Contains(text, "permission denied") || strings.Contains(text, "access denied"):
		return permissionError(err)
	case strings.Contains(text, "timeout"):
		return timeoutError(err)
	}
	return newError(KindExecution, err, "execution failed: %s", clip(err.Error(), messageLimit))
}

func syntaxError(err error) *Error {
	return newError(KindSyntax, err, "SQL syntax error: %s", clip(err.Error(), messageLimit))
}

func permissionError(err error) *Error {
	return newError(KindPermission, err, "insufficient database privileges for this operation")
}

func timeoutError(err error) *Error {
	return newError(KindTimeout, err, "statement timed out; check the query or contact the administrator")
}

func connectionError(err error) *Error {
	return newError(KindConnection, err, "database connection failed: %s", clip(err.Error(), messageLimit))
}

// resolutionError maps profile lookup and family resolution failures.
func resolutionError(err error) *Error {
	var unsupported *driver.UnsupportedTypeError
	switch {
	case errors.As(err, &unsupported):
		return newError(KindUnsupportedType, err, "%s", unsupported.Error())
	case errors.Is(err, profile.ErrNotFound), errors.Is(err, profile.ErrNoProfiles):
		return newError(KindNoDatabase, err, "no valid database configuration found")
	case errors.Is(err, profile.ErrInvalidProfile):
		return newError(KindConnection, err, "%s", clip(err.Error(), messageLimit))
	}
	return newError(KindConnection, err, "load database configuration: %s", clip(err.Error(), messageLimit))
}

// screenError maps a request screen or classifier rejection.
func screenError(err error) *Error {
	var rej *security.Rejection
	switch {
	case errors.As(err, &rej):
		return newError(KindSafety, err, "%s", rej.Error())
	case errors.Is(err, security.ErrEmptyQuery), errors.Is(err, security.ErrQueryLength):
		return newError(KindValidation, err, "%s", err.Error())
	}
	return newError(KindSafety, err, "%s", err.Error())
}

// NotFound wraps a missing result handle for export paths.
func NotFound(err error) *Error {
	if errors.Is(err, resultstore.ErrNotFound) {
		return newError(KindNotFound, err, "%s", resultstore.ErrNotFound.Error())
	}
	return newError(KindExecution, err, "%s", clip(err.Error(), messageLimit))
}
