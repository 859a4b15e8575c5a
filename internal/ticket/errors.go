package ticket

import (
	"errors"
	"fmt"
	"strings"
)

var errMissingMandatoryKeys = errors.New("missing mandatory header keys")

// NotFoundError reports a missing ticket or project.
type NotFoundError struct {
	Kind string // "ticket" or "project"
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.Key)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var notFound *NotFoundError

	return errors.As(err, &notFound)
}

// InvalidTransitionError reports a status edge outside the transition
// table. The message names the valid next states so the caller can act
// without consulting the table.
type InvalidTransitionError struct {
	Code    string
	From    Status
	To      Status
	Allowed []Status
}

func (e *InvalidTransitionError) Error() string {
	if len(e.Allowed) == 0 {
		return fmt.Sprintf("%s: cannot move from %q to %q: %q is terminal", e.Code, e.From, e.To, e.From)
	}

	names := make([]string, 0, len(e.Allowed))
	for _, status := range e.Allowed {
		names = append(names, string(status))
	}

	return fmt.Sprintf("%s: cannot move from %q to %q: valid next states are %s",
		e.Code, e.From, e.To, strings.Join(names, ", "))
}

// ValidationError reports malformed input to a store operation.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Msg)
}

// ParseError marks a single document as unreadable. List operations log
// and skip these; single-document operations surface them.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("unreadable ticket %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
